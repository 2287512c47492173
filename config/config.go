// kex/config/config.go
package config

const (
	AppVersion = "0.3.0"

	// Form & Story Limits
	MinNameLen  = 4
	MaxNameLen  = 75
	MaxTitleLen = 120
	MaxBodyLen  = 8000
	MaxPhotos   = 1

	// Image Compression Limits
	MaxImageBytes   = 512 * 1024 // compressed output must fit under this
	StartQuality    = 90
	QualityStep     = 10
	QualityFloor    = 40
	QualityHardStop = 20
	SoftStopEdge    = 640
	HardStopEdge    = 480

	// Recently-published list length on the admin panel
	AdminRecentLimit = 5

	// Rate Limiting Defaults (story submissions)
	DefaultRateLimitEvery  = "30s"
	DefaultRateLimitBurst  = 3
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"
)

// AllowedImageExtensions is the upload extension whitelist.
var AllowedImageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
}
