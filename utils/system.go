// kex/utils/system.go
package utils

import "time"

// GetTime returns the current time. Useful for mocking in tests.
func GetTime() time.Time {
	return time.Now()
}

// Timestamp returns the current UTC time as second-resolution ISO-8601
// text, the format every row in the store uses.
func Timestamp() string {
	return GetTime().UTC().Format("2006-01-02T15:04:05")
}

// UploadName builds the generated filename for a compressed upload:
// a UTC timestamp down to microseconds, always with a .jpg extension.
func UploadName() string {
	t := GetTime().UTC()
	return t.Format("20060102150405") + t.Format(".000000")[1:] + ".jpg"
}
