// kex/handlers/session.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"kex/utils"
)

// Session state lives in two HMAC-signed cookies: an admin flag and the
// visitor's liked-story set. Losing either on cookie expiry is fine;
// likes are a cosmetic counter and the admin just logs in again.

const (
	adminCookieName = "kex_admin"
	likesCookieName = "kex_likes"

	adminPayload = "admin:v1"
)

// IsAdmin reports whether the request carries a valid admin session.
func IsAdmin(r *http.Request) bool {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil {
		return false
	}
	payload, ok := utils.VerifyValue(cookie.Value)
	return ok && payload == adminPayload
}

// SetAdminSession marks the session as authenticated.
func SetAdminSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    utils.SignValue(adminPayload),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAdminSession logs the admin out.
func ClearAdminSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   adminCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// LikedStories reads the visitor's liked-story id set. Tampered or
// malformed cookies read as empty.
func LikedStories(r *http.Request) map[int64]bool {
	liked := make(map[int64]bool)
	cookie, err := r.Cookie(likesCookieName)
	if err != nil {
		return liked
	}
	payload, ok := utils.VerifyValue(cookie.Value)
	if !ok {
		return liked
	}
	for _, piece := range strings.Split(payload, ",") {
		if id, err := strconv.ParseInt(piece, 10, 64); err == nil && id > 0 {
			liked[id] = true
		}
	}
	return liked
}

// SaveLikedStories writes the liked-story set back to the cookie.
func SaveLikedStories(w http.ResponseWriter, r *http.Request, liked map[int64]bool) {
	ids := make([]string, 0, len(liked))
	for id := range liked {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     likesCookieName,
		Value:    utils.SignValue(strings.Join(ids, ",")),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
