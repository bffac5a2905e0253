// Package sessiontoken manages the time-boxed visitor session token.
// The token travels in a client cookie; its lifetime is measured from
// creation (embedded in the token itself), never refreshed on read.
package sessiontoken

import (
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// CookieName is the cookie carrying the session token.
const CookieName = "visitor_session_v2"

// DefaultDuration is how long a minted token stays valid.
const DefaultDuration = 24 * time.Hour

const tokenPrefix = "session_"

const suffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"
const suffixLength = 9

// Mint creates a fresh session token: "session_<epochMillis>_<suffix>".
func Mint(now time.Time) string {
	var b strings.Builder
	b.WriteString(tokenPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	for i := 0; i < suffixLength; i++ {
		b.WriteByte(suffixChars[rand.Intn(len(suffixChars))])
	}
	return b.String()
}

// CreatedAt extracts the mint time embedded in a token. Returns false
// for anything that does not parse as a well-formed token.
func CreatedAt(token string) (time.Time, bool) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return time.Time{}, false
	}
	rest := strings.TrimPrefix(token, tokenPrefix)
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || millis <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(millis).UTC(), true
}

// Valid reports whether the token is well-formed and younger than the
// session duration at the given instant.
func Valid(token string, now time.Time, duration time.Duration) bool {
	created, ok := CreatedAt(token)
	if !ok {
		return false
	}
	return now.Sub(created) < duration
}

// GetOrCreate returns the existing token when it is still valid, or a
// freshly minted one. The second return value reports whether a new
// token was minted.
func GetOrCreate(token string, now time.Time, duration time.Duration) (string, bool) {
	if Valid(token, now, duration) {
		return token, false
	}
	return Mint(now), true
}
