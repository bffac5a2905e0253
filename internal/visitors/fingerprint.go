package visitors

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Signals holds the client-observable characteristics a browser reports
// on page load. The tuple is hashed as-is: two devices reporting the
// exact same tuple intentionally collide.
type Signals struct {
	UserAgent      string `json:"userAgent"`
	Language       string `json:"language"`
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
	ColorDepth     int    `json:"colorDepth"`
	TimezoneOffset int    `json:"timezoneOffset"`
	Platform       string `json:"platform"`
	CookiesEnabled bool   `json:"cookiesEnabled"`
	LocalStorage   bool   `json:"localStorage"`
	SessionStorage bool   `json:"sessionStorage"`
	CanvasHash     string `json:"canvasHash"`
}

// Fingerprint derives the primary identity hash from the full signal
// tuple: a 32-bit FNV-1a rendered as unsigned base-36. Deterministic for
// a fixed tuple, no collision resistance intended.
func Fingerprint(s Signals) string {
	return hashBase36(strings.Join([]string{
		s.UserAgent,
		s.Language,
		fmt.Sprintf("%dx%d", s.ScreenWidth, s.ScreenHeight),
		strconv.Itoa(s.ColorDepth),
		strconv.Itoa(s.TimezoneOffset),
		s.Platform,
		strconv.FormatBool(s.CookiesEnabled),
		strconv.FormatBool(s.LocalStorage),
		strconv.FormatBool(s.SessionStorage),
		s.CanvasHash,
	}, "|"))
}

// ClientHash derives the coarser fallback correlation key from the
// stable subset of signals. It survives canvas-rendering changes that
// would shift the full fingerprint.
func ClientHash(s Signals) string {
	return hashBase36(strings.Join([]string{
		s.UserAgent,
		s.Language,
		fmt.Sprintf("%dx%d", s.ScreenWidth, s.ScreenHeight),
		s.Platform,
	}, "|"))
}

func hashBase36(data string) string {
	h := fnv.New32a()
	h.Write([]byte(data))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}
