// Package botfilter classifies User-Agent strings as automated traffic
// using a fixed list of case-insensitive literal substrings. Pure
// pattern matching: no I/O after init, no state.
package botfilter

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed database/bots.yml
var databaseFiles embed.FS

// BotEntry is one known automated client.
type BotEntry struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

var (
	patterns []BotEntry
	once     sync.Once
)

func getPatterns() []BotEntry {
	once.Do(func() {
		data, err := databaseFiles.ReadFile("database/bots.yml")
		if err != nil {
			fmt.Printf("Error reading bots.yml: %v\n", err)
			return
		}
		if err := yaml.Unmarshal(data, &patterns); err != nil {
			fmt.Printf("Error parsing bots.yml: %v\n", err)
			return
		}
		for i := range patterns {
			patterns[i].Pattern = strings.ToLower(patterns[i].Pattern)
		}
	})
	return patterns
}

// IsBot reports whether the user agent matches a known automated client.
// False negatives are expected; an empty user agent is treated as a bot.
func IsBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}

	ua := strings.ToLower(userAgent)
	for _, entry := range getPatterns() {
		if strings.Contains(ua, entry.Pattern) {
			return true
		}
	}
	return false
}

// Match returns the matching bot entry name, or "" for human traffic.
// Retained for diagnostics endpoints and tests.
func Match(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, entry := range getPatterns() {
		if strings.Contains(ua, entry.Pattern) {
			return entry.Name
		}
	}
	return ""
}
