package botfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"visitry/internal/pkg/botfilter"
)

func TestIsBot(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		isBot     bool
	}{
		{"Googlebot", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"Bingbot", "Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", true},
		{"Headless Chrome", "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0.0.0 Safari/537.36", true},
		{"curl", "curl/8.4.0", true},
		{"Python requests", "python-requests/2.31.0", true},
		{"Go HTTP client", "Go-http-client/2.0", true},
		{"Generic crawler", "Mozilla/5.0 ExampleCrawler/1.0", true},
		{"Uppercase bot token", "SOMETHING BOT/2.0", true},
		{"Empty user agent", "", true},
		{"Whitespace user agent", "   ", true},
		{"Chrome on Windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", false},
		{"Safari on iPhone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", false},
		{"Firefox on Linux", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isBot, botfilter.IsBot(tt.userAgent))
		})
	}
}

func TestMatch(t *testing.T) {
	assert.Equal(t, "Googlebot", botfilter.Match("Mozilla/5.0 (compatible; Googlebot/2.1)"))
	assert.Empty(t, botfilter.Match("Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"))
}
