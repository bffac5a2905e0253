package v1

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIPVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain ipv4", raw: "203.0.113.50", want: "203.0.113.50"},
		{name: "ipv4 with spaces", raw: "  203.0.113.50 ", want: "203.0.113.50"},
		{name: "quoted ipv4", raw: "\"203.0.113.50\"", want: "203.0.113.50"},
		{name: "ipv4 with port", raw: "203.0.113.50:8080", want: "203.0.113.50"},
		{name: "ipv6 literal", raw: "2001:db8::42", want: "2001:db8::42"},
		{name: "ipv6 in brackets", raw: "[2001:db8::42]", want: "2001:db8::42"},
		{name: "ipv6 with port", raw: "[2001:db8::42]:443", want: "2001:db8::42"},
		{name: "ipv6 with zone", raw: "fe80::1%en0", want: "fe80::1"},
		{name: "ipv4 mapped ipv6", raw: "::ffff:198.51.100.3", want: "198.51.100.3"},
		{name: "garbage", raw: "unknown", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, parsed := normalizeIP(tc.raw)
			assert.Equal(t, tc.want, got)

			if tc.want == "" {
				assert.Nil(t, parsed)
				return
			}

			require.NotNil(t, parsed)
			assert.Equal(t, tc.want, parsed.String())
		})
	}
}

func TestSelectPreferredIP(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{
			name:   "prefers public ipv4 over ipv6",
			values: []string{"2001:db8::7", "198.51.100.23"},
			want:   "198.51.100.23",
		},
		{
			name:   "skips private and loopback addresses",
			values: []string{"10.1.2.3", "172.16.0.9", "192.168.0.4", "127.0.0.1", "203.0.113.6"},
			want:   "203.0.113.6",
		},
		{
			name:   "ipv6 fallback when no public ipv4",
			values: []string{"fe80::1", "2001:db8::7"},
			want:   "2001:db8::7",
		},
		{
			name:   "nothing usable",
			values: []string{"", "nonsense", "192.168.1.1"},
			want:   "",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, selectPreferredIP(tc.values))
		})
	}
}

func TestParseForwardedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{
			name:   "single entry",
			header: "for=203.0.113.60;proto=https",
			want:   []string{"203.0.113.60"},
		},
		{
			name:   "multiple entries",
			header: "for=203.0.113.60, for=198.51.100.2",
			want:   []string{"203.0.113.60", "198.51.100.2"},
		},
		{
			name:   "mixed case directive",
			header: "For=\"[2001:db8::9]:4711\"",
			want:   []string{"\"[2001:db8::9]:4711\""},
		},
		{
			name:   "no for directive",
			header: "proto=https;by=203.0.113.43",
			want:   nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseForwardedHeader(tc.header))
		})
	}
}

func TestIsPrivateIPWithMappedIPv4(t *testing.T) {
	private := net.ParseIP("::ffff:10.0.0.8")
	require.NotNil(t, private)
	assert.True(t, isPrivateIP(private))

	public := net.ParseIP("::ffff:1.1.1.1")
	require.NotNil(t, public)
	assert.False(t, isPrivateIP(public))
}
