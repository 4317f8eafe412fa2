package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFollowerCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"1234", 1234},
		{"1,234", 1234},
		{"500,000", 500000},
		{"12.5K", 12500},
		{"12.5k", 12500},
		{"1.2M", 1200000},
		{"3m", 3000000},
		{"  842 ", 842},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := ParseFollowerCount(tt.raw)
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
	}
}

func TestParseFollowerCountRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "followers", "K"} {
		_, err := ParseFollowerCount(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestFollowerPattern(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"842 posts 12.5K followers 301 following", "12.5K"},
		{"1,234 followers", "1,234"},
		{"2 posts 98 followers 5 following", "98"},
	}
	for _, tt := range tests {
		m := followerPattern.FindStringSubmatch(tt.text)
		require.NotNil(t, m, "text=%q", tt.text)
		assert.Equal(t, tt.want, m[1], "text=%q", tt.text)
	}
}
