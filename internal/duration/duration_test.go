package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]time.Duration{
		"7d":   7 * 24 * time.Hour,
		"2w":   14 * 24 * time.Hour,
		"90m":  90 * time.Minute,
		"30s":  30 * time.Second,
		"1h5m": time.Hour + 5*time.Minute,
	}
	for in, want := range tests {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "7x", "d", "-5m"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := Since("1d", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), got)
}
