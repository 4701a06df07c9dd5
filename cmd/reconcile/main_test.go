package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shopline-platform/reconciliation-service/internal/domain"
)

func TestParseOptionsExplicitWindow(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	opts, err := parseOptions([]string{
		"-channel", "pos",
		"-window-start", "2026-08-20T00:00:00Z",
		"-window-end", "2026-08-21T00:00:00Z",
	}, now)
	require.NoError(t, err)
	require.Equal(t, domain.ChannelPOS, opts.channel)
	require.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), opts.windowStart)
	require.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), opts.windowEnd)
}

func TestParseOptionsLookback(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	opts, err := parseOptions([]string{"-channel", "marketplace", "-lookback", "24h"}, now)
	require.NoError(t, err)
	require.Equal(t, domain.ChannelMarketplace, opts.channel)
	require.Equal(t, now, opts.windowEnd)
	require.Equal(t, now.Add(-24*time.Hour), opts.windowStart)
}

func TestParseOptionsRejectsBadInput(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		args []string
	}{
		{"unknown channel", []string{"-channel", "fax", "-lookback", "1h"}},
		{"missing window", []string{"-channel", "pos"}},
		{"lookback plus window", []string{"-channel", "pos", "-lookback", "1h", "-window-start", "2026-08-20T00:00:00Z"}},
		{"inverted window", []string{"-channel", "pos", "-window-start", "2026-08-21T00:00:00Z", "-window-end", "2026-08-20T00:00:00Z"}},
		{"bad timestamp", []string{"-channel", "pos", "-window-start", "yesterday", "-window-end", "2026-08-21T00:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOptions(tt.args, now)
			require.Error(t, err)
		})
	}
}

func TestLoadSellerScopes(t *testing.T) {
	require.Empty(t, loadSellerScopes(""))
	scopes := loadSellerScopes(`{"SLR-001":["clothing"]}`)
	require.False(t, scopes.Authorizes("SLR-001", "books"))
}
