package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/nearby-cli/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	runs := []store.Run{
		{
			ID:        "5a9c2c0e-45a8-4f33-9a4c-111111111111",
			Address:   "194 Nguyễn Công Trứ, Ho Chi Minh City",
			Terms:     []string{"beer", "club"},
			Radius:    2000,
			Features:  17,
			CreatedAt: time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:        "7b1d3f2a-0000-0000-0000-222222222222",
			Address:   "short",
			Terms:     []string{"restaurant"},
			Radius:    500,
			Features:  0,
			CreatedAt: time.Date(2026, 8, 13, 18, 5, 0, 0, time.UTC),
		},
	}

	var sb strings.Builder
	formatRunsList(&sb, runs)
	out := sb.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "ADDRESS")
	assert.Contains(t, out, "5a9c2c0e")
	assert.NotContains(t, out, "5a9c2c0e-45a8")
	assert.Contains(t, out, "beer,club")
	assert.Contains(t, out, "2026-08-12 09:30")
	assert.Contains(t, out, "short")
}

func TestFormatRunsList_TruncatesLongAddress(t *testing.T) {
	runs := []store.Run{{
		ID:      "abc",
		Address: strings.Repeat("x", 60),
		Terms:   []string{"beer"},
	}}

	var sb strings.Builder
	formatRunsList(&sb, runs)

	assert.Contains(t, sb.String(), strings.Repeat("x", 37)+"...")
	assert.NotContains(t, sb.String(), strings.Repeat("x", 41))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestEnsureShapefileCompat(t *testing.T) {
	assert.NoError(t, ensureShapefileCompat(3))
	assert.Error(t, ensureShapefileCompat(0))
}
