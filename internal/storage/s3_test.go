package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestSanitizeKeyPart(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain reference", "sag-2026-117", "sag-2026-117"},
		{"preserves underscore and dot", "BR18_kap5.2", "BR18_kap5.2"},
		{"replaces slashes and spaces", "sag/2026 117", "sag-2026-117"},
		{"replaces danish letters", "søgning-æø", "s-gning---"},
		{"empty becomes unnamed", "", "unnamed"},
		{"only invalid becomes sanitized", "///", "---"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeKeyPart(tt.input))
		})
	}
}

func TestOutcomeKey_UsesTimestamp(t *testing.T) {
	archive := &OutcomeArchive{bucket: "test"}
	archive.now = fixedNow

	key := archive.outcomeKey("sag-2026-117")
	assert.Equal(t, "outcomes/sag-2026-117/20260301T120000.000Z.json", key)
}
