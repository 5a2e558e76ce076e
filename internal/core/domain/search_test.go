package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchMode_IsValid tests all valid and invalid search modes
func TestSearchMode_IsValid(t *testing.T) {
	for _, m := range AllSearchModes() {
		assert.True(t, m.IsValid(), m)
		assert.NotEqual(t, "Unknown mode", m.Description())
	}
	assert.False(t, SearchMode("").IsValid())
	assert.False(t, SearchMode("text_only").IsValid())
}

func TestSearchMode_UsesVectors(t *testing.T) {
	assert.False(t, SearchModeLexical.UsesVectors())
	assert.True(t, SearchModeSemantic.UsesVectors())
	assert.True(t, SearchModeHybrid.UsesVectors())
}

func TestParseSearchMode(t *testing.T) {
	tests := []struct {
		input string
		want  SearchMode
	}{
		{"", SearchModeHybrid},
		{"hybrid", SearchModeHybrid},
		{" Lexical ", SearchModeLexical},
		{"SEMANTIC", SearchModeSemantic},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSearchMode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSearchMode("fuzzy")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCitation_String(t *testing.T) {
	c := Citation{DocumentName: "policy.txt", StartOffset: 0, EndOffset: 64}
	assert.Equal(t, "policy.txt [0:64]", c.String())

	c.Page = 2
	c.Section = "Refunds"
	assert.Equal(t, "policy.txt p.2 §Refunds [0:64]", c.String())
}
