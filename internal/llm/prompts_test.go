package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisPrompt(t *testing.T) {
	prompt := AnalysisPrompt("src/auth.py", ".py", "def login(): pass")

	assert.Contains(t, prompt, "File: src/auth.py")
	assert.Contains(t, prompt, "Extension: .py")
	assert.Contains(t, prompt, "def login(): pass")
	assert.Contains(t, prompt, `"security_relevance"`)
}

func TestTruncateContent(t *testing.T) {
	t.Run("short content untouched", func(t *testing.T) {
		assert.Equal(t, "hello", TruncateContent("hello", 100))
	})

	t.Run("zero budget means no truncation", func(t *testing.T) {
		long := strings.Repeat("a", 10000)
		assert.Equal(t, long, TruncateContent(long, 0))
	})

	t.Run("long content gets marker", func(t *testing.T) {
		long := strings.Repeat("a", 1000)
		got := TruncateContent(long, 10)
		assert.True(t, strings.HasSuffix(got, TruncationMarker))
		assert.Less(t, len(got), len(long))
	})

	t.Run("never splits a rune", func(t *testing.T) {
		long := strings.Repeat("héllo wörld ", 500)
		got := TruncateContent(long, 10)
		assert.True(t, utf8.ValidString(got))
	})
}
