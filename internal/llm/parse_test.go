package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		found bool
	}{
		{
			name:  "bare object",
			reply: `{"purpose":"x"}`,
			want:  `{"purpose":"x"}`,
			found: true,
		},
		{
			name:  "markdown fence",
			reply: "```json\n{\"purpose\":\"x\"}\n```",
			want:  `{"purpose":"x"}`,
			found: true,
		},
		{
			name:  "prose prefix and suffix",
			reply: `Here is the analysis: {"purpose":"x"} hope that helps`,
			want:  `{"purpose":"x"}`,
			found: true,
		},
		{
			name:  "braces inside string values",
			reply: `{"purpose":"uses {braces} and \"quotes\"","category":"other"}`,
			want:  `{"purpose":"uses {braces} and \"quotes\"","category":"other"}`,
			found: true,
		},
		{
			name:  "nested object",
			reply: `{"a":{"b":1},"c":2}`,
			want:  `{"a":{"b":1},"c":2}`,
			found: true,
		},
		{
			name:  "no object at all",
			reply: "I cannot analyze this file.",
			found: false,
		},
		{
			name:  "unbalanced object",
			reply: `{"purpose":"x"`,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.reply)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseClassification(t *testing.T) {
	reply := "```json\n" + `{
  "purpose": "User authentication and session management module",
  "category": "Authentication",
  "confidence": 0.95,
  "security_relevance": "HIGH",
  "reasoning": "Handles user credentials"
}` + "\n```"

	c, err := ParseClassification("openai", reply)
	require.NoError(t, err)
	assert.Equal(t, "User authentication and session management module", c.Purpose)
	assert.Equal(t, "authentication", c.Category, "category is lowercased")
	assert.Equal(t, 0.95, c.Confidence)
	assert.Equal(t, "high", c.SecurityRelevance, "relevance is lowercased")
	assert.Equal(t, "Handles user credentials", c.Reasoning)
	assert.Equal(t, "openai", c.Provider)
}

func TestParseClassificationRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no json", "sorry, cannot help"},
		{"invalid json", `{"purpose": }`},
		{"missing purpose", `{"category":"other","confidence":0.5,"security_relevance":"low"}`},
		{"missing category", `{"purpose":"x","confidence":0.5,"security_relevance":"low"}`},
		{"missing confidence", `{"purpose":"x","category":"other","security_relevance":"low"}`},
		{"missing relevance", `{"purpose":"x","category":"other","confidence":0.5}`},
		{"unknown category", `{"purpose":"x","category":"backend","confidence":0.5,"security_relevance":"low"}`},
		{"unknown relevance", `{"purpose":"x","category":"other","confidence":0.5,"security_relevance":"critical"}`},
		{"confidence above one", `{"purpose":"x","category":"other","confidence":1.5,"security_relevance":"low"}`},
		{"confidence negative", `{"purpose":"x","category":"other","confidence":-0.1,"security_relevance":"low"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClassification("bedrock", tt.reply)
			require.Error(t, err)
			var merr *errors.MalformedResponseError
			assert.ErrorAs(t, err, &merr)
			assert.Equal(t, "bedrock", merr.Provider)
		})
	}
}

func TestParseClassificationAllowsEmptyReasoning(t *testing.T) {
	c, err := ParseClassification("openai",
		`{"purpose":"x","category":"test","confidence":0.3,"security_relevance":"low"}`)
	require.NoError(t, err)
	assert.Empty(t, c.Reasoning)
}
