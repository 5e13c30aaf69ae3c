package llm

import (
	"encoding/json"
	"strings"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

var validCategories = map[string]bool{
	"authentication": true, "data-processing": true, "api": true,
	"frontend": true, "config": true, "test": true, "build": true,
	"documentation": true, "other": true,
}

var validRelevances = map[string]bool{
	"high": true, "medium": true, "low": true,
}

// wireClassification mirrors the JSON object the prompt demands.
type wireClassification struct {
	Purpose           *string  `json:"purpose"`
	Category          *string  `json:"category"`
	Confidence        *float64 `json:"confidence"`
	SecurityRelevance *string  `json:"security_relevance"`
	Reasoning         string   `json:"reasoning"`
}

// extractJSONObject locates the first balanced JSON object in a reply.
// Models routinely wrap the object in prose or markdown fences.
func extractJSONObject(reply string) (string, bool) {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		c := reply[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return reply[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseClassification extracts and validates the classification object from
// a raw model reply. Anything that does not carry the full contract is a
// MalformedResponseError.
func ParseClassification(provider, reply string) (*Classification, error) {
	obj, ok := extractJSONObject(reply)
	if !ok {
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "no JSON object in reply"}
	}

	var wire wireClassification
	if err := json.Unmarshal([]byte(obj), &wire); err != nil {
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "invalid JSON: " + err.Error()}
	}

	switch {
	case wire.Purpose == nil:
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "missing purpose"}
	case wire.Category == nil:
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "missing category"}
	case wire.Confidence == nil:
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "missing confidence"}
	case wire.SecurityRelevance == nil:
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "missing security_relevance"}
	}

	category := strings.ToLower(strings.TrimSpace(*wire.Category))
	if !validCategories[category] {
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "unknown category " + category}
	}
	relevance := strings.ToLower(strings.TrimSpace(*wire.SecurityRelevance))
	if !validRelevances[relevance] {
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "unknown security_relevance " + relevance}
	}
	if *wire.Confidence < 0 || *wire.Confidence > 1 {
		return nil, &errors.MalformedResponseError{Provider: provider, Reason: "confidence out of [0,1]"}
	}

	return &Classification{
		Purpose:           *wire.Purpose,
		Category:          category,
		Confidence:        *wire.Confidence,
		SecurityRelevance: relevance,
		Reasoning:         wire.Reasoning,
		Provider:          provider,
	}, nil
}
