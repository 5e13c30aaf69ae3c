package llm

import (
	"fmt"
	"unicode/utf8"
)

// SystemPrompt establishes the reviewer role. Both providers send the same
// wire-level contract so classifications stay comparable across fallback.
const SystemPrompt = "You are a senior software engineer and security analyst. " +
	"Analyze code files and provide structured insights about their purpose and security implications."

// TruncationMarker is appended when file content exceeds the provider's
// token budget.
const TruncationMarker = "\n... [truncated]"

// Rough bytes-per-token ratio used for budget truncation. Exact counting
// lives in the tokens package; the prompt builder only needs a ceiling.
const bytesPerToken = 4

const analysisPromptTemplate = `Analyze this code file and identify its primary purpose. Consider:
- Main functionality and business logic
- Security implications
- Data handling patterns
- External dependencies
- Framework/library usage patterns
- Architectural role in the application

File: %s
Extension: %s
Code Content:
` + "```" + `
%s
` + "```" + `

Respond with a JSON object containing:
- "purpose": A brief, clear description of the file's main purpose (max 100 words)
- "category": One of [authentication, data-processing, api, frontend, config, test, build, documentation, other]
- "confidence": A confidence score from 0.0 to 1.0
- "security_relevance": One of [high, medium, low] based on security implications
- "reasoning": Brief explanation of the categorization (max 50 words)

Example response:
{
  "purpose": "User authentication and session management module",
  "category": "authentication",
  "confidence": 0.95,
  "security_relevance": "high",
  "reasoning": "Handles user credentials, session tokens, and access control"
}`

// AnalysisPrompt renders the user prompt for one file.
func AnalysisPrompt(path, extension, content string) string {
	return fmt.Sprintf(analysisPromptTemplate, path, extension, content)
}

// TruncateContent trims content to roughly maxTokens, appending a visible
// marker so the model knows the file continues. A non-positive budget means
// no truncation.
func TruncateContent(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return content
	}
	limit := maxTokens * bytesPerToken
	if len(content) <= limit {
		return content
	}
	// Do not split a rune in half.
	for limit > 0 && !utf8.RuneStart(content[limit]) {
		limit--
	}
	return content[:limit] + TruncationMarker
}
