/*
Package learning implements the execution feedback and reinforcement learning
engine: context hashing, reward calculation, a tabular Q-learning policy with a
read-through cache, and confidence-ranked tool recommendations.
*/
package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// vocabulary is the fixed set of recognized planning keywords used when
// abstracting a free-text query into a context key.
var vocabulary = []string{
	"dimension", "member", "account", "entity", "period", "scenario",
	"version", "plan", "data", "retrieve", "export", "import",
	"rule", "job", "status", "hierarchy", "variable", "document",
	"snapshot", "costcenter", "region",
}

// maxQueryTokens is how many leading query tokens are added as keywords.
const maxQueryTokens = 5

// contextRecord is the canonical form that gets digested. Field order matches
// sorted JSON key order so the serialization is deterministic.
type contextRecord struct {
	Keywords      []string `json:"keywords"`
	PreviousTool  string   `json:"previous_tool"`
	SessionLength int      `json:"session_length"`
}

// ContextHash returns a stable digest identifying "the situation": the
// keywords found in the query, the previously executed tool, and how many
// tools the session has run.
//
// Pure function: identical inputs always produce the identical digest, and
// keyword insertion order never affects the result.
func ContextHash(query, previousTool string, sessionLength int) string {
	record := contextRecord{
		Keywords:      extractKeywords(query),
		PreviousTool:  previousTool,
		SessionLength: sessionLength,
	}

	data, _ := json.Marshal(record)
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// extractKeywords intersects the query with the domain vocabulary and adds the
// first few lowercase tokens, deduplicated and sorted. Empty queries yield an
// empty (non-nil) set so the canonical form serializes as [].
func extractKeywords(query string) []string {
	keywords := []string{}
	if query == "" {
		return keywords
	}

	queryLower := strings.ToLower(query)
	seen := make(map[string]bool)

	for _, kw := range vocabulary {
		if strings.Contains(queryLower, kw) && !seen[kw] {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	tokens := strings.Fields(queryLower)
	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}
	for _, token := range tokens {
		if !seen[token] {
			seen[token] = true
			keywords = append(keywords, token)
		}
	}

	sort.Strings(keywords)
	return keywords
}
