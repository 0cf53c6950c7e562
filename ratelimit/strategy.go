// Package ratelimit mines arbitrarily-shaped upstream JSON for per-model
// remaining/reset values. Upstream rate-limit payloads are not a stable
// contract: field names drift per model and per release, so extraction is
// tolerant and scored rather than a fixed-path lookup.
package ratelimit

import "strings"

// baseRemainingKeys and baseResetKeys are the key fragments every strategy
// falls back to once model-specific tokens are exhausted.
var (
	baseRemainingKeys = []string{"remainingtokens", "remaining", "quota", "left", "available", "balance"}
	baseResetKeys     = []string{"resetat", "retryafter", "timeuntilreset", "cooldownuntil"}
)

// Strategy is a per-model ordered list of candidate key fragments to look
// for when walking a rate-limit response, most-specific first.
type Strategy struct {
	Aliases       []string
	Tokens        []string
	RemainingKeys []string
	ResetKeys     []string
}

// BuildStrategy derives a Strategy from a model name and its rate-limit
// alias (often the same string, sometimes a distinct bucket name upstream
// uses for limiting).
func BuildStrategy(modelName, rateLimitAlias string) Strategy {
	aliases := dedupe([]string{normalize(modelName), normalize(rateLimitAlias)})
	tokens := tokensOf(aliases)

	return Strategy{
		Aliases:       aliases,
		Tokens:        tokens,
		RemainingKeys: buildPriorityList(tokens, baseRemainingKeys),
		ResetKeys:     buildPriorityList(tokens, baseResetKeys),
	}
}

// keyBonus scores how strongly a normalised object key resembles the model
// this strategy targets: an exact alias match beats a substring alias
// match, which beats token matches.
func (s Strategy) keyBonus(normKey string) int {
	for _, a := range s.Aliases {
		if a == "" {
			continue
		}

		if normKey == a {
			return 120
		}

		if strings.Contains(normKey, a) {
			return 70
		}
	}

	for _, tok := range s.Tokens {
		if normKey == tok {
			return 45
		}

		if strings.Contains(normKey, tok) {
			return 25
		}
	}

	return 0
}

// hintKeys are object keys whose string value, when it names the target
// model, doubles the match bonuses of every sibling key.
var hintKeys = map[string]bool{
	"model":  true,
	"name":   true,
	"bucket": true,
	"id":     true,
	"alias":  true,
	"slug":   true,
}

// normalize lowercases s and keeps only [a-z0-9] characters.
func normalize(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// tokensOf extracts alpha tokens of length >= 2 from each alias, by
// splitting on digit boundaries since normalize already stripped
// everything but [a-z0-9].
func tokensOf(aliases []string) []string {
	var tokens []string

	for _, a := range aliases {
		var cur strings.Builder

		flush := func() {
			if cur.Len() >= 2 {
				tokens = append(tokens, cur.String())
			}

			cur.Reset()
		}

		for _, r := range a {
			if r >= 'a' && r <= 'z' {
				cur.WriteRune(r)
			} else {
				flush()
			}
		}

		flush()
	}

	return dedupe(tokens)
}

// buildPriorityList prefixes and suffixes each token onto the base key set,
// then appends the base set itself, removing duplicates while preserving
// order (earliest occurrence wins, i.e. highest priority).
func buildPriorityList(tokens, base []string) []string {
	var out []string

	for _, tok := range tokens {
		for _, key := range base {
			out = append(out, tok+key, key+tok)
		}
	}

	out = append(out, base...)

	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))

	out := make([]string, 0, len(in))

	for _, s := range in {
		if s == "" {
			continue
		}

		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}

		out = append(out, s)
	}

	return out
}
