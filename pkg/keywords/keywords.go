// Package keywords expands a product name into search queries.
package keywords

import (
	"regexp"
	"strings"
)

// MaxKeywords caps the number of queries generated per product
const MaxKeywords = 8

var suffixes = []string{
	"review",
	"unboxing",
	"test",
	"hands-on",
	"setup",
	"performance",
	"comparison",
}

var networkingExtras = []string{
	"wifi router review",
	"mesh router review",
}

// networkingPattern matches router and mesh category words, common
// networking brands, and Wi-Fi generation model prefixes such as BE9300 or AX6000.
var networkingPattern = regexp.MustCompile(`(?i)(router|wi-?fi|mesh|orbi|zenwifi|eero|archer|deco|\b(be|ax|ac)\d*\b)`)

// IsNetworkingProduct reports whether name looks like a router or mesh system
func IsNetworkingProduct(name string) bool {
	return networkingPattern.MatchString(name)
}

// Generate returns the ordered, de-duplicated queries for a product name.
// The trimmed name comes first; at most MaxKeywords entries are returned.
// A blank name yields no queries.
func Generate(productName string) []string {
	base := strings.TrimSpace(productName)
	if base == "" {
		return nil
	}

	candidates := make([]string, 0, 1+len(suffixes)+len(networkingExtras))
	candidates = append(candidates, base)
	for _, suffix := range suffixes {
		candidates = append(candidates, base+" "+suffix)
	}
	if IsNetworkingProduct(base) {
		for _, extra := range networkingExtras {
			candidates = append(candidates, base+" "+extra)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, MaxKeywords)
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}
