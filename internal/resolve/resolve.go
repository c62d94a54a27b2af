// Package resolve recovers a canonical post link from heterogeneous posting
// API payloads. Responses vary by provider version and tool, so resolution is
// a fallback chain: key-name search, then regex scan, then identifier
// synthesis. Returning "" is a valid outcome — a post can succeed without a
// resolvable link.
package resolve

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/tendly/social-pipeline/internal/platform"
)

// maxDepth bounds the structural search through nested payloads.
const maxDepth = 5

// urlKeys are the field names checked first at every object level.
var urlKeys = []string{"url", "post_url", "link", "permalink", "tweet_url", "status_url"}

// PostURL resolves the best canonical link for a post from its raw API
// response. destination is the configured fallback page for the platform
// (may be empty).
func PostURL(payload json.RawMessage, p platform.Platform, destination string) string {
	if len(payload) == 0 {
		return ""
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		if u := searchStructure(decoded, p); u != "" {
			return u
		}
	}

	serialized := string(payload)
	for _, pattern := range p.PostURLPatterns() {
		if m := pattern.FindString(serialized); m != "" {
			return m
		}
	}

	return p.SynthesizeURL(serialized, destination)
}

// frame is one pending node in the structural search.
type frame struct {
	value any
	depth int
}

// searchStructure walks the decoded payload with an explicit stack and depth
// counter rather than recursion, so arbitrarily nested external JSON cannot
// blow the stack and the depth limit stays a plain testable constant.
func searchStructure(root any, p platform.Platform) string {
	stack := []frame{{value: root, depth: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxDepth {
			continue
		}

		switch v := f.value.(type) {
		case map[string]any:
			for _, key := range urlKeys {
				if s, ok := v[key].(string); ok && isHTTP(s) {
					return s
				}
			}
			// Map iteration order is unspecified; the key-priority check
			// above is what keeps results deterministic.
			for _, child := range v {
				stack = append(stack, frame{value: child, depth: f.depth + 1})
			}

		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, frame{value: v[i], depth: f.depth + 1})
			}

		case string:
			// Bare strings count only when they point at the platform itself.
			if isHTTP(v) && hostMatches(v, p.ExpectedURLHosts()) {
				return v
			}
		}
	}
	return ""
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func hostMatches(rawURL string, hosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
