// Package platform defines the closed set of publishing targets. Adding a
// platform means adding one variant here; no other package switches on
// platform strings.
package platform

import (
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"
)

// Platform describes one publishing target: its length constraint for the
// generator, its posting tool, and the URL shapes its API responses produce.
type Platform interface {
	// Key is the stable identifier persisted on draft rows.
	Key() string
	// Label is the human-readable name used in logs and the review UI.
	Label() string
	// MaxChars is the hard content length cap, enforced by the caller
	// rather than trusted from the completion service.
	MaxChars() int
	// MaxTokens bounds the completion call for this platform.
	MaxTokens() int64
	// ConstraintDescription is the per-platform requirement block injected
	// into the generation prompt.
	ConstraintDescription() string
	// ToolName is the posting tool executed against the Arcade API.
	ToolName() string
	// AuthProvider is the Arcade auth provider backing the posting tool.
	AuthProvider() string
	// ToolInput wraps post content in the tool's input payload.
	ToolInput(content string) map[string]any
	// AttachURL appends the document link to the post content.
	AttachURL(content, url string) string
	// ExpectedURLHosts lists hosts a bare string must match to count as a
	// post link for this platform.
	ExpectedURLHosts() []string
	// PostURLPatterns are the URL-shaped regexes scanned over serialized
	// API responses when key-based resolution finds nothing.
	PostURLPatterns() []*regexp.Regexp
	// SynthesizeURL attempts to build a post link from identifier fragments
	// in the serialized response. destination is the configured fallback
	// page. Returns "" when nothing can be built.
	SynthesizeURL(serialized, destination string) string
}

var (
	// ShortForm is the microblog target (Twitter/X).
	ShortForm Platform = shortForm{}
	// LongForm is the professional-network target (LinkedIn).
	LongForm Platform = longForm{}
)

// All returns every platform in generation order.
func All() []Platform {
	return []Platform{ShortForm, LongForm}
}

// Parse maps a stored platform key back to its variant.
func Parse(key string) (Platform, error) {
	for _, p := range All() {
		if p.Key() == key {
			return p, nil
		}
	}
	return nil, eris.Errorf("platform: unknown key %q", key)
}

// --- short form ---

type shortForm struct{}

func (shortForm) Key() string      { return "twitter" }
func (shortForm) Label() string    { return "Twitter/X" }
func (shortForm) MaxChars() int    { return 280 }
func (shortForm) MaxTokens() int64 { return 150 }

func (shortForm) ConstraintDescription() string {
	return `- Maximum 280 characters
- Include key details (budget, deadline)
- Make it engaging and professional
- Use relevant emoji sparingly
- Include hashtags: #PublicProcurement #Tenders
- Do NOT include URLs (they will be added separately)`
}

func (shortForm) ToolName() string     { return "X.PostTweet" }
func (shortForm) AuthProvider() string { return "arcade-x" }

func (shortForm) ToolInput(content string) map[string]any {
	return map[string]any{"tweet_text": content}
}

func (shortForm) AttachURL(content, url string) string {
	if url == "" {
		return content
	}
	return content + "\n\n" + url
}

func (shortForm) ExpectedURLHosts() []string {
	return []string{"twitter.com", "x.com"}
}

var shortFormURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://(?:twitter\.com|x\.com)/\w+/status/\d+`),
}

func (shortForm) PostURLPatterns() []*regexp.Regexp { return shortFormURLPatterns }

var (
	tweetIDPattern  = regexp.MustCompile(`"id":\s*"?(\d{15,20})"?`)
	usernamePattern = regexp.MustCompile(`"username":\s*"([^"]+)"`)
)

func (shortForm) SynthesizeURL(serialized, destination string) string {
	m := tweetIDPattern.FindStringSubmatch(serialized)
	if m == nil {
		return ""
	}
	username := "tendlyeu"
	if um := usernamePattern.FindStringSubmatch(serialized); um != nil {
		username = um[1]
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%s", username, m[1])
}

// --- long form ---

type longForm struct{}

func (longForm) Key() string      { return "linkedin" }
func (longForm) Label() string    { return "LinkedIn" }
func (longForm) MaxChars() int    { return 1000 }
func (longForm) MaxTokens() int64 { return 500 }

func (longForm) ConstraintDescription() string {
	return `- Professional tone suitable for LinkedIn
- 2-3 paragraphs (max 1000 characters)
- Highlight key opportunity aspects
- Include relevant hashtags
- Make it engaging for procurement professionals
- Do NOT include URLs (they will be added separately)`
}

func (longForm) ToolName() string     { return "Linkedin.CreateTextPost" }
func (longForm) AuthProvider() string { return "arcade-linkedin" }

func (longForm) ToolInput(content string) map[string]any {
	return map[string]any{"text": content}
}

func (longForm) AttachURL(content, url string) string {
	if url == "" {
		return content
	}
	return content + "\n\nLearn more: " + url
}

func (longForm) ExpectedURLHosts() []string {
	return []string{"linkedin.com", "www.linkedin.com"}
}

var longFormURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://www\.linkedin\.com/feed/update/[a-zA-Z0-9_:-]+`),
	regexp.MustCompile(`https://www\.linkedin\.com/posts/[a-zA-Z0-9_-]+`),
}

func (longForm) PostURLPatterns() []*regexp.Regexp { return longFormURLPatterns }

var (
	activityPattern = regexp.MustCompile(`"activity":\s*"?([a-zA-Z0-9_:-]{10,})"?`)
	postIDPattern   = regexp.MustCompile(`"post_id":\s*"?([a-zA-Z0-9_-]+)"?`)
	companyPattern  = regexp.MustCompile(`linkedin\.com/company/([^/]+)`)
)

func (longForm) SynthesizeURL(serialized, destination string) string {
	if m := activityPattern.FindStringSubmatch(serialized); m != nil {
		return "https://www.linkedin.com/feed/update/" + m[1]
	}
	if m := postIDPattern.FindStringSubmatch(serialized); m != nil {
		return "https://www.linkedin.com/posts/" + m[1]
	}
	if m := companyPattern.FindStringSubmatch(destination); m != nil {
		return "https://www.linkedin.com/company/" + m[1] + "/"
	}
	return ""
}
