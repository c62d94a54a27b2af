// Package summarizer turns a normalized tender into per-platform post copy
// via the completion service.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tendly/social-pipeline/internal/model"
	"github.com/tendly/social-pipeline/internal/platform"
	"github.com/tendly/social-pipeline/pkg/anthropic"
)

// Summarizer generates social post copy for tenders.
type Summarizer struct {
	client anthropic.Client
	model  string
}

// New creates a Summarizer backed by the given completion client.
func New(client anthropic.Client, completionModel string) *Summarizer {
	return &Summarizer{client: client, model: completionModel}
}

func systemPrompt() string {
	return fmt.Sprintf(
		"You are a professional social media manager specializing in public procurement and tender announcements. Today's date is %s. Always reference current trends and the current year.",
		time.Now().Format("2006-01-02"),
	)
}

func userPrompt(p platform.Platform, summary model.TenderSummary) string {
	return fmt.Sprintf(`Create a %s post about this tender opportunity:

Title: %s
Organization: %s
Budget: %s
Deadline: %s
Category: %s
Description: %s

Requirements:
%s`,
		p.Label(), summary.Title, summary.Organization, orUnspecified(summary.Budget),
		orUnspecified(summary.Deadline), summary.Category, summary.Description,
		p.ConstraintDescription(),
	)
}

func orUnspecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

// Summarize produces post content for one platform. The platform's character
// cap is enforced here by rune truncation; the completion service is asked
// for the limit but never trusted to honor it.
func (s *Summarizer) Summarize(ctx context.Context, p platform.Platform, summary model.TenderSummary) (string, error) {
	temp := 0.7
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   p.MaxTokens(),
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt()),
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(p, summary)}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrapf(err, "summarizer: %s completion", p.Key())
	}
	resp.Usage.LogCost(s.model, "generate_"+p.Key())

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", eris.Errorf("summarizer: empty %s completion", p.Key())
	}
	return Truncate(content, p.MaxChars()), nil
}

// Truncate cuts content to at most max runes, ending with an ellipsis when
// anything was dropped.
func Truncate(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max-1]) + "…"
}

// baseHashtags are always attached, regardless of category.
var baseHashtags = []string{"#PublicProcurement", "#Tenders", "#Tendly"}

// categoryHashtags maps category keywords to their extra tags. Checked in
// order; the first matching row wins.
var categoryHashtags = []struct {
	keywords []string
	tags     []string
}{
	{[]string{"it", "software"}, []string{"#ITTenders", "#SoftwareDevelopment"}},
	{[]string{"construction", "infrastructure"}, []string{"#Construction", "#Infrastructure"}},
	{[]string{"healthcare", "health"}, []string{"#Healthcare", "#HealthIT"}},
	{[]string{"energy", "green"}, []string{"#GreenEnergy", "#Sustainability"}},
	{[]string{"cybersecurity", "security"}, []string{"#Cybersecurity", "#InfoSec"}},
	{[]string{"transport", "smart city"}, []string{"#SmartCity", "#Transportation"}},
}

// Hashtags derives the tag list for a tender category. Deterministic: a fixed
// baseline set, up to one category-specific pair, and the market tag.
func Hashtags(category string) []string {
	lower := strings.ToLower(category)

	tags := make([]string, 0, 6)
	tags = append(tags, baseHashtags...)
	for _, row := range categoryHashtags {
		matched := false
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if matched {
			tags = append(tags, row.tags...)
			break
		}
	}
	return append(tags, "#Estonia")
}
