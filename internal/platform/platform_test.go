package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	for _, p := range All() {
		got, err := Parse(p.Key())
		require.NoError(t, err)
		assert.Equal(t, p.Key(), got.Key())
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("mastodon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestShortForm_Basics(t *testing.T) {
	assert.Equal(t, "twitter", ShortForm.Key())
	assert.Equal(t, 280, ShortForm.MaxChars())
	assert.Equal(t, "X.PostTweet", ShortForm.ToolName())
	assert.Equal(t, "arcade-x", ShortForm.AuthProvider())
	assert.Equal(t, map[string]any{"tweet_text": "hello"}, ShortForm.ToolInput("hello"))
}

func TestLongForm_Basics(t *testing.T) {
	assert.Equal(t, "linkedin", LongForm.Key())
	assert.Equal(t, 1000, LongForm.MaxChars())
	assert.Equal(t, "Linkedin.CreateTextPost", LongForm.ToolName())
	assert.Equal(t, "arcade-linkedin", LongForm.AuthProvider())
	assert.Equal(t, map[string]any{"text": "hello"}, LongForm.ToolInput("hello"))
}

func TestAttachURL(t *testing.T) {
	assert.Equal(t, "post\n\nhttps://example.com",
		ShortForm.AttachURL("post", "https://example.com"))
	assert.Equal(t, "post\n\nLearn more: https://example.com",
		LongForm.AttachURL("post", "https://example.com"))

	// No URL, content unchanged.
	assert.Equal(t, "post", ShortForm.AttachURL("post", ""))
	assert.Equal(t, "post", LongForm.AttachURL("post", ""))
}

func TestShortForm_PostURLPatterns(t *testing.T) {
	body := `{"data": {"note": "see https://x.com/tendlyeu/status/1845612345678901234 for details"}}`
	found := ""
	for _, pattern := range ShortForm.PostURLPatterns() {
		if m := pattern.FindString(body); m != "" {
			found = m
			break
		}
	}
	assert.Equal(t, "https://x.com/tendlyeu/status/1845612345678901234", found)
}

func TestShortForm_SynthesizeURL(t *testing.T) {
	tests := []struct {
		name       string
		serialized string
		want       string
	}{
		{
			name:       "id with username",
			serialized: `{"id": "1845612345678901234", "username": "procurebot"}`,
			want:       "https://twitter.com/procurebot/status/1845612345678901234",
		},
		{
			name:       "id without username falls back to default handle",
			serialized: `{"id": 1845612345678901234}`,
			want:       "https://twitter.com/tendlyeu/status/1845612345678901234",
		},
		{
			name:       "short numeric id is not a tweet id",
			serialized: `{"id": "42"}`,
			want:       "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortForm.SynthesizeURL(tt.serialized, ""))
		})
	}
}

func TestLongForm_SynthesizeURL(t *testing.T) {
	tests := []struct {
		name        string
		serialized  string
		destination string
		want        string
	}{
		{
			name:       "activity id",
			serialized: `{"activity": "urn:li:activity:7123456789"}`,
			want:       "https://www.linkedin.com/feed/update/urn:li:activity:7123456789",
		},
		{
			name:       "post id",
			serialized: `{"post_id": "abc-123"}`,
			want:       "https://www.linkedin.com/posts/abc-123",
		},
		{
			name:        "destination company fallback",
			serialized:  `{"ok": true}`,
			destination: "https://www.linkedin.com/company/tendly",
			want:        "https://www.linkedin.com/company/tendly/",
		},
		{
			name:       "nothing resolvable",
			serialized: `{"ok": true}`,
			want:       "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongForm.SynthesizeURL(tt.serialized, tt.destination))
		})
	}
}
