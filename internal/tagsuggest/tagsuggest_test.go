package tagsuggest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigbio/internal/skeleton"
)

func TestSuggestFollowsRuleOrder(t *testing.T) {
	s := Default()
	got := s.Suggest("my Spotify top 5 and my FRIENDS")
	assert.Equal(t, []string{"friends", "music", "lists"}, got)
}

func TestSuggestEmpty(t *testing.T) {
	got := Default().Suggest("")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Default().Suggest())
}

func TestSuggestUsesSkeletonAndRaw(t *testing.T) {
	raw := "comfort movies 🎬\n\n1. spirited away\n2. coraline"
	res := skeleton.Build(raw)
	assert.Equal(t, []string{"movies", "lists"}, Default().Suggest(res.Text, raw))
}

func TestSuggestIsBounded(t *testing.T) {
	text := "friends crush spotify fortnite movies top 3 remix she/her pisces vibes"
	got := Default().Suggest(text)
	require.Len(t, got, MaxTags)
	assert.Equal(t, []string{"friends", "relationships", "music", "games", "movies", "lists", "prompt", "pronouns"}, got)
}

func TestSuggestDeduplicatesTags(t *testing.T) {
	s, err := New([]Rule{
		{Tag: "music", Pattern: `song`},
		{Tag: "music", Pattern: `album`},
		{Tag: "games", Pattern: `elo`},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"music", "games"}, s.Suggest("song album elo"))
}

func TestNewRejectsBadRules(t *testing.T) {
	_, err := New([]Rule{{Tag: "x", Pattern: `(`}})
	assert.Error(t, err)

	_, err = New([]Rule{{Tag: "", Pattern: `x`}})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tags.yaml")
	content := `rules:
  - tag: coffee
    pattern: '\b(?:coffee|matcha|latte)\b'
  - tag: books
    pattern: '\bnovels?\b'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"coffee", "books"}, s.Suggest("romance NOVELS\nMatcha girlie"))
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("rules: []\n"), 0o644))
	_, err = LoadFile(empty)
	assert.Error(t, err)
}
