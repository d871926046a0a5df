package skeleton

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTitleIsUpperCasedAndLiteral(t *testing.T) {
	res := Build("hello 123\nworld")
	assert.True(t, strings.HasPrefix(res.Text, "HELLO 123"), res.Text)
	assert.Equal(t, 2, res.LineCount)
}

func TestBuildNumberedList(t *testing.T) {
	res := Build("TITLE\n1. Anne\n2. Brian")
	assert.Equal(t, "TITLE\n{idx}. {value}\n{idx}. {value}", res.Text)
	assert.GreaterOrEqual(t, res.SlotCount, 2)
	assert.Equal(t, 3, res.LineCount)
}

func TestBuildLines(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  string
		slots int
	}{
		{"url", "check https://open.spotify.com/track/abc now", "check {url} now", 1},
		{"two urls count once", "http://a.io and https://b.io", "{url} and {url}", 1},
		{"handle", "follow @night_owl and @maya", "follow {handle} and {handle}", 1},
		{"short handle ignored", "me @x", "me @x", 0},
		{"paren index", "2) coraline", "{idx}) {value}", 1},
		{"dash bullet", "- spirited away", "{bullet} {value}", 1},
		{"unicode bullet", "• oat milk", "{bullet} {value}", 1},
		{"bare bullet", "-", "{bullet}", 0},
		{"numbers", "19 ♡ pisces", "{num} ♡ pisces", 0},
		{"long numbers kept", "12345 fans", "12345 fans", 0},
		{"adjacent numbers collapse", "born 12 03 2004", "born {num}", 0},
		{"label", "fav song: espresso", "fav song: {value}", 1},
		{"label after url", "spotify: https://x.io/y", "spotify: {value}", 2},
		{"plain text", "sad girl hours", "sad girl hours", 0},
	}
	s := New(DefaultRules())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, slots := s.Line(tt.line)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.slots, slots)
		})
	}
}

func TestBuildNormalization(t *testing.T) {
	res := Build("  Bio  \r\n\r\n\r\n\r\nshe/her\t\t⚡\n   \n19   ♡ pisces  ")
	assert.Equal(t, "BIO\nshe/her ⚡\n{num} ♡ pisces", res.Text)
	assert.Equal(t, 3, res.LineCount)
	assert.Equal(t, 0, res.SlotCount)
}

func TestBuildEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\r\n\t"} {
		res := Build(in)
		assert.Equal(t, "", res.Text)
		assert.Equal(t, Signature(""), res.Sig)
		assert.Equal(t, 0, res.LineCount)
		assert.Equal(t, 0, res.SlotCount)
	}
}

func TestBuildToleratesMalformedInput(t *testing.T) {
	inputs := []string{"\xff\xfe\nbad \xc3", "title\n((( [[ {{", "🎧🎧🎧\n✨ delulu era ✨"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Build(in) })
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	in := "Movies\n\n1. spirited away\n2. coraline\n3. ratatouille\n4. wall-e"
	a := Build(in)
	b := New(DefaultRules()).Build(in)
	assert.Equal(t, a, b)
	assert.Len(t, a.Sig, 64)
	// Pinned so any change to the rule list shows up as a signature change.
	assert.Equal(t, Signature("MOVIES\n{idx}. {value}\n{idx}. {value}\n{idx}. {value}\n{idx}. {value}"), a.Sig)
}

func TestBuildIsIdempotentOnSkeletons(t *testing.T) {
	inputs := []string{
		"hello\nworld",
		"TITLE\n1. Anne\n2. Brian",
		"Links\nspotify: https://x.io\n- @maya\n1 2 3 4\nborn 2004",
		"Bio\nshe/her ⚡\n19 ♡ pisces ♓\nlondon 🌧️",
	}
	for _, in := range inputs {
		first := Build(in)
		second := Build(first.Text)
		assert.Equal(t, first.Text, second.Text, "input %q", in)
		assert.Equal(t, first.Sig, second.Sig)
	}
}

func TestSameFormDifferentValuesShareSignature(t *testing.T) {
	a := Build("Top friends\n1. Anne\n2. Brian\n3. Chris")
	b := Build("top friends\n1. Zed\n2. Yara\n3. Xavier")
	require.Equal(t, a.Text, b.Text)
	assert.Equal(t, a.Sig, b.Sig)

	c := Build("top friends\n1. Zed\n2. Yara")
	assert.NotEqual(t, a.Sig, c.Sig)
}

func TestPlaceholdersContainNoDigits(t *testing.T) {
	for _, p := range []string{URL, Handle, Index, Bullet, Num, Value} {
		assert.False(t, strings.ContainsAny(p, "0123456789"), p)
	}
}

func TestNewCopiesRules(t *testing.T) {
	rules := DefaultRules()
	s := New(rules)
	rules[0] = rules[len(rules)-1]

	got, slots := s.Line("see https://a.io")
	assert.Equal(t, "see {url}", got)
	assert.Equal(t, 1, slots)
}
