// Package skeleton reduces block text to its structural skeleton: a canonical form where variable content
// (names, numbers, links, handles) is replaced by typed placeholders, plus a signature for exact-match lookup.
package skeleton

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

// Placeholder spellings. None of them may contain a digit, otherwise the number rule would rewrite them.
const (
	URL    = "{url}"
	Handle = "{handle}"
	Index  = "{idx}"
	Bullet = "{bullet}"
	Num    = "{num}"
	Value  = "{value}"
)

// Result is the skeleton of one block's content.
type Result struct {
	Text      string `json:"skeleton_text"`
	Sig       string `json:"skeleton_sig"`
	SlotCount int    `json:"slot_count"`
	LineCount int    `json:"line_count"`
}

// Rule is one substitution step applied to every non-title line.
// Slot marks rules whose match contributes one slot to the line.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
	Slot    bool
}

func (r Rule) apply(line string) (string, bool) {
	if !r.Pattern.MatchString(line) {
		return line, false
	}
	return r.Pattern.ReplaceAllString(line, r.Replace), true
}

// Rules is an ordered rule list. Order matters: each rule sees the output of the previous one.
type Rules []Rule

// DefaultRules returns a fresh copy of the built-in rule list.
func DefaultRules() Rules {
	return Rules{
		{Name: "url", Pattern: regexp.MustCompile(`(?i)\bhttps?://\S+`), Replace: URL, Slot: true},
		{Name: "handle", Pattern: regexp.MustCompile(`(?i)@[a-z0-9_]{2,}`), Replace: Handle, Slot: true},
		{Name: "index", Pattern: regexp.MustCompile(`^(\s*)(\d{1,3})([.)])(\s*)`), Replace: "${1}" + Index + "${3}${4}"},
		{Name: "bullet", Pattern: regexp.MustCompile(`^(\s*)([-*•])(\s*)`), Replace: "${1}" + Bullet + "${3}"},
		{Name: "number", Pattern: regexp.MustCompile(`\b\d{1,4}\b`), Replace: Num},
		{Name: "index-value", Pattern: regexp.MustCompile(`^(\{idx\}[.)]\s*)(.+)$`), Replace: "${1}" + Value, Slot: true},
		{Name: "bullet-value", Pattern: regexp.MustCompile(`^(\{bullet\}\s*)(.+)$`), Replace: "${1}" + Value, Slot: true},
		{Name: "label-value", Pattern: regexp.MustCompile(`^(.{2,30}:\s*)(.+)$`), Replace: "${1}" + Value, Slot: true},
		{Name: "collapse-num", Pattern: regexp.MustCompile(`\{num\}(?:\s*\{num\})+`), Replace: Num},
	}
}

var (
	crlf        = regexp.MustCompile(`\r\n`)
	hspace      = regexp.MustCompile(`[ \t]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
	defaultSkel = New(DefaultRules())
)

// Skeletonizer applies a frozen rule list. It is safe for concurrent use.
type Skeletonizer struct {
	rules Rules
}

// New copies rules so later changes to the caller's slice cannot affect the skeletonizer.
func New(rules Rules) *Skeletonizer {
	return &Skeletonizer{rules: append(Rules(nil), rules...)}
}

// Build skeletonizes raw with the default rules.
func Build(raw string) Result {
	return defaultSkel.Build(raw)
}

// Build computes the skeleton of raw. It accepts any input, including empty and invalid UTF-8.
func (s *Skeletonizer) Build(raw string) Result {
	lines := NormalizedLines(raw)

	slots := 0
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			out = append(out, strings.ToUpper(line))
			continue
		}
		skel, n := s.Line(line)
		slots += n
		out = append(out, skel)
	}

	text := strings.TrimSpace(strings.Join(out, "\n"))
	return Result{
		Text:      text,
		Sig:       Signature(text),
		SlotCount: slots,
		LineCount: len(out),
	}
}

// Line reduces a single non-title line and reports how many slots it contributed.
func (s *Skeletonizer) Line(line string) (string, int) {
	out := strings.TrimSpace(line)
	slots := 0
	for _, r := range s.rules {
		var matched bool
		out, matched = r.apply(out)
		if matched && r.Slot {
			slots++
		}
	}
	return out, slots
}

// Normalize collapses CRLF, horizontal whitespace runs and long blank-line runs, then trims.
func Normalize(s string) string {
	s = crlf.ReplaceAllString(s, "\n")
	s = hspace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// NormalizedLines returns the non-blank, right-trimmed lines of the normalized text.
func NormalizedLines(raw string) []string {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil
	}
	var lines []string
	for _, l := range strings.Split(normalized, "\n") {
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// Signature is the hex SHA-256 of the skeleton text bytes.
func Signature(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
