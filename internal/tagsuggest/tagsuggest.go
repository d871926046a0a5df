// Package tagsuggest infers category tags for a block from lexical patterns.
package tagsuggest

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// MaxTags bounds the number of suggestions returned for one block.
const MaxTags = 8

// Rule contributes Tag when Pattern matches. Patterns are always matched case-insensitively.
type Rule struct {
	Tag     string `yaml:"tag"`
	Pattern string `yaml:"pattern"`
}

type compiledRule struct {
	tag string
	re  *regexp.Regexp
}

// Suggester holds an ordered, compiled rule list. It is immutable after construction.
type Suggester struct {
	rules []compiledRule
}

// DefaultRules is the built-in rule list, in output order.
func DefaultRules() []Rule {
	return []Rule{
		{Tag: "friends", Pattern: `\b(?:friends?|besties?|bff)\b`},
		{Tag: "relationships", Pattern: `\b(?:boyfriend|girlfriend|crush|dating|relationships?)\b`},
		{Tag: "music", Pattern: `\b(?:spotify|songs?|tracks?|albums?|artists?|playlists?)\b`},
		{Tag: "games", Pattern: `\b(?:fortnite|rank|elo|maps?)\b`},
		{Tag: "movies", Pattern: `\b(?:movies?|films?|watchlist|netflix)\b`},
		{Tag: "lists", Pattern: `\btop\s*(?:\d+|\{num\})|^\s*\{idx\}|^\s*\d{1,3}[.)]\s`},
		{Tag: "prompt", Pattern: `\b(?:remix|comment|tag)\b`},
		{Tag: "pronouns", Pattern: `\b(?:she/her|he/him|they/them|pronouns)\b`},
		{Tag: "zodiac", Pattern: `\b(?:aries|taurus|gemini|cancer|leo|virgo|libra|scorpio|sagittarius|capricorn|aquarius|pisces)\b`},
		{Tag: "mood", Pattern: `\b(?:mood|vibes?|era|aesthetic)\b`},
	}
}

// New compiles rules in order. Duplicate tags keep their first position.
func New(rules []Rule) (*Suggester, error) {
	s := &Suggester{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Tag == "" {
			return nil, fmt.Errorf("tag rule %d: empty tag", i)
		}
		re, err := regexp.Compile(`(?im)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("tag rule %q: %w", r.Tag, err)
		}
		s.rules = append(s.rules, compiledRule{tag: r.Tag, re: re})
	}
	return s, nil
}

// Default returns a Suggester over DefaultRules.
func Default() *Suggester {
	s, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return s
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFile builds a Suggester from a YAML file of the form `rules: [{tag, pattern}]`.
func LoadFile(path string) (*Suggester, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag rules %s: %w", path, err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tag rules %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("tag rules %s: no rules", path)
	}
	return New(f.Rules)
}

// Suggest returns the tags whose rule matches any of texts, in rule order, at most MaxTags.
func (s *Suggester) Suggest(texts ...string) []string {
	tags := make([]string, 0, MaxTags)
	seen := make(map[string]bool, len(s.rules))
	for _, r := range s.rules {
		if len(tags) == MaxTags {
			break
		}
		if seen[r.tag] {
			continue
		}
		for _, text := range texts {
			if text != "" && r.re.MatchString(text) {
				seen[r.tag] = true
				tags = append(tags, r.tag)
				break
			}
		}
	}
	return tags
}
