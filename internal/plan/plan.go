// Package plan reads alteration plans: YAML files listing the alterations to
// queue on a document.
//
//	alterations:
//	  - {start: 0, end: 4, text: "That"}
//	replacements:
//	  - {pattern: "(?i)glücklich", text: "froh"}
//
// Offsets count runes of the distilled text. A replacement queues one
// alteration per match of its pattern; the text may reference groups as $1.
package plan

import (
	"bytes"
	"errors"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

// Alteration replaces the runes [Start,End) of the text.
type Alteration struct {
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Text  string `yaml:"text"`
}

// Replacement replaces every match of Pattern.
type Replacement struct {
	Pattern string `yaml:"pattern"`
	Text    string `yaml:"text"`

	re *regexp.Regexp
}

// Plan is a parsed alteration plan.
type Plan struct {
	Alterations  []Alteration  `yaml:"alterations"`
	Replacements []Replacement `yaml:"replacements"`
}

// Target is what a plan is queued on.
type Target interface {
	Text() string
	AddAlter(start, end int, text string) error
}

// Parse decodes and validates a plan. Unknown fields are rejected.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid plan").UserAction().Build()
	}
	for i := range p.Replacements {
		r := &p.Replacements[i]
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid replacement pattern").
				WithContext("pattern", r.Pattern).
				UserAction().
				Build()
		}
		r.re = re
	}
	return &p, nil
}

// Load reads and parses the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot read plan").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// ParseAlteration parses the command line form "start:end:text". The text
// may itself contain colons.
func ParseAlteration(s string) (Alteration, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Alteration{}, ferrors.ValidationError("alteration must be start:end:text").
			WithContext("alteration", s).
			Build()
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err := errors.Join(err1, err2); err != nil {
		return Alteration{}, ferrors.WrapError(err, ferrors.CategoryValidation, "alteration offsets must be integers").
			WithContext("alteration", s).
			UserAction().
			Build()
	}
	return Alteration{Start: start, End: end, Text: parts[2]}, nil
}

// Queue adds every alteration of the plan to t, then every replacement
// match, stopping at the first error. Matches are taken from the text as it
// is when Queue starts.
func (p *Plan) Queue(t Target) (int, error) {
	n := 0
	for _, a := range p.Alterations {
		if err := t.AddAlter(a.Start, a.End, a.Text); err != nil {
			return n, err
		}
		n++
	}
	text := t.Text()
	for _, r := range p.Replacements {
		re := r.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(r.Pattern); err != nil {
				return n, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid replacement pattern").
					WithContext("pattern", r.Pattern).
					Build()
			}
		}
		runes := newRuneCounter(text)
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			repl := string(re.ExpandString(nil, r.Text, text, loc))
			if err := t.AddAlter(runes.at(loc[0]), runes.at(loc[1]), repl); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// runeCounter converts increasing byte offsets of a string to rune offsets.
type runeCounter struct {
	s     string
	bytes int
	runes int
}

func newRuneCounter(s string) *runeCounter { return &runeCounter{s: s} }

func (c *runeCounter) at(b int) int {
	c.runes += utf8.RuneCountInString(c.s[c.bytes:b])
	c.bytes = b
	return c.runes
}
