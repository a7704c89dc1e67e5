package mapping

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
	"git.home.luguber.info/inful/exposetext/internal/logfields"
)

var (
	// ErrGrowingReplacement is returned when a replacement is longer than the span it replaces.
	ErrGrowingReplacement = errors.New("replacement longer than the replaced span")
	// ErrNoConvergence is returned when a rule keeps matching without shrinking the text.
	ErrNoConvergence = errors.New("rule does not converge")
)

// Rule is one distillation step: every match of Pattern is replaced, either by
// Replace (with $1 style expansion) or by the result of Func when set.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Replace string
	Func    func(match string) string
	// Once limits the rule to a single pass instead of running to a fixed point.
	Once bool
}

func (r Rule) replacement(src string, loc []int) string {
	if r.Func != nil {
		return r.Func(src[loc[0]:loc[1]])
	}
	return string(r.Pattern.ExpandString(nil, r.Replace, src, loc))
}

// Mapper distils a source string into text while keeping the index from
// every byte of the text back to the source.
type Mapper struct {
	source  string
	scratch string
	index   *Index
	logger  *slog.Logger
}

// NewMapper starts a distillation of source. Initially the text is the source.
func NewMapper(source string) *Mapper {
	return &Mapper{
		source:  source,
		scratch: source,
		index:   Identity(len(source)),
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger used for per-rule debug output.
func (m *Mapper) WithLogger(logger *slog.Logger) *Mapper {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Source returns the source being distilled.
func (m *Mapper) Source() string { return m.source }

// Text returns the current distilled text.
func (m *Mapper) Text() string { return m.scratch }

// Index returns the current distilled→source index.
func (m *Mapper) Index() *Index { return m.index }

// RemoveSpan replaces text bytes [start,end) with replacement, which must not
// be longer than the span. The replacement bytes keep the source offsets of
// the first bytes of the span.
func (m *Mapper) RemoveSpan(start, end int, replacement string) error {
	if start < 0 || start > end || end > len(m.scratch) {
		return ferrors.InternalError("span out of range").
			WithContext("start", start).
			WithContext("end", end).
			WithContext("text_len", len(m.scratch)).
			Build()
	}
	if len(replacement) > end-start {
		return growing(start, end, replacement)
	}
	if err := m.index.Splice([]Edit{{Start: start, End: end, Keep: len(replacement)}}); err != nil {
		return err
	}
	m.scratch = m.scratch[:start] + replacement + m.scratch[end:]
	return nil
}

// Apply runs rule until no match changes the text any more, or for a single
// pass when rule.Once is set. It returns the number of replacements made.
func (m *Mapper) Apply(rule Rule) (int, error) {
	total := 0
	limit := len(m.scratch) + 2
	for pass := 0; ; pass++ {
		if pass > limit {
			return total, ferrors.WrapError(ErrNoConvergence, ferrors.CategoryInternal, "distillation failed").
				WithContext("rule", rule.Name).
				Fatal().
				Build()
		}
		n, err := m.pass(rule)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 || rule.Once {
			return total, nil
		}
	}
}

// pass replaces every effective match of rule in one sweep.
func (m *Mapper) pass(rule Rule) (int, error) {
	locs := rule.Pattern.FindAllStringSubmatchIndex(m.scratch, -1)
	if len(locs) == 0 {
		return 0, nil
	}

	edits := make([]Edit, 0, len(locs))
	repls := make([]string, 0, len(locs))
	for _, loc := range locs {
		matched := m.scratch[loc[0]:loc[1]]
		repl := rule.replacement(m.scratch, loc)
		if repl == matched {
			continue
		}
		if len(repl) > len(matched) {
			return 0, growing(loc[0], loc[1], repl).WithContext("rule", rule.Name)
		}
		edits = append(edits, Edit{Start: loc[0], End: loc[1], Keep: len(repl)})
		repls = append(repls, repl)
	}
	if len(edits) == 0 {
		return 0, nil
	}

	if err := m.index.Splice(edits); err != nil {
		return 0, err
	}
	var sb strings.Builder
	sb.Grow(len(m.scratch))
	cursor := 0
	for k, e := range edits {
		sb.WriteString(m.scratch[cursor:e.Start])
		sb.WriteString(repls[k])
		cursor = e.End
	}
	sb.WriteString(m.scratch[cursor:])
	m.scratch = sb.String()

	m.logger.Debug("Applied distillation rule",
		logfields.Rule(rule.Name),
		slog.Int("matches", len(edits)),
		logfields.TextLen(len(m.scratch)))
	return len(edits), nil
}

// Run applies rules in order.
func (m *Mapper) Run(rules ...Rule) error {
	for _, r := range rules {
		if _, err := m.Apply(r); err != nil {
			return err
		}
	}
	return nil
}

func growing(start, end int, repl string) *ferrors.ClassifiedError {
	return ferrors.WrapError(ErrGrowingReplacement, ferrors.CategoryInternal, "invalid replacement").
		WithContext("start", start).
		WithContext("end", end).
		WithContext("replacement", repl).
		Fatal().
		Build()
}
