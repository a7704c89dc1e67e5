package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/exposetext/internal/foundation/errors"
)

const sampleText = "This is the content of a text file."

type fixture struct {
	dir     string
	cli     *CLI
	out     *bytes.Buffer
	global  *Global
	metrics string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		out:     &bytes.Buffer{},
		metrics: filepath.Join(dir, "exposetext.prom"),
	}
	f.global = &Global{Out: f.out}
	cfg := fmt.Sprintf("metrics:\n  textfile: %s\nwatch:\n  debounce: 10ms\n", f.metrics)
	f.cli = &CLI{Config: f.write(t, "exposetext.yaml", cfg)}
	return f
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestText(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.txt", sampleText)

	require.NoError(t, (&TextCmd{Path: doc}).Run(f.global, f.cli))
	assert.Equal(t, sampleText+"\n", f.out.String())
	assert.Contains(t, f.read(t, f.metrics), `exposetext_operations_total{operation="text",result="success"} 1`)
}

func TestTextFormatOverride(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "README", "# Title\n\nSome *text*.\n")

	require.NoError(t, (&TextCmd{Path: doc, Format: "md"}).Run(f.global, f.cli))
	assert.Equal(t, "Title\nSome text.\n", f.out.String())
}

func TestTextUnsupported(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.odt", "x")

	err := (&TextCmd{Path: doc}).Run(f.global, f.cli)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	assert.Contains(t, f.read(t, f.metrics), `exposetext_operations_total{operation="text",result="failed"} 1`)
}

func TestApplyAlterFlags(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.txt", sampleText)
	out := filepath.Join(f.dir, "out.txt")

	cmd := &ApplyCmd{Path: doc, Alter: []string{"0:4:That"}, Output: out, PrintText: true}
	require.NoError(t, cmd.Run(f.global, f.cli))

	assert.Equal(t, "That is the content of a text file.", f.read(t, out))
	assert.Equal(t, "That is the content of a text file.\n", f.out.String())
	assert.Equal(t, sampleText, f.read(t, doc))

	prom := f.read(t, f.metrics)
	assert.Contains(t, prom, `exposetext_operations_total{operation="apply",result="success"} 1`)
	assert.Contains(t, prom, `exposetext_alterations_applied_total{format=".txt"} 1`)
}

func TestApplyPlanInPlace(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "page.html", "<h1>German paragraph</h1>\n<p>1. Glücklich macht mich</p>")
	planPath := f.write(t, "plan.yaml", "alterations:\n  - {start: 0, end: 20, text: \"\"}\nreplacements:\n  - {pattern: mich, text: uns}\n")

	require.NoError(t, (&ApplyCmd{Path: doc, Plan: planPath, InPlace: true}).Run(f.global, f.cli))
	assert.Equal(t, "<h1></h1>\n<p>Glücklich macht uns</p>", f.read(t, doc))
}

func TestApplyStdout(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.md", "Some **bold** text.\n")

	require.NoError(t, (&ApplyCmd{Path: doc, Alter: []string{"5:9:fat"}, Output: "-"}).Run(f.global, f.cli))
	assert.Equal(t, "Some **fat** text.\n", f.out.String())
}

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.txt", sampleText)

	tests := []struct {
		name string
		cmd  ApplyCmd
	}{
		{name: "no output", cmd: ApplyCmd{Path: doc, Alter: []string{"0:1:x"}}},
		{name: "output and in-place", cmd: ApplyCmd{Path: doc, Alter: []string{"0:1:x"}, Output: "-", InPlace: true}},
		{name: "print text to stdout output", cmd: ApplyCmd{Path: doc, Alter: []string{"0:1:x"}, Output: "-", PrintText: true}},
		{name: "nothing to apply", cmd: ApplyCmd{Path: doc, Output: "-"}},
		{name: "malformed alteration", cmd: ApplyCmd{Path: doc, Alter: []string{"0-1"}, Output: "-"}},
		{name: "out of bounds", cmd: ApplyCmd{Path: doc, Alter: []string{"0:99:x"}, Output: "-"}},
		{name: "overlap", cmd: ApplyCmd{Path: doc, Alter: []string{"0:4:a", "2:6:b"}, Output: "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			err := tt.cmd.Run(f.global, f.cli)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), err.Error())
			assert.Empty(t, f.out.String())
		})
	}
	assert.Equal(t, sampleText, f.read(t, doc))
}

func TestFormats(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, (&FormatsCmd{}).Run(f.global, f.cli))
	assert.Equal(t, []string{".docx", ".htm", ".html", ".markdown", ".md", ".pdf", ".txt"},
		strings.Fields(f.out.String()))
}

func TestInit(t *testing.T) {
	f := newFixture(t)
	cli := &CLI{Config: filepath.Join(f.dir, "new.yaml")}

	require.NoError(t, (&InitCmd{}).Run(f.global, cli))
	assert.Contains(t, f.read(t, cli.Config), "encoding: windows-1252")

	err := (&InitCmd{}).Run(f.global, cli)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.NoError(t, (&InitCmd{Force: true}).Run(f.global, cli))
}

func TestBrokenConfig(t *testing.T) {
	f := newFixture(t)
	f.cli.Config = f.write(t, "broken.yaml", "pdf:\n  encoding: utf-8\n")
	doc := f.write(t, "doc.txt", sampleText)

	err := (&TextCmd{Path: doc}).Run(f.global, f.cli)
	require.Error(t, err)
	assert.Equal(t, 7, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestWatchValidate(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.txt", sampleText)
	planPath := f.write(t, "plan.yaml", "")

	for _, out := range []string{doc, planPath, "-"} {
		err := (&WatchCmd{Path: doc, Plan: planPath, Output: out}).validate()
		require.Error(t, err, out)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	}
	require.NoError(t, (&WatchCmd{Path: doc, Plan: planPath, Output: filepath.Join(f.dir, "out.txt")}).validate())
}

func TestWatchReappliesOnPlanChange(t *testing.T) {
	f := newFixture(t)
	doc := f.write(t, "doc.txt", sampleText)
	planPath := f.write(t, "plan.yaml", "alterations:\n  - {start: 0, end: 4, text: That}\n")
	out := filepath.Join(f.dir, "out.txt")

	s, err := f.cli.session()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	cmd := &WatchCmd{Path: doc, Plan: planPath, Output: out}
	go func() { done <- cmd.run(ctx, s) }()

	readOut := func() string {
		data, _ := os.ReadFile(out)
		return string(data)
	}
	require.Eventually(t, func() bool {
		return readOut() == "That is the content of a text file."
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(planPath, []byte("replacements:\n  - {pattern: text file, text: note}\n"), 0o600))
	require.Eventually(t, func() bool {
		return readOut() == "This is the content of a note."
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, f.read(t, f.metrics), "exposetext_operations_total")
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	journal := filepath.Join(f.dir, "journal.db")
	f.cli.Config = f.write(t, "journal.yaml", fmt.Sprintf("journal:\n  path: %s\n", journal))
	doc := f.write(t, "doc.txt", sampleText)
	out := filepath.Join(f.dir, "out.txt")

	require.NoError(t, (&ApplyCmd{Path: doc, Alter: []string{"0:4:That"}, Output: out}).Run(f.global, f.cli))
	require.Error(t, (&ApplyCmd{Path: doc, Alter: []string{"0:99:x"}, Output: out}).Run(f.global, f.cli))

	f.out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 10}).Run(f.global, f.cli))
	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "document.applied")
	assert.Contains(t, lines[0], doc+" -> "+out)
	assert.Contains(t, lines[0], "1 alterations")
	assert.Contains(t, lines[1], "document.failed")
	assert.Contains(t, lines[1], "error: ")

	f.out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 1}).Run(f.global, f.cli))
	assert.Contains(t, f.out.String(), "document.failed")
	assert.NotContains(t, f.out.String(), "document.applied")
}

func TestHistoryWithoutJournal(t *testing.T) {
	f := newFixture(t)
	err := (&HistoryCmd{Limit: 10}).Run(f.global, f.cli)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
