// Package repl implements dply's interactive read-eval-print loop:
// prompt, history, and completion over github.com/peterh/liner, with
// each submitted line parsed and evaluated against a persistent
// eval.Context.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/eval"
	"github.com/vincev/dply/parser"
	"github.com/vincev/dply/signature"
)

const prompt = "dply> "

// REPL owns the line editor, the persistent evaluation context, and
// the history file path.
type REPL struct {
	line     *liner.State
	ctx      *eval.Context
	histPath string
	log      *zap.SugaredLogger
}

// New builds a REPL writing evaluation output to out and logging
// verbose diagnostics through log (pass a no-op logger when -v isn't
// set).
func New(out io.Writer, log *zap.SugaredLogger) *REPL {
	r := &REPL{
		line: liner.NewLiner(),
		ctx:  eval.NewContext(out),
		log:  log,
	}
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(r.complete)
	r.histPath = historyPath()
	r.loadHistory()
	return r
}

// Close persists history and releases the line editor's terminal
// state; callers should defer it.
func (r *REPL) Close() error {
	r.saveHistory()
	return r.line.Close()
}

// Run reads lines until EOF or an explicit ":quit", evaluating each
// non-empty line as a script. Parse/signature/runtime errors are
// printed to stderr and the session continues with the variable table
// intact, per the language's REPL error-handling rule.
func (r *REPL) Run() {
	for {
		text, err := r.line.Prompt(prompt)
		if err != nil {
			if err != liner.ErrPromptAborted && err != io.EOF {
				fmt.Fprintln(os.Stderr, err)
			}
			return
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if trimmed == ":quit" || trimmed == ":q" {
			return
		}

		r.line.AppendHistory(text)
		r.eval(trimmed)
	}
}

func (r *REPL) eval(text string) {
	r.log.Debugw("parsing submission", "text", text)
	script, err := parser.Parse(text)
	if err != nil {
		printErr(err)
		return
	}
	if err := signature.Check(script); err != nil {
		printErr(err)
		return
	}
	for _, p := range script.Pipelines {
		if err := r.ctx.RunPipeline(p); err != nil {
			printErr(err)
			return
		}
	}
}

func printErr(err error) {
	if de, ok := err.(*dplyerr.Error); ok && de.Span != nil {
		fmt.Fprintf(os.Stderr, "%d:%d: %s\n", de.Span.Line, de.Span.Col, de.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

// complete offers function names (with an opening paren), the most
// recently materialized frame's column names, and bound pipeline
// variable names, fuzzy-ranked against the partial word being typed.
// A leading '.' restricts candidates to columns/variables, since those
// are the identifiers a user completing a selector expression wants.
func (r *REPL) complete(line string) []string {
	word, columnsOnly := currentWord(line)
	if word == "" {
		return nil
	}

	var candidates []string
	if !columnsOnly {
		for name := range signature.Table {
			candidates = append(candidates, name+"(")
		}
	}
	for _, name := range r.ctx.LastSchema.Names() {
		candidates = append(candidates, name)
	}
	for _, name := range r.ctx.VariableNames() {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	matches := fuzzyFilter(candidates, strings.TrimPrefix(word, "."))
	prefix := line[:len(line)-len(word)]
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = prefix + m
	}
	return out
}

// currentWord returns the partial identifier at the end of line and
// whether it begins with '.', which restricts completion to
// columns/variables rather than function names.
func currentWord(line string) (string, bool) {
	i := len(line)
	for i > 0 {
		c := line[i-1]
		if c == ' ' || c == '(' || c == ',' || c == '|' {
			break
		}
		i--
	}
	word := line[i:]
	return word, strings.HasPrefix(word, ".")
}

func historyPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".config", "dply", "history")
}

func (r *REPL) loadHistory() {
	if r.histPath == "" {
		return
	}
	f, err := os.Open(r.histPath)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := r.line.ReadHistory(f); err != nil {
		r.log.Debugw("could not read history", "error", err)
	}
}

func (r *REPL) saveHistory() {
	if r.histPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.histPath), 0o755); err != nil {
		r.log.Debugw("could not create history directory", "error", err)
		return
	}
	f, err := os.Create(r.histPath)
	if err != nil {
		r.log.Debugw("could not write history", "error", err)
		return
	}
	defer f.Close()
	if _, err := r.line.WriteHistory(f); err != nil {
		r.log.Debugw("could not write history", "error", err)
	}
}
