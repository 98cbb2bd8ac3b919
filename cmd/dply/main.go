// Command dply evaluates a pipe-composed, dplyr-inspired expression
// language against CSV/NDJSON/Parquet files, from a script file, an
// inline -c string, or an interactive REPL.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vincev/dply/dplyerr"
	"github.com/vincev/dply/eval"
	"github.com/vincev/dply/parser"
	"github.com/vincev/dply/repl"
)

var (
	commandFlag string
	verboseFlag bool
)

func main() {
	root := &cobra.Command{
		Use:           "dply [SCRIPTFILE]",
		Short:         "Evaluate dplyr-inspired pipelines over CSV/NDJSON/Parquet",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVarP(&commandFlag, "command", "c", "", "evaluate SCRIPT instead of reading a file")
	root.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "log diagnostics to stderr")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(verboseFlag)
	defer log.Sync()

	switch {
	case commandFlag != "":
		return runScript(commandFlag, log)

	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", args[0], err)
		}
		return runScript(string(data), log)

	case isatty.IsTerminal(os.Stdin.Fd()):
		log.Debug("starting REPL session")
		r := repl.New(os.Stdout, log)
		defer r.Close()
		r.Run()
		return nil

	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("cannot read stdin: %w", err)
		}
		return runScript(string(data), log)
	}
}

func runScript(text string, log *zap.SugaredLogger) error {
	log.Debugw("parsing script")
	script, err := parser.Parse(text)
	if err != nil {
		printDiag(err)
		os.Exit(1)
	}

	ctx := eval.NewContext(os.Stdout)
	if err := ctx.Run(script); err != nil {
		printDiag(err)
		os.Exit(1)
	}
	return nil
}

func printDiag(err error) {
	if de, ok := err.(*dplyerr.Error); ok && de.Span != nil {
		fmt.Fprintf(os.Stderr, "%d:%d: %s\n", de.Span.Line, de.Span.Col, de.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

func newLogger(verbose bool) *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}
