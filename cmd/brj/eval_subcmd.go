package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bridjelang/bridje/internal/engine"
	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/reader"
)

const (
	EVAL_SOURCE_NAME = "<eval>"
)

// EvalExpression evaluates the forms of an expression passed as argument and prints the value
// of the last one.
func EvalExpression(ctx context.Context, mainSubCommand string, mainSubCommandArgs []string, outW, errW io.Writer) (exitCode int) {
	flags := flag.NewFlagSet(mainSubCommand, flag.ContinueOnError)
	flags.SetOutput(errW)

	var opts projectOptions
	var nsName string
	addProjectFlags(flags, &opts)
	flags.StringVar(&nsName, "ns", engine.DEFAULT_NS, "namespace in which the expression is evaluated")

	if showHelp(flags, mainSubCommandArgs, outW) {
		return 0
	}

	args, err := parseArgs(flags, mainSubCommandArgs)
	if err != nil {
		return ERROR_STATUS_CODE
	}
	if len(args) != 1 {
		fmt.Fprintln(errW, "expected exactly one expression")
		return ERROR_STATUS_CODE
	}

	p, err := openProject(opts, outW, errW)
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	src := args[0]
	p.inlineSources[EVAL_SOURCE_NAME] = src

	forms, err := reader.ReadAll(EVAL_SOURCE_NAME, src)
	if err != nil {
		p.reportError(errW, err)
		return ERROR_STATUS_CODE
	}

	var value eval.Value
	for _, f := range forms {
		value, nsName, err = p.engine.EvalForm(ctx, nsName, f)
		if err != nil {
			p.reportError(errW, err)
			return ERROR_STATUS_CODE
		}
	}

	fmt.Fprintln(outW, eval.PrStr(value))
	return 0
}
