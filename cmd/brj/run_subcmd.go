package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/expr"
)

const (
	MAIN_DEF_NAME = "main"
)

// RunNamespace requires a namespace and prints the value of its main definition, a main
// function without parameters is called.
func RunNamespace(ctx context.Context, mainSubCommand string, mainSubCommandArgs []string, outW, errW io.Writer) (exitCode int) {
	flags := flag.NewFlagSet(mainSubCommand, flag.ContinueOnError)
	flags.SetOutput(errW)

	var opts projectOptions
	addProjectFlags(flags, &opts)

	if showHelp(flags, mainSubCommandArgs, outW) {
		return 0
	}

	args, err := parseArgs(flags, mainSubCommandArgs)
	if err != nil {
		return ERROR_STATUS_CODE
	}
	if len(args) != 1 {
		fmt.Fprintln(errW, "expected exactly one namespace name")
		return ERROR_STATUS_CODE
	}

	p, err := openProject(opts, outW, errW)
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	ns, err := p.engine.Require(ctx, args[0])
	if err != nil {
		p.reportError(errW, err)
		return ERROR_STATUS_CODE
	}

	v, ok := ns.Var(MAIN_DEF_NAME)
	if !ok {
		return 0
	}

	def, ok := v.(*expr.DefVar)
	if !ok {
		fmt.Fprintf(errW, "%s/%s is not a definition\n", ns.Name(), MAIN_DEF_NAME)
		return ERROR_STATUS_CODE
	}

	value := def.Value
	if fn, ok := value.(eval.Callable); ok && fn.Arity() == 0 {
		value, err = p.engine.Evaluator().Call(ctx, fn)
		if err != nil {
			p.reportError(errW, err)
			return ERROR_STATUS_CODE
		}
	}

	fmt.Fprintln(outW, eval.PrStr(value))
	return 0
}
