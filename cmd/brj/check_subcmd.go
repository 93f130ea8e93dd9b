package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bridjelang/bridje/internal/diag"
)

// CheckNamespaces loads the namespaces passed as arguments (all the namespaces of the source
// roots if none) and reports their errors.
func CheckNamespaces(ctx context.Context, mainSubCommand string, mainSubCommandArgs []string, outW, errW io.Writer) (exitCode int) {
	flags := flag.NewFlagSet(mainSubCommand, flag.ContinueOnError)
	flags.SetOutput(errW)

	var opts projectOptions
	var jsonOutput bool
	addProjectFlags(flags, &opts)
	flags.BoolVar(&jsonOutput, "json", false, "print the diagnostics as JSON on the standard output")

	if showHelp(flags, mainSubCommandArgs, outW) {
		return 0
	}

	names, err := parseArgs(flags, mainSubCommandArgs)
	if err != nil {
		return ERROR_STATUS_CODE
	}

	p, err := openProject(opts, outW, errW)
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	if len(names) == 0 {
		names, err = p.loader.Namespaces(ctx)
		if err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
	}
	names = sortNaturally(names)

	var diagnostics []diag.Diagnostic
	seen := map[string]bool{}

	for _, name := range names {
		if _, err := p.engine.Require(ctx, name); err != nil {
			for _, d := range diag.FromError(err) {
				//a failing namespace is reported once, not once per dependent.
				key := d.Message
				if d.Location != nil {
					key = fmt.Sprintf("%s:%d:%d %s", d.Location.Source, d.Location.Line, d.Location.Column, key)
				}
				if !seen[key] {
					seen[key] = true
					diagnostics = append(diagnostics, d)
				}
			}
		}
	}

	if jsonOutput {
		if err := diag.WriteJSON(outW, diagnostics); err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
	} else if len(diagnostics) > 0 {
		if err := diag.NewRenderer(errW, p.color, p.source).Render(diagnostics); err != nil {
			fmt.Fprintln(errW, err)
		}
	} else {
		fmt.Fprintf(outW, "checked %d namespace(s)\n", len(names))
	}

	p.logger.Debug().Str("version", p.engine.Snapshot().Version().String()).Int("errors", len(diagnostics)).Msg("check done")

	if len(diagnostics) > 0 {
		return ERROR_STATUS_CODE
	}
	return 0
}
