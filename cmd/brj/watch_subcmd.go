package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/bridjelang/bridje/internal/engine"
)

// WatchNamespaces loads all the namespaces of the source roots and reloads them when their files
// change, it returns when ctx is done (interruption).
func WatchNamespaces(ctx context.Context, mainSubCommand string, mainSubCommandArgs []string, outW, errW io.Writer) (exitCode int) {
	flags := flag.NewFlagSet(mainSubCommand, flag.ContinueOnError)
	flags.SetOutput(errW)

	var opts projectOptions
	addProjectFlags(flags, &opts)

	if showHelp(flags, mainSubCommandArgs, outW) {
		return 0
	}

	if _, err := parseArgs(flags, mainSubCommandArgs); err != nil {
		return ERROR_STATUS_CODE
	}

	p, err := openProject(opts, outW, errW)
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	names, err := p.loader.Namespaces(ctx)
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}

	for _, name := range sortNaturally(names) {
		if _, err := p.engine.Require(ctx, name); err != nil {
			p.reportError(errW, err)
		}
	}

	live := p.engine.Snapshot().NamespaceNames()
	fmt.Fprintf(outW, "watching %d namespace(s), %d live\n", len(names), len(live)-1)

	err = p.engine.Watch(ctx, p.loader, p.config.WatchDebounce, func(event engine.ReloadEvent) {
		switch {
		case event.Err != nil:
			p.reportError(errW, event.Err)
		case event.Removed:
			fmt.Fprintf(outW, "removed %s\n", event.Namespace)
		default:
			fmt.Fprintf(outW, "reloaded %s\n", event.Namespace)
		}
	})
	if err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}
	return 0
}
