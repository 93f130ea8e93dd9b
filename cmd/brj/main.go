package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"unicode"

	"github.com/bridjelang/bridje/internal/utils"
	"github.com/posener/complete/v2/install"
)

const (
	ERROR_STATUS_CODE = 1

	COMMAND_NAME = "brj"
)

func main() {
	//handle completions
	cmd.Complete(COMMAND_NAME)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	statusCode := _main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if statusCode != 0 {
		cancel()
		os.Exit(statusCode)
	}
}

func _main(ctx context.Context, args []string, inR io.Reader, outW io.Writer, errW io.Writer) (statusCode int) {
	mainSubCommand := ""
	var mainSubCommandArgs []string

	if len(args) == 1 { //no subcommand specified
		mainSubCommand = REPL_SUBCMD
	} else {
		mainSubCommand = args[1]
		mainSubCommandArgs = args[2:]
	}

	//help <subcommand> is turned into <subcommand> -h.
	if mainSubCommand == HELP_SUBCMD && len(mainSubCommandArgs) > 0 && mainSubCommandArgs[0] != "" && unicode.IsLetter(rune(mainSubCommandArgs[0][0])) {
		mainSubCommand = mainSubCommandArgs[0]
		mainSubCommandArgs = []string{"-h"}
	}

	if slices.Contains(HELP_SUBCMD_EQUIVALENTS, mainSubCommand) {
		mainSubCommand = HELP_SUBCMD
	}

	if !slices.Contains(SUBCOMMANDS, mainSubCommand) {
		fmt.Fprintf(errW, "unknown command '%s'", mainSubCommand)

		closest, _, ok := utils.FindClosestString(ctx, SUBCOMMANDS, mainSubCommand, 2)
		if ok {
			fmt.Fprintf(errW, ", did you mean '%s' ?\n", closest)
		} else {
			fmt.Fprint(errW, "\n"+BRJ_CMD_HELP)
		}
		return ERROR_STATUS_CODE
	}

	switch mainSubCommand {
	case HELP_SUBCMD:
		fmt.Fprint(outW, BRJ_CMD_HELP)
		return 0
	case INSTALL_COMPLETIONS_SUBCMD:
		err := install.Install(COMMAND_NAME)
		if err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
		fmt.Fprintln(outW, "installed")
		return 0
	case UNINSTALL_COMPLETIONS_SUBCMD:
		err := install.Uninstall(COMMAND_NAME)
		if err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}
		fmt.Fprintln(outW, "uninstalled")
		return 0
	case RUN_SUBCMD:
		return RunNamespace(ctx, mainSubCommand, mainSubCommandArgs, outW, errW)
	case CHECK_SUBCMD:
		return CheckNamespaces(ctx, mainSubCommand, mainSubCommandArgs, outW, errW)
	case EVAL_SUBCMD, EVAL_ALIAS_SUBCMD:
		return EvalExpression(ctx, mainSubCommand, mainSubCommandArgs, outW, errW)
	case REPL_SUBCMD:
		return StartREPL(ctx, mainSubCommand, mainSubCommandArgs, inR, outW, errW)
	case WATCH_SUBCMD:
		return WatchNamespaces(ctx, mainSubCommand, mainSubCommandArgs, outW, errW)
	}

	panic(fmt.Errorf("unhandled command %s", mainSubCommand))
}
