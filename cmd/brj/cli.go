package main

import (
	"flag"
	"fmt"
	"io"
	"slices"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

const (
	RUN_SUBCMD                   = "run"
	CHECK_SUBCMD                 = "check"
	EVAL_SUBCMD                  = "eval"
	EVAL_ALIAS_SUBCMD            = "e"
	REPL_SUBCMD                  = "repl"
	WATCH_SUBCMD                 = "watch"
	INSTALL_COMPLETIONS_SUBCMD   = "install-completions"
	UNINSTALL_COMPLETIONS_SUBCMD = "uninstall-completions"
	HELP_SUBCMD                  = "help"
)

var (
	SUBCOMMANDS = []string{
		RUN_SUBCMD, CHECK_SUBCMD, EVAL_SUBCMD, EVAL_ALIAS_SUBCMD, REPL_SUBCMD, WATCH_SUBCMD,
		INSTALL_COMPLETIONS_SUBCMD, UNINSTALL_COMPLETIONS_SUBCMD, HELP_SUBCMD,
	}

	HELP_SUBCMD_EQUIVALENTS = []string{"--help", "-help", "-h"}

	SUBCOMMAND_DESCRIPTIONS = [][2]string{
		{RUN_SUBCMD, "require a namespace and print the value of its main definition"},
		{CHECK_SUBCMD, "load namespaces (all by default) and report analysis, type and namespace errors"},
		{EVAL_SUBCMD, "evaluate a single expression"},
		{EVAL_ALIAS_SUBCMD, "alias for eval"},
		{REPL_SUBCMD, "start the interactive loop"},
		{WATCH_SUBCMD, "load all namespaces and reload them when their files change"},
		{INSTALL_COMPLETIONS_SUBCMD, "install CLI completions by addding the completion command to the detected rc file (supported shells are bash, zsh and fish)"},
		{UNINSTALL_COMPLETIONS_SUBCMD, "uninstall CLI completions by removing the completion command from the detected rc file"},
		{HELP_SUBCMD, "show the general help or command-specific help"},
	}

	SUBCOMMAND_DESCRIPTION_MAP = map[string]string{}

	BRJ_CMD_HELP = "commands:\n"

	projectFlagPredictors = map[string]complete.Predictor{
		"dir":   predict.Dirs("*"),
		"root":  predict.Dirs("*"),
		"log":   predict.Set{"trace", "debug", "info", "warn", "error"},
		"color": predict.Set{"auto", "always", "never"},
	}

	cmd = &complete.Command{
		Sub: map[string]*complete.Command{
			RUN_SUBCMD:                   {Flags: projectFlagPredictors},
			CHECK_SUBCMD:                 {Flags: withFlags(projectFlagPredictors, "json", predict.Nothing)},
			EVAL_SUBCMD:                  {Flags: withFlags(projectFlagPredictors, "ns", predict.Something)},
			EVAL_ALIAS_SUBCMD:            {Flags: withFlags(projectFlagPredictors, "ns", predict.Something)},
			REPL_SUBCMD:                  {Flags: withFlags(projectFlagPredictors, "ns", predict.Something)},
			WATCH_SUBCMD:                 {Flags: projectFlagPredictors},
			HELP_SUBCMD:                  {Args: predict.Set(SUBCOMMANDS)},
			INSTALL_COMPLETIONS_SUBCMD:   {},
			UNINSTALL_COMPLETIONS_SUBCMD: {},
		},
	}
)

func init() {
	for _, entry := range SUBCOMMAND_DESCRIPTIONS {
		cmd, desc := entry[0], entry[1]
		SUBCOMMAND_DESCRIPTION_MAP[cmd] = desc
		BRJ_CMD_HELP += "\t" + cmd + " - " + desc + "\n"
	}
	BRJ_CMD_HELP += "\nType `brj help <command>` to get command-specific help.\n"
}

func withFlags(flags map[string]complete.Predictor, name string, predictor complete.Predictor) map[string]complete.Predictor {
	extended := make(map[string]complete.Predictor, len(flags)+1)
	for k, v := range flags {
		extended[k] = v
	}
	extended[name] = predictor
	return extended
}

// parseArgs parses the flags found anywhere in args and returns the positional arguments,
// the arguments following -- are never parsed as flags.
func parseArgs(flags *flag.FlagSet, args []string) ([]string, error) {
	var positional []string

	for {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}

		rest := flags.Args()
		if len(rest) == 0 {
			return positional, nil
		}

		consumed := len(args) - len(rest)
		if consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}

		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func showHelp(flags *flag.FlagSet, args []string, out io.Writer) bool {
	if !slices.ContainsFunc(args, func(arg string) bool { return slices.Contains(HELP_SUBCMD_EQUIVALENTS, arg) }) {
		return false
	}

	cmd := flags.Name()
	if desc, ok := SUBCOMMAND_DESCRIPTION_MAP[cmd]; ok {
		fmt.Fprintln(out, desc)
	}

	flags.SetOutput(out)
	fmt.Fprint(out, "\noptions:\n")
	flags.PrintDefaults()
	return true
}
