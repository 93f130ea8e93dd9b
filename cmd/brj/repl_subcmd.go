package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bridjelang/bridje/internal/engine"
	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/reader"
	"github.com/peterh/liner"
	"golang.org/x/term"
)

const (
	REPL_SOURCE_NAME = "<repl>"

	QUIT_REPL_CMD   = ":quit"
	ENV_REPL_CMD    = ":env"
	RELOAD_REPL_CMD = ":reload"
	HELP_REPL_CMD   = ":help"

	REPL_HELP = "" +
		QUIT_REPL_CMD + "        exit\n" +
		ENV_REPL_CMD + "         print the version of the environment and the live namespaces\n" +
		RELOAD_REPL_CMD + " <ns>  read the source of a namespace again and redefine it\n"
)

type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// StartREPL reads forms from the terminal (or from inR when it is not a terminal) and
// evaluates them.
func StartREPL(ctx context.Context, mainSubCommand string, mainSubCommandArgs []string, inR io.Reader, outW, errW io.Writer) (exitCode int) {
	flags := flag.NewFlagSet(mainSubCommand, flag.ContinueOnError)
	flags.SetOutput(errW)

	var opts projectOptions
	var nsName string
	addProjectFlags(flags, &opts)
	flags.StringVar(&nsName, "ns", engine.DEFAULT_NS, "initial namespace")

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

	var lines lineReader
	interactive := false

	if f, ok := inR.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		historyPath, err := p.config.HistoryPath()
		if err != nil {
			p.logger.Warn().Err(err).Msg("no history file")
		}
		lines = newLinerReader(historyPath)
		interactive = true
		fmt.Fprintf(outW, "brj %s, type %s for help\n", p.engine.Snapshot().Version(), HELP_REPL_CMD)
	} else {
		lines = &scannerReader{scanner: bufio.NewScanner(inR)}
	}
	defer lines.Close()

	session := &repl{project: p, nsName: nsName, outW: outW, errW: errW}
	errorCount := 0

	for ctx.Err() == nil {
		input, err := session.readInput(lines)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			break
		}
		if err != nil {
			fmt.Fprintln(errW, err)
			return ERROR_STATUS_CODE
		}

		quit, ok := session.handle(ctx, input)
		if !ok {
			errorCount++
		}
		if quit {
			break
		}
	}

	if !interactive && errorCount > 0 {
		return ERROR_STATUS_CODE
	}
	return 0
}

type repl struct {
	*project
	nsName     string
	inputCount int
	outW, errW io.Writer
}

// readInput reads lines until they form complete forms.
func (r *repl) readInput(lines lineReader) (string, error) {
	var input strings.Builder
	prompt := r.nsName + "=> "

	for {
		line, err := lines.Prompt(prompt)
		if err != nil {
			if input.Len() > 0 && errors.Is(err, io.EOF) {
				return input.String(), nil
			}
			return "", err
		}

		if input.Len() > 0 {
			input.WriteByte('\n')
		}
		input.WriteString(line)

		src := input.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, nil
		}
		if _, err := reader.ReadAll(REPL_SOURCE_NAME, src); !errors.Is(err, reader.ErrUnexpectedEOF) {
			if strings.TrimSpace(src) != "" {
				lines.AppendHistory(src)
			}
			return src, nil
		}
		prompt = strings.Repeat(" ", len(r.nsName)) + ".. "
	}
}

// handle evaluates an input, ok is false if an error occurred.
func (r *repl) handle(ctx context.Context, input string) (quit bool, ok bool) {
	trimmed := strings.TrimSpace(input)

	switch {
	case trimmed == "":
		return false, true
	case trimmed == QUIT_REPL_CMD:
		return true, true
	case trimmed == HELP_REPL_CMD:
		fmt.Fprint(r.outW, REPL_HELP)
		return false, true
	case trimmed == ENV_REPL_CMD:
		snapshot := r.engine.Snapshot()
		fmt.Fprintf(r.outW, "version %s\n", snapshot.Version())
		fmt.Fprintf(r.outW, "live: %s\n", strings.Join(sortNaturally(snapshot.NamespaceNames()), " "))
		if quarantined := snapshot.QuarantinedNames(); len(quarantined) > 0 {
			fmt.Fprintf(r.outW, "quarantined: %s\n", strings.Join(sortNaturally(quarantined), " "))
		}
		return false, true
	case strings.HasPrefix(trimmed, RELOAD_REPL_CMD+" "):
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, RELOAD_REPL_CMD))
		if _, err := r.engine.Reload(ctx, name); err != nil {
			r.reportError(r.errW, err)
			return false, false
		}
		return false, true
	case strings.HasPrefix(trimmed, ":"):
		fmt.Fprintf(r.errW, "unknown REPL command %s\n", trimmed)
		return false, false
	}

	r.inputCount++
	sourceName := fmt.Sprintf("%s:%d", REPL_SOURCE_NAME, r.inputCount)
	r.inlineSources[sourceName] = input

	forms, err := reader.ReadAll(sourceName, input)
	if err != nil {
		r.reportError(r.errW, err)
		return false, false
	}

	for _, f := range forms {
		value, nsName, err := r.engine.EvalForm(ctx, r.nsName, f)
		if err != nil {
			r.reportError(r.errW, err)
			return false, false
		}
		r.nsName = nsName

		if !nsenv.IsHeader(f) {
			fmt.Fprintln(r.outW, eval.PrStr(value))
		}
	}
	return false, true
}

type linerReader struct {
	state       *liner.State
	historyPath string
}

func newLinerReader(historyPath string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			state.ReadHistory(f)
			f.Close()
		}
	}
	return &linerReader{state: state, historyPath: historyPath}
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	return r.state.Prompt(prompt)
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

func (r *linerReader) Close() error {
	if r.historyPath != "" {
		if f, err := os.Create(r.historyPath); err == nil {
			r.state.WriteHistory(f)
			f.Close()
		}
	}
	return r.state.Close()
}

// scannerReader reads lines without prompting, it is used when the input is not a terminal.
type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) Prompt(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scannerReader) AppendHistory(string) {}

func (r *scannerReader) Close() error {
	return nil
}
