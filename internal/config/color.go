package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnv holds the color-related environment variables.
type ColorEnv struct {
	ForceColor          bool
	NoColor             bool
	TruecolorColorterm  bool
	Term256ColorCapable bool
}

func ReadColorEnv(lookup func(string) (string, bool)) ColorEnv {
	var env ColorEnv

	isSet := func(s string) bool {
		return len(s) != 0 && s != "false" && s != "0"
	}

	if s, ok := lookup("FORCE_COLOR"); ok {
		env.ForceColor = isSet(s)
	}
	if s, ok := lookup("NO_COLOR"); ok {
		env.NoColor = isSet(s)
	}

	colorterm, _ := lookup("COLORTERM")
	env.TruecolorColorterm = colorterm == "truecolor"

	termName, _ := lookup("TERM")
	env.Term256ColorCapable = strings.Contains(termName, "256color")
	return env
}

// ShouldColorize decides whether the output should be colored, in auto mode the environment is
// taken into account and the output must be a terminal.
func (env ColorEnv) ShouldColorize(mode string, isTerminal bool) bool {
	switch mode {
	case COLOR_ALWAYS:
		return true
	case COLOR_NEVER:
		return false
	}

	if env.NoColor {
		return false
	}
	if env.ForceColor {
		return true
	}
	return isTerminal && (env.TruecolorColorterm || env.Term256ColorCapable)
}

// ShouldColorizeFile is ShouldColorize for f with the process environment.
func ShouldColorizeFile(mode string, f *os.File) bool {
	return ReadColorEnv(os.LookupEnv).ShouldColorize(mode, term.IsTerminal(int(f.Fd())))
}
