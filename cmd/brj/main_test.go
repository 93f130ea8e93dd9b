package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, sources map[string]string) string {
	dir := t.TempDir()
	for relPath, src := range sources {
		pth := filepath.Join(dir, "src", relPath)
		require.NoError(t, os.MkdirAll(filepath.Dir(pth), 0o700))
		require.NoError(t, os.WriteFile(pth, []byte(src), 0o600))
	}
	return dir
}

func runMain(t *testing.T, in string, args ...string) (exitCode int, stdout string, stderr string) {
	outW := &bytes.Buffer{}
	errW := &bytes.Buffer{}
	exitCode = _main(context.Background(), append([]string{COMMAND_NAME}, args...), strings.NewReader(in), outW, errW)
	return exitCode, outW.String(), errW.String()
}

var appSources = map[string]string{
	"app/lib.brj":  `(ns app.lib) (def (greet name) (concat "hello " name))`,
	"app/main.brj": `(ns app.main (require app.lib)) (def (main) (app.lib/greet "world"))`,
}

func TestHelpAndUnknownCommands(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("help", func(t *testing.T) {
		exitCode, stdout, _ := runMain(t, "", HELP_SUBCMD)
		assert.Equal(t, 0, exitCode)
		assert.Contains(t, stdout, "commands:")
		assert.Contains(t, stdout, RUN_SUBCMD+" - ")
	})

	t.Run("subcommand help", func(t *testing.T) {
		exitCode, stdout, _ := runMain(t, "", HELP_SUBCMD, CHECK_SUBCMD)
		assert.Equal(t, 0, exitCode)
		assert.Contains(t, stdout, SUBCOMMAND_DESCRIPTION_MAP[CHECK_SUBCMD])
		assert.Contains(t, stdout, "-json")
	})

	t.Run("unknown command close to a known one", func(t *testing.T) {
		exitCode, _, stderr := runMain(t, "", "rnu")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Equal(t, "unknown command 'rnu', did you mean 'run' ?\n", stderr)
	})

	t.Run("unknown command", func(t *testing.T) {
		exitCode, _, stderr := runMain(t, "", "compile-everything")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, stderr, "commands:")
	})
}

func TestRun(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("main function", func(t *testing.T) {
		dir := writeProject(t, appSources)

		exitCode, stdout, stderr := runMain(t, "", RUN_SUBCMD, "-dir", dir, "-color", "never", "app.main")
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Equal(t, "\"hello world\"\n", stdout)
	})

	t.Run("main value with output", func(t *testing.T) {
		dir := writeProject(t, map[string]string{
			"app.brj": `(ns app) (def main (println! "hi"))`,
		})

		exitCode, stdout, stderr := runMain(t, "", RUN_SUBCMD, "app", "-dir", dir, "-color", "never")
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Equal(t, "hi\n\"hi\"\n", stdout)
	})

	t.Run("missing namespace", func(t *testing.T) {
		dir := writeProject(t, nil)

		exitCode, _, stderr := runMain(t, "", RUN_SUBCMD, "-dir", dir, "-color", "never", "app.missing")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, stderr, "error[namespace]")
	})

	t.Run("missing argument", func(t *testing.T) {
		exitCode, _, stderr := runMain(t, "", RUN_SUBCMD)
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, stderr, "expected exactly one namespace name")
	})
}

func TestCheck(t *testing.T) {
	testconfig.AllowParallelization(t)

	broken := map[string]string{
		"app/lib.brj":  appSources["app/lib.brj"],
		"app/main.brj": "(ns app.main (require app.lib))\n(def x (if true 1 \"x\"))\n",
	}

	t.Run("no errors", func(t *testing.T) {
		dir := writeProject(t, appSources)

		exitCode, stdout, stderr := runMain(t, "", CHECK_SUBCMD, "-dir", dir, "-color", "never")
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Equal(t, "checked 2 namespace(s)\n", stdout)
	})

	t.Run("errors", func(t *testing.T) {
		dir := writeProject(t, broken)

		exitCode, _, stderr := runMain(t, "", CHECK_SUBCMD, "-dir", dir, "-color", "never")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, stderr, "error[type] app.main: cannot unify")
		assert.Contains(t, stderr, "  --> src/app/main.brj:2:")
		assert.Contains(t, stderr, "2 | (def x (if true 1 \"x\"))")
	})

	t.Run("json", func(t *testing.T) {
		dir := writeProject(t, broken)

		exitCode, stdout, _ := runMain(t, "", CHECK_SUBCMD, "-json", "-dir", dir, "app.main")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, stdout, `"kind": "type"`)
		assert.Contains(t, stdout, `"namespace": "app.main"`)
	})
}

func TestEval(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("default namespace", func(t *testing.T) {
		dir := writeProject(t, nil)

		exitCode, stdout, stderr := runMain(t, "", EVAL_SUBCMD, "-dir", dir, "(def x 2) (mul x 3)")
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Equal(t, "6\n", stdout)
	})

	t.Run("namespace flag after the expression", func(t *testing.T) {
		dir := writeProject(t, appSources)

		exitCode, stdout, stderr := runMain(t, "", EVAL_ALIAS_SUBCMD, `(greet "you")`, "-ns", "app.lib", "-dir", dir)
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Equal(t, "\"hello you\"\n", stdout)
	})

	t.Run("error", func(t *testing.T) {
		dir := writeProject(t, nil)

		exitCode, _, stderr := runMain(t, "", EVAL_SUBCMD, "-dir", dir, "-color", "never", "(add 1 unknown)")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Contains(t, stderr, "error[analysis]")
		assert.Contains(t, stderr, "unknown")
	})
}

func TestREPL(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("forms spanning several lines", func(t *testing.T) {
		dir := writeProject(t, appSources)

		input := "(def x 1)\n(add x\n  1)\n(ns scratch (require [app.lib :as l]))\n(l/greet \"repl\")\n:quit\n(add 1 1)\n"
		exitCode, stdout, stderr := runMain(t, input, REPL_SUBCMD, "-dir", dir)
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Equal(t, "1\n2\n\"hello repl\"\n", stdout)
	})

	t.Run("env command", func(t *testing.T) {
		dir := writeProject(t, appSources)

		exitCode, stdout, stderr := runMain(t, "(def x 1)\n:env\n", REPL_SUBCMD, "-dir", dir)
		if !assert.Equal(t, 0, exitCode, stderr) {
			return
		}
		assert.Contains(t, stdout, "version ")
		assert.Contains(t, stdout, "live: brj.core user\n")
	})

	t.Run("errors are reported and the loop continues", func(t *testing.T) {
		dir := writeProject(t, nil)

		exitCode, stdout, stderr := runMain(t, "(add 1 \"a\")\n(add 1 2)\n", REPL_SUBCMD, "-dir", dir, "-color", "never")
		assert.Equal(t, ERROR_STATUS_CODE, exitCode)
		assert.Equal(t, "3\n", stdout)
		assert.Contains(t, stderr, "error[type]")
	})
}
