package diag

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/bridjelang/bridje/internal/engine"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/reader"
	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalSource(t *testing.T, src string) error {
	forms, err := reader.ReadAll("app.brj", src)
	if err != nil {
		return err
	}
	_, err = engine.New(engine.Config{}).EvalNamespace(context.Background(), forms)
	return err
}

func TestFromError(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FromError(nil))
	})

	t.Run("analysis errors are flattened", func(t *testing.T) {
		err := evalSource(t, "(ns app)\n(def x (do a b))\n(def y c)")

		diagnostics := FromError(err)
		if !assert.Len(t, diagnostics, 3) {
			return
		}

		for _, d := range diagnostics {
			assert.Equal(t, ANALYSIS_ERROR, d.Kind)
			assert.Equal(t, "app", d.Namespace)
		}
		assert.Contains(t, diagnostics[0].Message, "a")
		if assert.NotNil(t, diagnostics[2].Location) {
			assert.Equal(t, int32(3), diagnostics[2].Location.Line)
			assert.Equal(t, "app.brj", diagnostics[2].Location.Source)
		}
	})

	t.Run("type error", func(t *testing.T) {
		err := evalSource(t, "(ns app)\n(def x (if true 1 \"x\"))")

		diagnostics := FromError(err)
		if !assert.Len(t, diagnostics, 1) {
			return
		}
		assert.Equal(t, TYPE_ERROR, diagnostics[0].Kind)
		assert.Contains(t, diagnostics[0].Message, "Int")
		assert.Contains(t, diagnostics[0].Message, "String")
		assert.NotNil(t, diagnostics[0].Location)
	})

	t.Run("runtime error", func(t *testing.T) {
		err := evalSource(t, "(ns app)\n(def x (div 1 0))")

		diagnostics := FromError(err)
		if !assert.Len(t, diagnostics, 1) {
			return
		}
		assert.Equal(t, RUNTIME_ERROR, diagnostics[0].Kind)
	})

	t.Run("read error", func(t *testing.T) {
		err := evalSource(t, "(ns app")

		diagnostics := FromError(err)
		if !assert.Len(t, diagnostics, 1) {
			return
		}
		assert.Equal(t, READ_ERROR, diagnostics[0].Kind)
		assert.NotNil(t, diagnostics[0].Location)
	})

	t.Run("namespace error", func(t *testing.T) {
		diagnostics := FromError(fmt.Errorf("%w: app.missing", loader.ErrNamespaceNotFound))
		if !assert.Len(t, diagnostics, 1) {
			return
		}
		assert.Equal(t, NAMESPACE_ERROR, diagnostics[0].Kind)
		assert.Nil(t, diagnostics[0].Location)
	})
}

func TestWriteJSON(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("empty", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		require.NoError(t, WriteJSON(buf, nil))
		assert.JSONEq(t, "[]", buf.String())
	})

	t.Run("located diagnostic", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		err := WriteJSON(buf, []Diagnostic{{
			Kind:      TYPE_ERROR,
			Namespace: "app",
			Message:   "cannot unify Int and String",
			Location:  &Location{Source: "app.brj", Line: 2, Column: 8, EndLine: 2, EndColumn: 24, StartOffset: 16},
		}})
		if !assert.NoError(t, err) {
			return
		}

		assert.JSONEq(t, `[{
			"kind": "type",
			"namespace": "app",
			"message": "cannot unify Int and String",
			"location": {"source": "app.brj", "line": 2, "column": 8, "endLine": 2, "endColumn": 24}
		}]`, buf.String())
	})
}

func TestRenderer(t *testing.T) {
	testconfig.AllowParallelization(t)

	src := "(ns app)\n(def x (add 1 \"a\"))\n"
	sources := func(name string) (string, bool) {
		if name == "app.brj" {
			return src, true
		}
		return "", false
	}

	diagnostics := []Diagnostic{{
		Kind:      TYPE_ERROR,
		Namespace: "app",
		Message:   "cannot unify Int and String",
		Location:  &Location{Source: "app.brj", Line: 2, Column: 15, EndLine: 2, EndColumn: 18},
	}}

	t.Run("without color", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		err := NewRenderer(buf, false, sources).Render(diagnostics)
		if !assert.NoError(t, err) {
			return
		}

		expected := "error[type] app: cannot unify Int and String\n" +
			"  --> app.brj:2:15\n" +
			"2 | (def x (add 1 \"a\"))\n" +
			"  |               ^^^\n" +
			"\n" +
			"1 error(s)\n"
		assert.Equal(t, expected, buf.String())
	})

	t.Run("with color", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		err := NewRenderer(buf, true, sources).Render(diagnostics)
		if !assert.NoError(t, err) {
			return
		}
		assert.Contains(t, buf.String(), "\x1b[")
		assert.Contains(t, buf.String(), "cannot unify Int and String")
	})

	t.Run("unknown source", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		err := NewRenderer(buf, false, nil).Render([]Diagnostic{{Kind: OTHER_ERROR, Message: "oops"}})
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "error[error]: oops\n\n1 error(s)\n", buf.String())
	})
}
