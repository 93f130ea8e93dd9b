package diag

import (
	"errors"
	"io"

	"github.com/bridjelang/bridje/internal/analyser"
	"github.com/bridjelang/bridje/internal/depgraph"
	"github.com/bridjelang/bridje/internal/engine"
	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/reader"
	"github.com/bridjelang/bridje/internal/types"
	"github.com/goccy/go-json"
)

type Kind string

const (
	ANALYSIS_ERROR  Kind = "analysis"
	TYPE_ERROR      Kind = "type"
	NAMESPACE_ERROR Kind = "namespace"
	RUNTIME_ERROR   Kind = "runtime"
	READ_ERROR      Kind = "read"
	OTHER_ERROR     Kind = "error"
)

// A Diagnostic is a located error ready to be rendered.
type Diagnostic struct {
	Kind      Kind      `json:"kind"`
	Namespace string    `json:"namespace,omitempty"`
	Message   string    `json:"message"`
	Location  *Location `json:"location,omitempty"`
}

type Location struct {
	Source      string `json:"source"`
	Line        int32  `json:"line"`
	Column      int32  `json:"column"`
	EndLine     int32  `json:"endLine"`
	EndColumn   int32  `json:"endColumn"`
	StartOffset int32  `json:"-"`
	EndOffset   int32  `json:"-"`
}

type locatedError interface {
	error
	MessageWithoutLocation() string
	Location() form.Loc
}

// FromError converts an error returned by the engine, the loader or the reader into
// diagnostics, aggregates are flattened.
func FromError(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	return fromError(err, "")
}

func fromError(err error, ns string) []Diagnostic {
	var (
		nsErr       *engine.NamespaceError
		analysisErr *analyser.Errors
	)

	switch {
	case errors.As(err, &nsErr):
		var diagnostics []Diagnostic
		for _, err := range nsErr.Errors {
			diagnostics = append(diagnostics, fromError(err, nsErr.Name)...)
		}
		return diagnostics
	case errors.As(err, &analysisErr):
		diagnostics := make([]Diagnostic, 0, len(analysisErr.Errors))
		for _, err := range analysisErr.Errors {
			diagnostics = append(diagnostics, located(ANALYSIS_ERROR, ns, err))
		}
		return diagnostics
	}

	kind := kindOf(err)

	var locErr locatedError
	if errors.As(err, &locErr) {
		return []Diagnostic{located(kind, ns, locErr)}
	}

	return []Diagnostic{{Kind: kind, Namespace: ns, Message: err.Error()}}
}

func kindOf(err error) Kind {
	var (
		runtimeErr *eval.RuntimeError
		readErr    *reader.ReadError
	)

	switch {
	case errors.Is(err, types.ErrTypeMismatch):
		return TYPE_ERROR
	case errors.As(err, &runtimeErr):
		return RUNTIME_ERROR
	case errors.Is(err, depgraph.ErrDependencyCycle),
		errors.Is(err, loader.ErrNamespaceNotFound),
		errors.Is(err, nsenv.ErrInvalidNsHeader),
		errors.Is(err, nsenv.ErrUnknownAlias),
		errors.Is(err, engine.ErrNamespaceMismatch),
		errors.Is(err, engine.ErrCannotRedefineCore),
		errors.Is(err, engine.ErrEmptyNamespace):
		return NAMESPACE_ERROR
	case errors.As(err, &readErr):
		return READ_ERROR
	}
	return OTHER_ERROR
}

func located(kind Kind, ns string, err locatedError) Diagnostic {
	d := Diagnostic{Kind: kind, Namespace: ns, Message: err.MessageWithoutLocation()}

	loc := err.Location()
	if !loc.IsZero() {
		d.Location = &Location{
			Source:      loc.SourceName,
			Line:        loc.StartLine,
			Column:      loc.StartColumn,
			EndLine:     loc.EndLine,
			EndColumn:   loc.EndColumn,
			StartOffset: loc.Span.Start,
			EndOffset:   loc.Span.End,
		}
	}
	return d
}

// WriteJSON writes the diagnostics as a JSON array.
func WriteJSON(w io.Writer, diagnostics []Diagnostic) error {
	if diagnostics == nil {
		diagnostics = []Diagnostic{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(diagnostics)
}
