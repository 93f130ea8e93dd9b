package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/bridjelang/bridje/internal/depgraph"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/slog"
	"github.com/bridjelang/bridje/internal/utils"
)

// A NamespaceError gathers the errors of the top-level forms of a namespace that failed,
// the namespace is not installed.
type NamespaceError struct {
	Name   string
	Errors []error
}

func (err *NamespaceError) Error() string {
	return utils.CombineErrorsWithPrefixMessage("namespace "+err.Name, err.Errors...).Error()
}

func (err *NamespaceError) Unwrap() []error {
	return err.Errors
}

// evalNamespaceSource evaluates the source of a namespace on top of env and returns the
// environment containing its (newly loaded) dependencies. The current version of the
// namespace and its dependents are invalidated in the returned environment so that a require
// cycle going through the redefined namespace is detected.
func (e *Engine) evalNamespaceSource(ctx context.Context, env *nsenv.GlobalEnv, expectedName string, forms []form.Form) (*nsenv.GlobalEnv, *nsenv.NsEnv, error) {
	if len(forms) == 0 {
		return nil, nil, ErrEmptyNamespace
	}

	header, err := nsenv.ParseHeader(forms[0])
	if err != nil {
		return nil, nil, err
	}

	name := header.Name
	if expectedName != "" && name != expectedName {
		return nil, nil, fmt.Errorf("%w: expected %s but the header declares %s", ErrNamespaceMismatch, expectedName, name)
	}
	if name == nsenv.CORE_NS {
		return nil, nil, ErrCannotRedefineCore
	}

	env, invalidated := env.InvalidateNamespace(name)
	e.logInvalidated(invalidated)

	sources := &sourceSet{
		engine:    e,
		env:       env,
		overrides: map[string][]form.Form{name: forms},
		headers:   map[string]*nsenv.Header{},
		forms:     map[string][]form.Form{},
	}

	order, err := depgraph.Plan(ctx, []string{name}, sources.requiresOf)
	if err != nil {
		return nil, nil, err
	}

	var ns *nsenv.NsEnv
	for _, nsName := range order {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		loaded, err := e.evalNamespace(ctx, env, sources.headers[nsName], sources.forms[nsName])
		if err != nil {
			if nsName != name {
				e.logger.Warn().Str(slog.NAMESPACE_FIELD_NAME, nsName).Err(err).Msg("failed to load dependency")
			}
			return nil, nil, err
		}

		if nsName == name {
			ns = loaded
			continue
		}
		env = env.WithNamespace(loaded)
	}

	return env, ns, nil
}

// ensureLive makes the namespaces names and all the namespaces they depend on live, the
// returned environment is only valid if err is nil.
func (e *Engine) ensureLive(ctx context.Context, env *nsenv.GlobalEnv, names []string) (*nsenv.GlobalEnv, error) {
	sources := &sourceSet{
		engine:  e,
		env:     env,
		headers: map[string]*nsenv.Header{},
		forms:   map[string][]form.Form{},
	}

	order, err := depgraph.Plan(ctx, names, sources.requiresOf)
	if err != nil {
		return nil, err
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, replayed := env.Quarantined(name)

		ns, err := e.evalNamespace(ctx, env, sources.headers[name], sources.forms[name])
		if err != nil {
			e.logger.Warn().Str(slog.NAMESPACE_FIELD_NAME, name).Err(err).Msg("failed to load namespace")
			return nil, err
		}

		if replayed {
			e.logger.Debug().Str(slog.NAMESPACE_FIELD_NAME, name).Msg("replayed quarantined namespace")
		} else {
			e.logger.Debug().Str(slog.NAMESPACE_FIELD_NAME, name).Msg("loaded namespace")
		}
		env = env.WithNamespace(ns)
	}

	return env, nil
}

// evalNamespace evaluates the forms following the header of a namespace. Every form is
// evaluated even if a previous one failed so that all the errors are reported.
func (e *Engine) evalNamespace(ctx context.Context, env *nsenv.GlobalEnv, header *nsenv.Header, forms []form.Form) (*nsenv.NsEnv, error) {
	ns, err := nsenv.NsEnvFromHeader(env, header)
	if err != nil {
		return nil, err
	}

	var errs []error

	for _, f := range forms[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		updated, _, err := e.evalTopLevel(ctx, env, ns, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ns = updated
	}

	if len(errs) > 0 {
		return nil, &NamespaceError{Name: header.Name, Errors: errs}
	}

	return ns.WithSourceForms(forms), nil
}

// A sourceSet provides the sources of the namespaces discovered while planning a load:
// overrides first, then quarantined sources, then the loader.
type sourceSet struct {
	engine    *Engine
	env       *nsenv.GlobalEnv
	overrides map[string][]form.Form

	headers map[string]*nsenv.Header
	forms   map[string][]form.Form
}

func (s *sourceSet) requiresOf(ctx context.Context, name string) ([]string, bool, error) {
	forms, ok := s.overrides[name]
	if !ok {
		if s.env.IsLive(name) {
			return nil, true, nil
		}

		var err error
		forms, err = s.source(ctx, name)
		if err != nil {
			return nil, false, err
		}
	}

	if len(forms) == 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrEmptyNamespace, name)
	}

	header, err := nsenv.ParseHeader(forms[0])
	if err != nil {
		return nil, false, err
	}
	if header.Name != name {
		return nil, false, fmt.Errorf("%w: expected %s but the header declares %s", ErrNamespaceMismatch, name, header.Name)
	}

	s.headers[name] = header
	s.forms[name] = forms
	return header.DepNames(), false, nil
}

func (s *sourceSet) source(ctx context.Context, name string) ([]form.Form, error) {
	if forms, ok := s.env.Quarantined(name); ok {
		return forms, nil
	}

	if name == nsenv.CORE_NS {
		return nil, ErrCannotRedefineCore
	}

	if s.engine.loader == nil {
		return nil, fmt.Errorf("%w: %s", loader.ErrNamespaceNotFound, name)
	}

	forms, err := s.engine.loader.LoadForms(ctx, name)
	if err != nil {
		if !errors.Is(err, loader.ErrNamespaceNotFound) {
			return nil, fmt.Errorf("failed to load namespace %s: %w", name, err)
		}
		return nil, err
	}
	return forms, nil
}
