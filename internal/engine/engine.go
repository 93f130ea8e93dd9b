package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bridjelang/bridje/internal/eval"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/nsenv"
	"github.com/bridjelang/bridje/internal/slog"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_NS = "user"
)

var (
	ErrCannotRedefineCore = errors.New("the core namespace cannot be redefined")
	ErrEmptyNamespace     = errors.New("a namespace source should at least contain a header")
	ErrNamespaceMismatch  = errors.New("namespace name does not match")
)

type Config struct {
	//Loader is used to load the namespaces that are neither live nor quarantined, optional.
	Loader loader.FormLoader

	Logger *zerolog.Logger //defaults to zerolog.Nop()
	Out    io.Writer       //output of the println! effect, defaults to os.Stdout
}

// An Engine owns the published GlobalEnv. Mutations are serialized by a single lock, each one
// computes a new snapshot from the current one and publishes it only if it fully succeeds:
// readers never see a partially invalidated or partially loaded environment.
type Engine struct {
	loader loader.FormLoader
	logger zerolog.Logger
	ev     *eval.Evaluator
	core   *nsenv.NsEnv

	lock     sync.Mutex
	snapshot atomic.Pointer[nsenv.GlobalEnv]
}

func New(config Config) *Engine {
	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	e := &Engine{
		loader: config.Loader,
		logger: slog.ChildLoggerForSource(logger, "engine"),
		ev:     eval.NewEvaluator(),
		core:   eval.NewCoreNs(out),
	}

	e.snapshot.Store(nsenv.NewGlobalEnv().WithNamespace(e.core))
	return e
}

// Snapshot returns the last published environment.
func (e *Engine) Snapshot() *nsenv.GlobalEnv {
	return e.snapshot.Load()
}

func (e *Engine) Evaluator() *eval.Evaluator {
	return e.ev
}

func (e *Engine) publish(env *nsenv.GlobalEnv) {
	e.snapshot.Store(env)
	e.logger.Debug().Str(slog.VERSION_FIELD_NAME, env.Version().String()).Msg("published snapshot")
}

// EvalNamespace evaluates a whole namespace source: the required namespaces are loaded first,
// then the forms are evaluated into a new namespace. The namespace and its dependents are
// invalidated before the new namespace is installed.
func (e *Engine) EvalNamespace(ctx context.Context, forms []form.Form) (*nsenv.NsEnv, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	env, ns, err := e.evalNamespaceSource(ctx, e.Snapshot(), "", forms)
	if err != nil {
		return nil, err
	}

	e.publish(e.redefine(env, ns))
	return ns, nil
}

// Require returns the live namespace name. If it is not live its quarantined source is replayed
// or it is loaded through the loader, along with the namespaces it depends on (dependencies
// first). Nothing is installed if one of them fails.
func (e *Engine) Require(ctx context.Context, name string) (*nsenv.NsEnv, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	current := e.Snapshot()
	if ns, ok := current.Namespace(name); ok {
		return ns, nil
	}

	env, err := e.ensureLive(ctx, current, []string{name})
	if err != nil {
		return nil, err
	}

	e.publish(env)
	ns, _ := env.Namespace(name)
	return ns, nil
}

// Reload reads the source of a namespace through the loader again and redefines it.
func (e *Engine) Reload(ctx context.Context, name string) (*nsenv.NsEnv, error) {
	if e.loader == nil {
		return nil, fmt.Errorf("%w: %s (no loader)", loader.ErrNamespaceNotFound, name)
	}

	if fsLoader, ok := e.loader.(*loader.FSLoader); ok {
		fsLoader.Invalidate(name)
	}

	forms, err := e.loader.LoadForms(ctx, name)
	if err != nil {
		return nil, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	env, ns, err := e.evalNamespaceSource(ctx, e.Snapshot(), name, forms)
	if err != nil {
		return nil, err
	}

	e.publish(e.redefine(env, ns))
	return ns, nil
}

// Invalidate removes a namespace and its transitive dependents from the live set, the names of
// the invalidated namespaces are returned.
func (e *Engine) Invalidate(name string) []string {
	e.lock.Lock()
	defer e.lock.Unlock()

	if name == nsenv.CORE_NS {
		return nil
	}

	env, invalidated := e.Snapshot().InvalidateNamespace(name)
	e.logInvalidated(invalidated)
	if len(invalidated) > 0 {
		e.publish(env)
	}
	return invalidated
}

// redefine applies the redefinition policy: the current namespace and its dependents are
// invalidated, then the new namespace is installed.
func (e *Engine) redefine(env *nsenv.GlobalEnv, ns *nsenv.NsEnv) *nsenv.GlobalEnv {
	env, invalidated := env.InvalidateNamespace(ns.Name())
	e.logInvalidated(invalidated)

	e.logger.Debug().Str(slog.NAMESPACE_FIELD_NAME, ns.Name()).Msg("install namespace")
	return env.WithNamespace(ns)
}

func (e *Engine) logInvalidated(names []string) {
	for _, name := range names {
		e.logger.Debug().Str(slog.NAMESPACE_FIELD_NAME, name).Msg("invalidated")
	}
}
