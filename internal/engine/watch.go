package engine

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/slog"
	"github.com/bridjelang/bridje/internal/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v5/util"
)

const (
	DEFAULT_WATCH_DEBOUNCE = 100 * time.Millisecond
)

// A ReloadEvent is reported by Watch after each reloaded or invalidated namespace.
type ReloadEvent struct {
	Namespace string
	Removed   bool
	Err       error
}

// Watch watches the source roots of l (a loader backed by the OS filesystem) and reloads the
// namespaces whose files change. Events are coalesced during delay. Namespaces that were live
// before a reload and have been invalidated by it are required again. Watch returns when ctx
// is done.
func (e *Engine) Watch(ctx context.Context, l *loader.FSLoader, delay time.Duration, onReload func(ReloadEvent)) error {
	if delay <= 0 {
		delay = DEFAULT_WATCH_DEBOUNCE
	}
	if onReload == nil {
		onReload = func(ReloadEvent) {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	osRoot := l.FS().Root()
	logger := slog.ChildLoggerForSource(e.logger, "watch")

	for _, root := range l.Roots() {
		err := util.Walk(l.FS(), root, func(pth string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return watcher.Add(filepath.Join(osRoot, pth))
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	var (
		changedLock sync.Mutex
		changed     = map[string]bool{} //namespace -> removed
	)

	reloadChanged := func() {
		defer func() {
			if v := recover(); v != nil {
				logger.Error().Err(utils.ConvertPanicValueToError(v)).Msg("panic while reloading")
			}
		}()

		changedLock.Lock()
		batch := changed
		changed = map[string]bool{}
		changedLock.Unlock()

		e.reloadBatch(ctx, l, batch, onReload)
	}

	debounced := debounce.New(delay)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			rel, err := filepath.Rel(osRoot, event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if event.Has(fsnotify.Create) {
				//new directories are not watched by fsnotify.
				if info, err := l.FS().Stat(rel); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn().Err(err).Str("path", rel).Msg("failed to watch directory")
					}
					continue
				}
			}

			ns, ok := l.NamespaceOf(rel)
			if !ok {
				continue
			}
			logger.Debug().Str(slog.NAMESPACE_FIELD_NAME, ns).Str("op", event.Op.String()).Msg("source changed")

			changedLock.Lock()
			changed[ns] = event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
			changedLock.Unlock()

			debounced(reloadChanged)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (e *Engine) reloadBatch(ctx context.Context, l *loader.FSLoader, batch map[string]bool, onReload func(ReloadEvent)) {
	before := e.Snapshot()
	wasLive := before.NamespaceNames()

	names := make([]string, 0, len(batch))
	for name := range batch {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}

		current := e.Snapshot()
		_, quarantined := current.Quarantined(name)
		if !current.IsLive(name) && !quarantined {
			continue
		}

		l.Invalidate(name)

		if batch[name] {
			if _, err := l.PathOf(name); errors.Is(err, loader.ErrNamespaceNotFound) {
				e.Invalidate(name)
				onReload(ReloadEvent{Namespace: name, Removed: true})
				continue
			}
		}

		_, err := e.Reload(ctx, name)
		onReload(ReloadEvent{Namespace: name, Err: err})
	}

	//namespaces invalidated by the reloads are required again.
	for _, name := range wasLive {
		if ctx.Err() != nil {
			return
		}
		if _, inBatch := batch[name]; inBatch || e.Snapshot().IsLive(name) {
			continue
		}
		if _, quarantined := e.Snapshot().Quarantined(name); !quarantined {
			continue
		}
		_, err := e.Require(ctx, name)
		onReload(ReloadEvent{Namespace: name, Err: err})
	}
}
