package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bridjelang/bridje/internal/form"
	"github.com/bridjelang/bridje/internal/reader"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/tidwall/tinylru"
)

const (
	SOURCE_FILE_EXTENSION = ".brj"
	SOURCE_FILE_PATTERN   = "**/*" + SOURCE_FILE_EXTENSION
	DEFAULT_SOURCE_ROOT   = "src"
	DEFAULT_CACHE_SIZE    = 256

	DEFAULT_FILE_FMODE = 0o600
)

var (
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// A FormLoader gives the forms of namespace sources, the first form is the namespace header.
type FormLoader interface {
	LoadForms(ctx context.Context, ns string) ([]form.Form, error)

	//Namespaces lists the names of all the namespaces the loader can load, sorted.
	Namespaces(ctx context.Context) ([]string, error)
}

// FSLoader loads namespaces from .brj files in the source roots of a filesystem: app.top is
// read from <root>/app/top.brj in the first root containing it. Parsed forms are cached by
// path and invalidated when the modification time or the size of the file changes.
type FSLoader struct {
	fs    billy.Filesystem
	roots []string

	cacheLock sync.Mutex
	cache     tinylru.LRU //path -> *cachedForms
}

type cachedForms struct {
	modTime time.Time
	size    int64
	forms   []form.Form
}

func NewFSLoader(fls billy.Filesystem, roots ...string) *FSLoader {
	if len(roots) == 0 {
		roots = []string{DEFAULT_SOURCE_ROOT}
	}

	l := &FSLoader{fs: fls, roots: slices.Clone(roots)}
	l.cache.Resize(DEFAULT_CACHE_SIZE)
	return l
}

// NewMemLoader returns a loader reading from an in-memory filesystem filled with sources, a map
// from namespace names to source code.
func NewMemLoader(sources map[string]string) (*FSLoader, error) {
	l := NewFSLoader(memfs.New(), DEFAULT_SOURCE_ROOT)
	for ns, src := range sources {
		if err := l.WriteSource(ns, src); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *FSLoader) FS() billy.Filesystem {
	return l.fs
}

func (l *FSLoader) Roots() []string {
	return slices.Clone(l.roots)
}

// WriteSource writes the source of ns in the first root.
func (l *FSLoader) WriteSource(ns string, src string) error {
	return util.WriteFile(l.fs, path.Join(l.roots[0], RelativePath(ns)), []byte(src), DEFAULT_FILE_FMODE)
}

// RelativePath returns the path of the source file of ns relative to a source root.
func RelativePath(ns string) string {
	return strings.ReplaceAll(ns, ".", "/") + SOURCE_FILE_EXTENSION
}

// NamespaceOf returns the name of the namespace whose source is at pth, if pth is inside one of
// the roots.
func (l *FSLoader) NamespaceOf(pth string) (string, bool) {
	pth = path.Clean(pth)
	if !strings.HasSuffix(pth, SOURCE_FILE_EXTENSION) {
		return "", false
	}

	for _, root := range l.roots {
		prefix := path.Clean(root) + "/"
		if strings.HasPrefix(pth, prefix) {
			rel := strings.TrimSuffix(strings.TrimPrefix(pth, prefix), SOURCE_FILE_EXTENSION)
			return strings.ReplaceAll(rel, "/", "."), true
		}
	}
	return "", false
}

// PathOf returns the path of the source file of ns.
func (l *FSLoader) PathOf(ns string) (string, error) {
	rel := RelativePath(ns)
	for _, root := range l.roots {
		pth := path.Join(root, rel)
		info, err := l.fs.Stat(pth)
		if err == nil && !info.IsDir() {
			return pth, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNamespaceNotFound, ns)
}

func (l *FSLoader) LoadForms(ctx context.Context, ns string) ([]form.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pth, err := l.PathOf(ns)
	if err != nil {
		return nil, err
	}

	info, err := l.fs.Stat(pth)
	if err != nil {
		return nil, err
	}

	l.cacheLock.Lock()
	cached, ok := l.cache.Get(pth)
	l.cacheLock.Unlock()

	if ok {
		entry := cached.(*cachedForms)
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.forms, nil
		}
	}

	content, err := util.ReadFile(l.fs, pth)
	if err != nil {
		return nil, err
	}

	forms, err := reader.ReadAll(pth, string(content))
	if err != nil {
		return nil, err
	}

	l.cacheLock.Lock()
	l.cache.Set(pth, &cachedForms{modTime: info.ModTime(), size: info.Size(), forms: forms})
	l.cacheLock.Unlock()

	return forms, nil
}

// Invalidate removes the cached forms of ns.
func (l *FSLoader) Invalidate(ns string) {
	l.cacheLock.Lock()
	defer l.cacheLock.Unlock()

	for _, root := range l.roots {
		l.cache.Delete(path.Join(root, RelativePath(ns)))
	}
}

func (l *FSLoader) Namespaces(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var namespaces []string

	for _, root := range l.roots {
		if _, err := l.fs.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := util.Walk(l.fs, root, func(pth string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			rel := strings.TrimPrefix(pth, path.Clean(root)+"/")
			if ok, _ := doublestar.Match(SOURCE_FILE_PATTERN, rel); !ok {
				return nil
			}

			ns, ok := l.NamespaceOf(pth)
			if ok && !seen[ns] {
				seen[ns] = true
				namespaces = append(namespaces, ns)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slices.Sort(namespaces)
	return namespaces, nil
}
