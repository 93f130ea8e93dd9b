package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
)

func TestFSLoader(t *testing.T) {
	testconfig.AllowParallelization(t)

	ctx := context.Background()

	t.Run("load forms", func(t *testing.T) {
		l, err := NewMemLoader(map[string]string{
			"app.top": "(ns app.top) (def x 1)",
		})
		if !assert.NoError(t, err) {
			return
		}

		forms, err := l.LoadForms(ctx, "app.top")
		if !assert.NoError(t, err) {
			return
		}
		if !assert.Len(t, forms, 2) {
			return
		}
		assert.Equal(t, "(ns app.top)", forms[0].String())
		assert.Equal(t, "src/app/top.brj", forms[0].Location().SourceName)
	})

	t.Run("namespace not found", func(t *testing.T) {
		l, _ := NewMemLoader(nil)
		_, err := l.LoadForms(ctx, "app.missing")
		assert.True(t, errors.Is(err, ErrNamespaceNotFound))
	})

	t.Run("read errors are returned", func(t *testing.T) {
		l, _ := NewMemLoader(map[string]string{"app": "(ns app"})
		_, err := l.LoadForms(ctx, "app")
		assert.Error(t, err)
	})

	t.Run("modified sources are read again", func(t *testing.T) {
		l, _ := NewMemLoader(map[string]string{"app": "(ns app) 1"})

		forms, err := l.LoadForms(ctx, "app")
		if !assert.NoError(t, err) {
			return
		}
		assert.Len(t, forms, 2)

		if !assert.NoError(t, l.WriteSource("app", "(ns app) 1 22")) {
			return
		}
		l.Invalidate("app")

		forms, err = l.LoadForms(ctx, "app")
		if !assert.NoError(t, err) {
			return
		}
		assert.Len(t, forms, 3)
	})

	t.Run("first root wins", func(t *testing.T) {
		fls := memfs.New()
		util.WriteFile(fls, "a/app.brj", []byte("(ns app) 1"), DEFAULT_FILE_FMODE)
		util.WriteFile(fls, "b/app.brj", []byte("(ns app) 1 2"), DEFAULT_FILE_FMODE)

		l := NewFSLoader(fls, "a", "b")
		forms, err := l.LoadForms(ctx, "app")
		if !assert.NoError(t, err) {
			return
		}
		assert.Len(t, forms, 2)
	})

	t.Run("namespaces", func(t *testing.T) {
		fls := memfs.New()
		util.WriteFile(fls, "a/app/top.brj", nil, DEFAULT_FILE_FMODE)
		util.WriteFile(fls, "a/app/base.brj", nil, DEFAULT_FILE_FMODE)
		util.WriteFile(fls, "a/app/notes.txt", nil, DEFAULT_FILE_FMODE)
		util.WriteFile(fls, "b/app/base.brj", nil, DEFAULT_FILE_FMODE)
		util.WriteFile(fls, "b/lib.brj", nil, DEFAULT_FILE_FMODE)

		l := NewFSLoader(fls, "a", "b", "missing")
		namespaces, err := l.Namespaces(ctx)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"app.base", "app.top", "lib"}, namespaces)
	})

	t.Run("namespace of a path", func(t *testing.T) {
		l := NewFSLoader(memfs.New(), "src", "lib")

		ns, ok := l.NamespaceOf("src/app/top.brj")
		assert.True(t, ok)
		assert.Equal(t, "app.top", ns)

		ns, ok = l.NamespaceOf("lib/./x.brj")
		assert.True(t, ok)
		assert.Equal(t, "x", ns)

		_, ok = l.NamespaceOf("other/x.brj")
		assert.False(t, ok)

		_, ok = l.NamespaceOf("src/x.txt")
		assert.False(t, ok)
	})
}
