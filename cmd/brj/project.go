package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bridjelang/bridje/internal/config"
	"github.com/bridjelang/bridje/internal/diag"
	"github.com/bridjelang/bridje/internal/engine"
	"github.com/bridjelang/bridje/internal/loader"
	"github.com/bridjelang/bridje/internal/slog"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/maruel/natural"
	"github.com/rs/zerolog"
)

type projectOptions struct {
	dir      string
	roots    string
	logLevel string
	color    string
}

func addProjectFlags(flags *flag.FlagSet, opts *projectOptions) {
	flags.StringVar(&opts.dir, "dir", ".", "project directory (containing "+config.PROJECT_CONFIG_FILE+")")
	flags.StringVar(&opts.roots, "root", "", "comma-separated source roots, relative to the project directory (overrides the configuration)")
	flags.StringVar(&opts.logLevel, "log", "", "log level (overrides the configuration)")
	flags.StringVar(&opts.color, "color", "", "color mode: auto, always or never (overrides the configuration)")
}

// A project gathers what the subcommands need: the configuration, the loader reading the
// source roots and the engine.
type project struct {
	dir    string
	config config.Config
	logger zerolog.Logger
	color  bool

	loader *loader.FSLoader
	engine *engine.Engine

	//sources that are not files (expressions passed to eval, REPL input).
	inlineSources map[string]string
}

func openProject(opts projectOptions, outW, errW io.Writer) (*project, error) {
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	if opts.roots != "" {
		cfg.SourceRoots = strings.Split(opts.roots, ",")
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.color != "" {
		cfg.Color = opts.color
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := slog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var color bool
	if f, ok := errW.(*os.File); ok {
		color = config.ShouldColorizeFile(cfg.Color, f)
	} else {
		color = config.ReadColorEnv(os.LookupEnv).ShouldColorize(cfg.Color, false)
	}

	logger := slog.NewConsoleLogger(errW, level, color)
	l := loader.NewFSLoader(osfs.New(dir), cfg.SourceRoots...)

	return &project{
		dir:           dir,
		config:        cfg,
		logger:        logger,
		color:         color,
		loader:        l,
		engine:        engine.New(engine.Config{Loader: l, Logger: &logger, Out: outW}),
		inlineSources: map[string]string{},
	}, nil
}

func (p *project) source(sourceName string) (string, bool) {
	if src, ok := p.inlineSources[sourceName]; ok {
		return src, true
	}

	content, err := util.ReadFile(p.loader.FS(), sourceName)
	if err != nil {
		return "", false
	}
	return string(content), true
}

// reportError prints the diagnostics of err and returns the number of diagnostics.
func (p *project) reportError(w io.Writer, err error) int {
	diagnostics := diag.FromError(err)
	if rerr := diag.NewRenderer(w, p.color, p.source).Render(diagnostics); rerr != nil {
		p.logger.Error().Err(rerr).Msg("failed to render diagnostics")
	}
	return len(diagnostics)
}

func sortNaturally(names []string) []string {
	sort.Sort(natural.StringSlice(names))
	return names
}
