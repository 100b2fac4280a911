// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package site runs the post-build steps on a built site.
package site

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitemin/sitemin/attrmin"
	"github.com/sitemin/sitemin/engine"
	"github.com/sitemin/sitemin/fetch"
	"github.com/sitemin/sitemin/filewriter"
	"github.com/sitemin/sitemin/filters"
	"github.com/sitemin/sitemin/hashname"
	"github.com/sitemin/sitemin/inject"
	"github.com/sitemin/sitemin/utils"
)

// Overrides replace configuration values, usually from flags.
type Overrides struct {
	Engine  string
	SiteDir string
}

type Site struct {
	BaseDir string
	Config  *Config
	Log     zerolog.Logger

	Filters *filters.Collection
	engine  attrmin.ExpressionMinifier
	markup  attrmin.MarkupMinifier
	writer  *filewriter.FileWriter
}

// Open loads the configuration of the project in dir. ctx bounds the
// commands run by filters later on.
func Open(ctx context.Context, dir string, o Overrides, log zerolog.Logger) (*Site, error) {
	conf, err := readConfig(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return nil, err
	}
	if o.Engine != "" {
		conf.Engine = o.Engine
	}
	if o.SiteDir != "" {
		conf.SiteDir = o.SiteDir
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	s := &Site{
		BaseDir: dir,
		Config:  conf,
		Log:     log,
	}
	s.engine = s.newEngine()
	s.markup = s.newMarkup()
	if s.writer, err = filewriter.New(conf.Compress); err != nil {
		return nil, err
	}
	if err := s.LoadFilters(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Site) newEngine() attrmin.ExpressionMinifier {
	if s.Config.Engine == EngineBuiltin {
		return engine.NewBuiltin()
	}
	return &engine.Uglify{Command: s.Config.UglifyJS}
}

func (s *Site) newMarkup() attrmin.MarkupMinifier {
	switch s.Config.Markup {
	case MarkupHTMLMin:
		return engine.HTMLMin{}
	case MarkupNone:
		return nil
	}
	return engine.Markup{}
}

// AttrOptions returns the options of attribute minification.
func (s *Site) AttrOptions() *attrmin.Options {
	return &attrmin.Options{
		Timeout:     s.Config.Timeout,
		Parallelism: s.Config.Parallelism,
		CacheSize:   s.Config.CacheSize,
		Logger:      &s.Log,
	}
}

func (s *Site) LoadFilters(ctx context.Context) error {
	fc := filters.NewCollection(&filters.Env{
		Context: ctx,
		Engine:  s.engine,
		Markup:  s.markup,
		Options: s.AttrOptions(),
		Timeout: s.Config.Timeout,
	})
	for extension, line := range s.Config.Filters {
		if err := fc.AddFromYAML(extension, line); err != nil {
			return err
		}
	}
	s.Filters = fc
	return nil
}

// SiteDir returns the directory of the built site.
func (s *Site) SiteDir() string {
	return filepath.Join(s.BaseDir, s.Config.SiteDir)
}

// isIgnoredFile returns true if filename should be ignored
// when minifying or compressing.
func isIgnoredFile(filename string) bool {
	// Files ending with ~ are considered temporary.
	if filename[len(filename)-1] == '~' {
		return true
	}
	// Crap from OS X Finder.
	if filename == ".DS_Store" {
		return true
	}
	return utils.HasFileExt(filename, []string{".gz", ".br"})
}

// siteFiles returns the regular files of the built site.
func (s *Site) siteFiles() ([]string, error) {
	root := s.SiteDir()
	if !utils.DirExist(root) {
		return nil, fmt.Errorf("site directory %s does not exist", root)
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !isIgnoredFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (s *Site) newPool(fn func(any) error) *utils.Pool {
	if s.Config.Parallelism > 0 {
		return utils.NewPoolSize(s.Config.Parallelism, fn)
	}
	return utils.NewPool(fn)
}

// Minify applies the filter of each file's extension. A filter that
// fails leaves the file as it was.
func (s *Site) Minify() error {
	files, err := s.siteFiles()
	if err != nil {
		return err
	}
	p := s.newPool(func(j any) error {
		return s.minifyFile(j.(string))
	})
	for _, file := range files {
		if s.Filters.Get(filepath.Ext(file)) != nil {
			p.Add(file)
		}
	}
	return p.Err()
}

func (s *Site) minifyFile(file string) error {
	in, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	f := s.Filters.Get(filepath.Ext(file))
	out, err := f.Apply(in)
	if err != nil {
		s.Log.Warn().
			Str("title", fmt.Sprintf("Minification of %s failed", file)).
			Err(err).
			Msg("keeping file as is")
		return nil
	}
	if bytes.Equal(in, out) {
		return nil
	}
	fi, err := os.Stat(file)
	if err != nil {
		return err
	}
	s.Log.Info().Str("file", file).Str("filter", f.Name()).Int("from", len(in)).Int("to", len(out)).Msg("minified")
	return filewriter.WriteFile(file, out, fi.Mode().Perm())
}

// Hash gives static files content-hashed names.
func (s *Site) Hash() error {
	_, err := hashname.Run(hashname.Options{
		SiteDir:     s.SiteDir(),
		StaticDir:   s.Config.StaticDir,
		NoVowels:    s.Config.HashNoVowels,
		Parallelism: s.Config.Parallelism,
		Log:         s.Log,
	})
	return err
}

// Sentry injects the DSN from the configured environment variable.
func (s *Site) Sentry() error {
	return inject.Sentry(inject.SentryOptions{
		SiteDir: s.SiteDir(),
		Index:   s.Config.Index,
		Script:  s.Config.SentryScript,
		DSN:     os.Getenv(s.Config.SentryDSNEnv),
		Log:     s.Log,
	})
}

// Version copies the service worker into the site with the current
// version. Projects without a service worker are skipped.
func (s *Site) Version() error {
	sw := filepath.Join(s.BaseDir, s.Config.ServiceWorker)
	if _, err := os.Stat(sw); os.IsNotExist(err) {
		s.Log.Info().Str("file", sw).Msg("no service worker, skipping version")
		return nil
	}
	_, err := inject.ServiceWorker(inject.VersionOptions{
		RepoDir:         s.BaseDir,
		ServiceWorker:   sw,
		SiteDir:         s.SiteDir(),
		LightweightTags: s.Config.LightweightTags,
		Log:             s.Log,
	})
	return err
}

// Compress writes compressed siblings of the configured file types.
func (s *Site) Compress() error {
	files, err := s.siteFiles()
	if err != nil {
		return err
	}
	p := s.newPool(func(j any) error {
		_, err := s.writer.Compress(j.(string))
		return err
	})
	for _, file := range files {
		p.Add(file)
	}
	return p.Err()
}

// Download fetches the configured assets into the project sources.
func (s *Site) Download(ctx context.Context) error {
	_, err := fetch.New(fetch.Options{
		Dir:      filepath.Join(s.BaseDir, s.Config.AssetsDir),
		URLs:     s.Config.Assets,
		Mappings: s.Config.AssetMappings,
		Log:      s.Log,
	}).Run(ctx)
	return err
}

// Build runs all steps on the built site. The Sentry loader is edited
// before hashing so that its name reflects the DSN.
func (s *Site) Build(ctx context.Context) error {
	t := time.Now()
	defer func() {
		s.Log.Info().Dur("took", time.Since(t)).Msg("build finished")
	}()
	steps := []struct {
		name string
		fn   func() error
	}{
		{"sentry", s.Sentry},
		{"version", s.Version},
		{"minify", s.Minify},
		{"hash", s.Hash},
		{"compress", s.Compress},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Log.Debug().Str("step", step.name).Msg("running")
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

// Attrs minifies the directive attributes of the document read from r.
func (s *Site) Attrs(ctx context.Context, r io.Reader, w io.Writer) error {
	doc, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	out, err := attrmin.NewRewriter(s.engine, nil, s.AttrOptions()).Rewrite(ctx, string(doc))
	if err != nil {
		s.Log.Warn().Err(err).Msg("attribute scan failed, keeping attributes")
	}
	_, err = io.WriteString(w, out)
	return err
}

// Serve serves the built site until ctx is done.
func (s *Site) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: http.FileServer(http.Dir(s.SiteDir()))}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	s.Log.Info().Str("addr", addr).Msg("serving, press Ctrl+C to quit")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
