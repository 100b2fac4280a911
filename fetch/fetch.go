// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch downloads third-party static assets into the site sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cenkalti/backoff.v1"
)

const (
	DefaultDir         = "static/ext"
	DefaultRegistry    = "https://registry.npmjs.org"
	DefaultParallelism = 4
	DefaultMaxElapsed  = time.Minute
)

// DefaultAssets are downloaded when none are configured.
var DefaultAssets = []string{
	"https://browser.sentry-cdn.com/{npm:@sentry/browser}/bundle.tracing.replay.min.js",
	"https://cdn.jsdelivr.net/npm/alpinejs@3/dist/cdn.min.js",
	"https://cdn.jsdelivr.net/npm/alpinejs-i18n@2/dist/cdn.min.js",
	"https://cdn.jsdelivr.net/npm/eruda@3/eruda.min.js",
	"https://cdn.jsdelivr.net/npm/jszip@3/dist/jszip.min.js",
	"https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-chtml-full.js",
	"https://cdn.jsdelivr.net/npm/sql.js@1/dist/sql-wasm.js",
	"https://cdn.jsdelivr.net/npm/sql.js@1/dist/sql-wasm.wasm",
	"https://cdn.jsdelivr.net/npm/tablesort@5/dist/tablesort.min.js",
}

// Mapping names the file downloaded from any URL containing Match.
type Mapping struct {
	Match string `yaml:"match"`
	Name  string `yaml:"name"`
}

// DefaultMappings go with DefaultAssets.
var DefaultMappings = []Mapping{
	{Match: "alpinejs-i18n", Name: "i18n.min.js"},
	{Match: "mathjax", Name: "mathjax.min.js"},
}

type Options struct {
	// Dir receives the files. Empty means DefaultDir.
	Dir string
	// URLs to download. A {npm:package} placeholder is replaced with
	// the latest version of the package.
	URLs []string
	// Mappings are tried in order; the first match names the file.
	Mappings []Mapping
	// Registry is the npm registry. Empty means DefaultRegistry.
	Registry    string
	Client      *http.Client
	Parallelism int
	// MaxElapsed bounds the retries of a single request.
	MaxElapsed time.Duration
	Log        zerolog.Logger
}

var placeholderRx = regexp.MustCompile(`\{npm:([^}]+)\}`)

type Fetcher struct {
	opts Options

	mu       sync.Mutex
	versions map[string]string
}

func New(opts Options) *Fetcher {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Registry == "" {
		opts.Registry = DefaultRegistry
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = DefaultMaxElapsed
	}
	return &Fetcher{opts: opts, versions: make(map[string]string)}
}

// Run downloads all URLs. It returns the paths of the written files.
func (f *Fetcher) Run(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(f.opts.Dir, 0755); err != nil {
		return nil, err
	}
	files := make([]string, len(f.opts.URLs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Parallelism)
	for i, raw := range f.opts.URLs {
		g.Go(func() error {
			u, err := f.Resolve(ctx, raw)
			if err != nil {
				return err
			}
			name, err := f.FileName(u)
			if err != nil {
				return err
			}
			out := filepath.Join(f.opts.Dir, name)
			if err := f.download(ctx, u, out); err != nil {
				return fmt.Errorf("download %s: %w", u, err)
			}
			f.opts.Log.Info().Str("url", u).Str("file", out).Msg("downloaded")
			files[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Resolve replaces the {npm:package} placeholders of rawURL.
func (f *Fetcher) Resolve(ctx context.Context, rawURL string) (string, error) {
	var firstErr error
	out := placeholderRx.ReplaceAllStringFunc(rawURL, func(m string) string {
		pkg := placeholderRx.FindStringSubmatch(m)[1]
		v, err := f.Version(ctx, pkg)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Version returns the latest published version of an npm package.
func (f *Fetcher) Version(ctx context.Context, pkg string) (string, error) {
	f.mu.Lock()
	v, ok := f.versions[pkg]
	f.mu.Unlock()
	if ok {
		return v, nil
	}

	u := strings.TrimSuffix(f.opts.Registry, "/") + "/" + pkg + "/latest"
	var meta struct {
		Version string `json:"version"`
	}
	err := f.retry(ctx, u, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&meta)
	})
	if err != nil {
		return "", fmt.Errorf("latest version of %s: %w", pkg, err)
	}
	if meta.Version == "" {
		return "", fmt.Errorf("latest version of %s: no version in registry response", pkg)
	}
	f.opts.Log.Debug().Str("package", pkg).Str("version", meta.Version).Msg("resolved")

	f.mu.Lock()
	f.versions[pkg] = meta.Version
	f.mu.Unlock()
	return meta.Version, nil
}

// FileName returns the name under which u is saved.
func (f *Fetcher) FileName(u string) (string, error) {
	for _, m := range f.opts.Mappings {
		if strings.Contains(u, m.Match) {
			return m.Name, nil
		}
	}
	p, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	name := path.Base(p.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("no file name in %s", u)
	}
	return name, nil
}

func (f *Fetcher) download(ctx context.Context, u, out string) error {
	tmp := out + ".tmp"
	err := f.retry(ctx, u, func(resp *http.Response) error {
		w, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, out)
}

// statusError is an unexpected HTTP response status.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.code, http.StatusText(e.code))
}

func (e *statusError) temporary() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests || e.code == http.StatusRequestTimeout
}

// retry GETs u and passes a successful response to fn, retrying
// network errors and temporary statuses with exponential backoff.
func (f *Fetcher) retry(ctx context.Context, u string, fn func(*http.Response) error) error {
	var permanent error
	op := func() error {
		err := f.get(ctx, u, fn)
		var se *statusError
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			permanent = ctx.Err()
			return nil
		case errors.As(err, &se) && !se.temporary():
			permanent = err
			return nil
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = f.opts.MaxElapsed
	if b.InitialInterval > f.opts.MaxElapsed/10 {
		b.InitialInterval = f.opts.MaxElapsed / 10
	}
	b.Reset()
	err := backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		f.opts.Log.Warn().Err(err).Str("url", u).Dur("retry_in", d).Msg("request failed")
	})
	if err != nil {
		return err
	}
	return permanent
}

func (f *Fetcher) get(ctx context.Context, u string, fn func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &statusError{code: resp.StatusCode}
	}
	return fn(resp)
}
