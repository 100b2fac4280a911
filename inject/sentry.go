// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inject adds build-time values to files of the built site.
package inject

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/sitemin/sitemin/filewriter"
)

const (
	DefaultSentryScript = "static/sentry.js"
	DefaultIndex        = "index.html"

	sentryPlaceholder = `SENTRY_DSN = ""`
)

type SentryOptions struct {
	SiteDir string
	// Index is the page, relative to SiteDir, that loads the script.
	// Empty means DefaultIndex.
	Index string
	// Script is the Sentry loader relative to SiteDir.
	// Empty means DefaultSentryScript.
	Script string
	DSN    string
	Log    zerolog.Logger
}

// Sentry sets the DSN in the Sentry loader script and adds the script
// to the head of the index page. Without a DSN nothing is changed.
func Sentry(opts SentryOptions) error {
	if opts.DSN == "" {
		opts.Log.Warn().
			Str("title", "No Sentry DSN available").
			Msg("Skipping Sentry DSN injection")
		return nil
	}
	index := opts.Index
	if index == "" {
		index = DefaultIndex
	}
	script := opts.Script
	if script == "" {
		script = DefaultSentryScript
	}

	opts.Log.Info().Msg("adding Sentry script in head")
	tag := fmt.Sprintf(`    <script src="%s" async></script>`+"\n", script)
	err := edit(filepath.Join(opts.SiteDir, filepath.FromSlash(index)), func(s string) (string, error) {
		i := strings.Index(s, "</head>")
		if i < 0 {
			return "", fmt.Errorf("no </head> tag")
		}
		return s[:i] + tag + s[i:], nil
	})
	if err != nil {
		return err
	}

	opts.Log.Info().Msg("adding Sentry DSN in script")
	dsn, err := json.Marshal(opts.DSN)
	if err != nil {
		return err
	}
	return edit(filepath.Join(opts.SiteDir, filepath.FromSlash(script)), func(s string) (string, error) {
		if !strings.Contains(s, sentryPlaceholder) {
			return "", fmt.Errorf("no %s placeholder", sentryPlaceholder)
		}
		return strings.Replace(s, sentryPlaceholder, "SENTRY_DSN = "+string(dsn), 1), nil
	})
}

// edit replaces the content of file with fn applied to it.
func edit(file string, fn func(string) (string, error)) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	s, err := fn(string(b))
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	fi, err := os.Stat(file)
	if err != nil {
		return err
	}
	return filewriter.WriteFile(file, []byte(s), fi.Mode().Perm())
}
