// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package site

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sitemin/sitemin/attrmin"
	"github.com/sitemin/sitemin/fetch"
	"github.com/sitemin/sitemin/filewriter"
	"github.com/sitemin/sitemin/hashname"
	"github.com/sitemin/sitemin/inject"
	"github.com/sitemin/sitemin/utils"
)

const (
	ConfigFileName = "sitemin.yml"

	DefaultSiteDir      = "site"
	DefaultSentryDSNEnv = "SENTRY_DSN"

	EngineBuiltin = "builtin"
	EngineUglify  = "uglifyjs"

	MarkupTdewolff = "tdewolff"
	MarkupHTMLMin  = "htmlmin"
	MarkupNone     = "none"
)

// DefaultFilters are used for extensions without a configured filter.
var DefaultFilters = map[string]interface{}{
	".html": "alpine",
	".css":  "cssmin",
	".js":   "jsmin",
}

type Config struct {
	// Directory of the built site, relative to the project.
	SiteDir string `yaml:"site_dir"`
	// Directory of hashed files, relative to SiteDir.
	StaticDir string `yaml:"static_dir"`
	// Page that loads the Sentry script, relative to SiteDir.
	Index string `yaml:"index"`

	// Snippet minifier: builtin or uglifyjs.
	Engine   string `yaml:"engine"`
	UglifyJS string `yaml:"uglifyjs"`
	// Document minifier: tdewolff, htmlmin or none.
	Markup      string        `yaml:"markup"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`
	CacheSize   int           `yaml:"cache_size"`

	// Extension to filter line, e.g. `.svg: [minify, image/svg+xml]`.
	Filters  map[string]interface{}     `yaml:"filters"`
	Compress *filewriter.CompressConfig `yaml:"compress"`

	HashNoVowels    bool   `yaml:"hash_no_vowels"`
	SentryDSNEnv    string `yaml:"sentry_dsn_env"`
	SentryScript    string `yaml:"sentry_script"`
	ServiceWorker   string `yaml:"service_worker"`
	LightweightTags bool   `yaml:"lightweight_tags"`

	Assets        []string        `yaml:"assets"`
	AssetMappings []fetch.Mapping `yaml:"asset_mappings"`
	AssetsDir     string          `yaml:"assets_dir"`
}

// readConfig reads the configuration file. A missing file gives the
// default configuration.
func readConfig(filename string) (*Config, error) {
	var c Config
	if err := utils.UnmarshallYAMLFile(filename, &c); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	c.setDefaults()
	return &c, c.validate()
}

func (c *Config) setDefaults() {
	if c.SiteDir == "" {
		c.SiteDir = DefaultSiteDir
	}
	if c.StaticDir == "" {
		c.StaticDir = hashname.DefaultStaticDir
	}
	if c.Index == "" {
		c.Index = inject.DefaultIndex
	}
	if c.Engine == "" {
		c.Engine = EngineUglify
	}
	if c.Markup == "" {
		c.Markup = MarkupTdewolff
	}
	if c.Timeout <= 0 {
		c.Timeout = attrmin.DefaultTimeout
	}
	if c.Filters == nil {
		c.Filters = make(map[string]interface{})
	}
	for ext, line := range DefaultFilters {
		if _, ok := c.Filters[ext]; !ok {
			c.Filters[ext] = line
		}
	}
	if c.SentryDSNEnv == "" {
		c.SentryDSNEnv = DefaultSentryDSNEnv
	}
	if c.SentryScript == "" {
		c.SentryScript = inject.DefaultSentryScript
	}
	if c.ServiceWorker == "" {
		c.ServiceWorker = inject.DefaultServiceWorker
	}
	if c.Assets == nil {
		c.Assets = fetch.DefaultAssets
		if c.AssetMappings == nil {
			c.AssetMappings = fetch.DefaultMappings
		}
	}
	if c.AssetsDir == "" {
		c.AssetsDir = filepath.FromSlash(fetch.DefaultDir)
	}
}

func (c *Config) validate() error {
	switch c.Engine {
	case EngineBuiltin, EngineUglify:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	switch c.Markup {
	case MarkupTdewolff, MarkupHTMLMin, MarkupNone:
	default:
		return fmt.Errorf("unknown markup minifier %q", c.Markup)
	}
	return nil
}
