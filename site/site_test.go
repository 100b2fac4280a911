// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package site

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitemin/sitemin/fetch"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestDefaultConfig(t *testing.T) {
	c, err := readConfig(filepath.Join(t.TempDir(), ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "site", c.SiteDir)
	assert.Equal(t, "static", c.StaticDir)
	assert.Equal(t, EngineUglify, c.Engine)
	assert.Equal(t, MarkupTdewolff, c.Markup)
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Equal(t, "alpine", c.Filters[".html"])
	assert.Equal(t, "SENTRY_DSN", c.SentryDSNEnv)
	assert.Equal(t, fetch.DefaultAssets, c.Assets)
	assert.Equal(t, fetch.DefaultMappings, c.AssetMappings)
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{ConfigFileName: `
site_dir: public
engine: builtin
timeout: 2s
filters:
  .html: [alpine, attrs]
  .svg: [minify, image/svg+xml]
compress:
  methods: [gzip, br]
  extensions: [html, css]
assets:
  - https://example.com/{npm:pkg}/a.js
`})
	c, err := readConfig(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "public", c.SiteDir)
	assert.Equal(t, EngineBuiltin, c.Engine)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.Equal(t, []interface{}{"alpine", "attrs"}, c.Filters[".html"])
	assert.Equal(t, "cssmin", c.Filters[".css"])
	assert.Equal(t, []string{"gzip", "br"}, c.Compress.Methods)
	assert.Equal(t, []string{"https://example.com/{npm:pkg}/a.js"}, c.Assets)
	assert.Nil(t, c.AssetMappings)
}

func TestConfigErrors(t *testing.T) {
	for _, config := range []string{"engine: closure", "markup: tidy", "filters: {.html: nosuch}", "compress: {methods: [zstd]}", "site_dir: [a"} {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{ConfigFileName: config})
		_, err := Open(context.Background(), dir, Overrides{}, zerolog.Nop())
		assert.Error(t, err, config)
	}
	_, err := Open(context.Background(), t.TempDir(), Overrides{Engine: "closure"}, zerolog.Nop())
	assert.Error(t, err)
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
  <title>Demo</title>
  <link rel="stylesheet" href="static/style.css">
</head>
<body>
  <div x-data="{ open: false }">
    <button @click="open = !open;   track('toggle')">Toggle</button>
    <p x-show="open  &&  ready" class="note  big">Hello</p>
    <template x-for="item in items"><span x-text="item.name"></span></template>
  </div>
  <script src="static/app.js"></script>
</body>
</html>
`

func newProject(t *testing.T) string {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		ConfigFileName:          "compress:\n  methods: [gzip]\n  extensions: [html]\n",
		"site/index.html":       indexPage,
		"site/static/style.css": "body {\n  color: red;\n}\n",
		"site/static/app.js":    "// app\nvar answer = 42;\n",
		"site/static/sentry.js": `var SENTRY_DSN = "";`,
	})
	return dir
}

func TestBuild(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	dir := newProject(t)
	s, err := Open(context.Background(), dir, Overrides{Engine: EngineBuiltin}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Build(context.Background()))

	b, err := os.ReadFile(filepath.Join(dir, "site", "index.html"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "<!DOCTYPE html>"))
	assert.Less(t, len(b), len(indexPage))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	require.NoError(t, err)
	attr := func(sel, name string) string {
		v, ok := doc.Find(sel).Attr(name)
		require.True(t, ok, "%s[%s]", sel, name)
		return v
	}
	assert.Equal(t, "open&&ready", attr("p", "x-show"))
	assert.Equal(t, "item in items", attr("template", "x-for"))
	assert.Equal(t, "item.name", attr("span", "x-text"))
	assert.Regexp(t, `^static/app\.[0-9a-f]{8}\.js$`, attr("script", "src"))
	assert.Regexp(t, `^static/style\.[0-9a-f]{8}\.css$`, attr("link", "href"))

	css, err := os.ReadFile(filepath.Join(dir, "site", "static", "style.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", strings.TrimSpace(string(css)))

	assert.FileExists(t, filepath.Join(dir, "site", "index.html.gz"))
	assert.NoFileExists(t, filepath.Join(dir, "site", "static", "style.css.gz"))
	// No DSN: the loader is untouched.
	b, err = os.ReadFile(filepath.Join(dir, "site", "static", "sentry.js"))
	require.NoError(t, err)
	assert.Equal(t, `var SENTRY_DSN="";`, strings.TrimSpace(string(b)))
}

func TestBuildWithoutSite(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), Overrides{Engine: EngineBuiltin}, zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, s.Build(context.Background()))
}

func TestAttrs(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), Overrides{Engine: EngineBuiltin}, zerolog.Nop())
	require.NoError(t, err)
	var out bytes.Buffer
	in := `<a  x-show="a  ||  b"   href="x y">`
	require.NoError(t, s.Attrs(context.Background(), strings.NewReader(in), &out))
	assert.Equal(t, `<a  x-show="a||b"   href="x y">`, out.String())
}
