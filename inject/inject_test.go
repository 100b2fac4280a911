// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inject

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	indexPage = "<html>\n<head>\n<title>t</title>\n</head>\n<body></body>\n</html>\n"
	loader    = "var SENTRY_DSN = \"\";\nif(!SENTRY_DSN) return;\n"
)

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexPage), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static", "sentry.js"), []byte(loader), 0o644))
	return dir
}

func read(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(name)
	require.NoError(t, err)
	return string(b)
}

func TestSentry(t *testing.T) {
	dir := writeSite(t)
	require.NoError(t, Sentry(SentryOptions{SiteDir: dir, DSN: "https://key@sentry.example/1", Log: zerolog.Nop()}))

	assert.Equal(t,
		"<html>\n<head>\n<title>t</title>\n    <script src=\"static/sentry.js\" async></script>\n</head>\n<body></body>\n</html>\n",
		read(t, filepath.Join(dir, "index.html")))
	assert.Equal(t,
		"var SENTRY_DSN = \"https://key@sentry.example/1\";\nif(!SENTRY_DSN) return;\n",
		read(t, filepath.Join(dir, "static", "sentry.js")))
}

func TestSentryWithoutDSN(t *testing.T) {
	dir := writeSite(t)
	require.NoError(t, Sentry(SentryOptions{SiteDir: dir, Log: zerolog.Nop()}))
	assert.Equal(t, indexPage, read(t, filepath.Join(dir, "index.html")))
	assert.Equal(t, loader, read(t, filepath.Join(dir, "static", "sentry.js")))
}

func TestSentryWithoutHead(t *testing.T) {
	dir := writeSite(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>"), 0o644))
	assert.Error(t, Sentry(SentryOptions{SiteDir: dir, DSN: "x", Log: zerolog.Nop()}))
}

var sig = &object.Signature{Name: "Builder", Email: "builder@example.com", When: time.Unix(1700000000, 0)}

// newRepo returns a repository with n commits and their hashes, oldest first.
func newRepo(t *testing.T, n int) (string, *git.Repository, []plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	var hashes []plumbing.Hash
	for i := 0; i < n; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sw.js"), []byte(`var VERSION = "dev"; // dev `+string(rune('a'+i))), 0o644))
		_, err = wt.Add("sw.js")
		require.NoError(t, err)
		s := *sig
		s.When = s.When.Add(time.Duration(i) * time.Minute)
		h, err := wt.Commit("commit", &git.CommitOptions{Author: &s, Committer: &s})
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	return dir, repo, hashes
}

func TestDescribe(t *testing.T) {
	dir, repo, hashes := newRepo(t, 3)
	head := hashes[2].String()[:7]

	v, err := Describe(dir, false)
	require.NoError(t, err)
	assert.Equal(t, head, v)

	_, err = repo.CreateTag("light", hashes[2], nil)
	require.NoError(t, err)
	v, err = Describe(dir, false)
	require.NoError(t, err)
	assert.Equal(t, head, v, "lightweight tags are ignored by default")
	v, err = Describe(dir, true)
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	_, err = repo.CreateTag("v1.0.0", hashes[0], &git.CreateTagOptions{Tagger: sig, Message: "v1.0.0"})
	require.NoError(t, err)
	v, err = Describe(dir, false)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0-2-g"+head, v)

	_, err = repo.CreateTag("v1.1.0", hashes[2], &git.CreateTagOptions{Tagger: sig, Message: "v1.1.0"})
	require.NoError(t, err)
	v, err = Describe(filepath.Join(dir), false)
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", v)
}

func TestServiceWorker(t *testing.T) {
	dir, _, hashes := newRepo(t, 1)
	site := t.TempDir()

	v, err := ServiceWorker(VersionOptions{RepoDir: dir, SiteDir: site, Log: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, hashes[0].String()[:7], v)
	assert.Equal(t, `var VERSION = "`+v+`"; // dev a`, read(t, filepath.Join(site, "sw.js")))
	assert.Equal(t, `var VERSION = "dev"; // dev a`, read(t, filepath.Join(dir, "sw.js")))
}

func TestDescribeNotARepo(t *testing.T) {
	_, err := Describe(t.TempDir(), false)
	assert.Error(t, err)
}
