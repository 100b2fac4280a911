// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inject

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/rs/zerolog"

	"github.com/sitemin/sitemin/filewriter"
)

const (
	DefaultServiceWorker = "sw.js"

	abbrevLen = 7
)

// Describe names the commit at HEAD of the repository containing dir
// like `git describe --always`: the nearest annotated tag, followed by
// the number of commits since it and the abbreviated hash when HEAD is
// not tagged, or only the abbreviated hash if no tag is reachable.
// With lightweight set, lightweight tags are considered too.
func Describe(dir string, lightweight bool) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	tags, err := tagsByCommit(repo, lightweight)
	if err != nil {
		return "", err
	}
	abbrev := head.Hash().String()[:abbrevLen]
	if len(tags) == 0 {
		return abbrev, nil
	}

	commits, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", err
	}
	defer commits.Close()
	var name string
	depth := 0
	err = commits.ForEach(func(c *object.Commit) error {
		if names, ok := tags[c.Hash]; ok {
			name = names[0]
			return storer.ErrStop
		}
		depth++
		return nil
	})
	if err != nil {
		return "", err
	}
	switch {
	case name == "":
		return abbrev, nil
	case depth == 0:
		return name, nil
	}
	return fmt.Sprintf("%s-%d-g%s", name, depth, abbrev), nil
}

// tagsByCommit returns the sorted tag names pointing at each commit.
func tagsByCommit(repo *git.Repository, lightweight bool) (map[plumbing.Hash][]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, err
	}
	tags := make(map[plumbing.Hash][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		tag, err := repo.TagObject(ref.Hash())
		switch {
		case err == nil:
			if tag.TargetType != plumbing.CommitObject {
				return nil
			}
			target = tag.Target
		case errors.Is(err, plumbing.ErrObjectNotFound):
			if !lightweight {
				return nil
			}
		default:
			return err
		}
		tags[target] = append(tags[target], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, names := range tags {
		sort.Strings(names)
	}
	return tags, nil
}

type VersionOptions struct {
	// RepoDir is inside the repository to describe.
	RepoDir string
	// ServiceWorker is the service worker source.
	// Empty means DefaultServiceWorker in RepoDir.
	ServiceWorker string
	SiteDir       string
	// LightweightTags makes lightweight tags eligible as versions.
	LightweightTags bool
	Log             zerolog.Logger
}

// ServiceWorker writes the service worker into the site with its first
// "dev" replaced by the described version, so that clients drop caches
// of older builds. The source file is not modified.
func ServiceWorker(opts VersionOptions) (string, error) {
	version, err := Describe(opts.RepoDir, opts.LightweightTags)
	if err != nil {
		return "", err
	}
	sw := opts.ServiceWorker
	if sw == "" {
		sw = filepath.Join(opts.RepoDir, DefaultServiceWorker)
	}
	b, err := os.ReadFile(sw)
	if err != nil {
		return "", err
	}
	s := string(b)
	if !strings.Contains(s, "dev") {
		opts.Log.Warn().Str("file", sw).Msg("no version placeholder in service worker")
	}
	// Only the first one, comments may mention "dev" too.
	s = strings.Replace(s, "dev", version, 1)
	out := filepath.Join(opts.SiteDir, filepath.Base(sw))
	if err := filewriter.WriteFile(out, []byte(s), 0644); err != nil {
		return "", err
	}
	opts.Log.Info().Str("version", version).Str("file", out).Msg("service worker versioned")
	return version, nil
}
