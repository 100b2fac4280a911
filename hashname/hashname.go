// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hashname gives static files content-hashed names and updates
// the references to them, so they can be cached forever.
package hashname

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/sitemin/sitemin/filewriter"
	"github.com/sitemin/sitemin/utils"
)

const DefaultStaticDir = "static"

type Options struct {
	// SiteDir is the built site.
	SiteDir string
	// StaticDir is the directory, relative to SiteDir, whose files are
	// renamed. Empty means DefaultStaticDir.
	StaticDir string
	// NoVowels encodes hashes without vowels, see utils.NoVowelsHexEncode.
	NoVowels bool
	// Parallelism bounds the number of files edited at once.
	// Zero means one per CPU.
	Parallelism int
	Log         zerolog.Logger
}

// Run copies every file under the static directory to a name with a
// hash of its content (app.js to app.0123abcd.js) and rewrites the
// references in all text files of the site, including the originals.
// It returns the site-relative renames.
func Run(opts Options) (map[string]string, error) {
	staticDir := opts.StaticDir
	if staticDir == "" {
		staticDir = DefaultStaticDir
	}
	// Files to edit are listed before copying, so the copies keep their
	// content and hash.
	toEdit, err := listFiles(opts.SiteDir)
	if err != nil {
		return nil, err
	}
	root := filepath.Join(opts.SiteDir, staticDir)
	if !utils.DirExist(root) {
		opts.Log.Warn().Str("dir", root).Msg("no static directory, nothing to hash")
		return map[string]string{}, nil
	}
	toHash, err := listFiles(root)
	if err != nil {
		return nil, err
	}

	renames := make(map[string]string, len(toHash))
	for _, file := range toHash {
		sum, err := hashFile(file)
		if err != nil {
			return nil, err
		}
		hs := hex.EncodeToString(sum[:4])
		if opts.NoVowels {
			hs = utils.NoVowelsHexEncode(sum[:4])
		}
		hashed := utils.ReplaceFileExt(file, "."+hs+filepath.Ext(file))
		opts.Log.Debug().Str("from", file).Str("to", hashed).Msg("copying")
		if err := filewriter.CopyFile(hashed, file); err != nil {
			return nil, fmt.Errorf("hash %s: %w", file, err)
		}
		from, err := relative(opts.SiteDir, file)
		if err != nil {
			return nil, err
		}
		to, err := relative(opts.SiteDir, hashed)
		if err != nil {
			return nil, err
		}
		renames[from] = to
	}
	if len(renames) == 0 {
		return renames, nil
	}

	r := NewReplacer(renames)
	n := opts.Parallelism
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := utils.NewPoolSize(n, func(j any) error {
		file := j.(string)
		edited, err := editFile(file, r)
		if err != nil {
			return fmt.Errorf("edit %s: %w", file, err)
		}
		if edited {
			opts.Log.Debug().Str("file", file).Msg("edited")
		}
		return nil
	})
	for _, file := range toEdit {
		p.Add(file)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	opts.Log.Info().Int("files", len(renames)).Msg("hashed static files")
	return renames, nil
}

// NewReplacer returns a replacer for renames that tries longer paths
// first, so static/a.js does not clobber part of static/a.js.map.
func NewReplacer(renames map[string]string) *strings.Replacer {
	from := make([]string, 0, len(renames))
	for k := range renames {
		from = append(from, k)
	}
	sort.Slice(from, func(i, j int) bool {
		if len(from[i]) != len(from[j]) {
			return len(from[i]) > len(from[j])
		}
		return from[i] < from[j]
	})
	pairs := make([]string, 0, 2*len(from))
	for _, k := range from {
		pairs = append(pairs, k, renames[k])
	}
	return strings.NewReplacer(pairs...)
}

// editFile applies r to file if it is valid UTF-8.
func editFile(file string, r *strings.Replacer) (bool, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return false, err
	}
	if !utf8.Valid(b) {
		return false, nil
	}
	s := r.Replace(string(b))
	if s == string(b) {
		return false, nil
	}
	fi, err := os.Stat(file)
	if err != nil {
		return false, err
	}
	return true, filewriter.WriteFile(file, []byte(s), fi.Mode().Perm())
}

func hashFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// relative returns name relative to dir with forward slashes.
func relative(dir, name string) (string, error) {
	rel, err := filepath.Rel(dir, name)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
