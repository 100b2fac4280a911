// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filewriter writes site files, optionally with precompressed
// siblings for servers that serve them directly.
package filewriter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// sitemin.yml -> compress:
type CompressConfig struct {
	Methods    []string `yaml:"methods"`
	Extensions []string `yaml:"extensions"`
}

type Compressor struct {
	Ext string
	New func(w io.Writer) io.WriteCloser
}

var gzipCompressor = &Compressor{
	Ext: "gz",
	New: func(w io.Writer) io.WriteCloser {
		z, err := gzip.NewWriterLevel(w, gzipLevel)
		if err != nil {
			panic(err.Error()) // shouldn't happen
		}
		return z
	},
}

var brotliCompressor = &Compressor{
	Ext: "br",
	New: func(w io.Writer) io.WriteCloser {
		return brotli.NewWriterLevel(w, brotliLevel)
	},
}

const (
	gzipLevel   = gzip.BestCompression
	brotliLevel = brotli.BestCompression
)

type FileWriter struct {
	compressedExtensions map[string]struct{}
	compressors          []*Compressor
}

func New(c *CompressConfig) (*FileWriter, error) {
	extensions := make(map[string]struct{})
	compressors := make([]*Compressor, 0)
	if c != nil {
		for _, v := range c.Extensions {
			if v != "" && v[0] != '.' {
				v = "." + v
			}
			extensions[v] = struct{}{}
		}
		for _, v := range c.Methods {
			switch v {
			case "gzip":
				compressors = append(compressors, gzipCompressor)
			case "br":
				compressors = append(compressors, brotliCompressor)
			default:
				return nil, fmt.Errorf("unknown compression method: %q", v)
			}
		}
	}
	return &FileWriter{
		compressedExtensions: extensions,
		compressors:          compressors,
	}, nil
}

func (f *FileWriter) numberOfCompressors(ext string) int {
	if _, ok := f.compressedExtensions[ext]; ok {
		return len(f.compressors)
	}
	return 0
}

// WriteFile replaces filename with data. Readers never see a partially
// written file: data goes to a temporary file that is then renamed.
func WriteFile(filename string, data []byte, perm os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

func compressFile(c *Compressor, filename string) (err error) {
	in, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer in.Close()
	outfile := filename + "." + c.Ext
	out, err := os.OpenFile(outfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(outfile)
		}
	}()
	z := c.New(out)
	_, err = io.Copy(z, in)
	if err != nil {
		return err
	}
	err = z.Close()
	if err != nil {
		return err
	}
	return nil
}

// Compress writes compressed siblings of filename (filename.gz,
// filename.br) if its extension is configured for compression.
// It reports whether any were written.
func (f *FileWriter) Compress(filename string) (bool, error) {
	n := f.numberOfCompressors(filepath.Ext(filename))
	if n == 0 {
		return false, nil
	}
	done := make(chan error, n)
	for _, c := range f.compressors {
		go func() {
			done <- compressFile(c, filename)
		}()
	}
	var firstErr error
	for i := 0; i < n; i++ {
		err := <-done
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr == nil, firstErr
}

func copyFile(outfile, infile string) (err error) {
	// Remove old outfile, ignoring errors.
	os.Remove(outfile)

	// Try making hard link instead of copying.
	if err := os.Link(infile, outfile); err == nil {
		return nil // success
	}

	// Failed to create hard link, so try copying content.
	in, err := os.Open(infile)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(outfile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(outfile)
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// CopyFile copies infile to outfile, creating directories as needed.
// Later writes to either file must replace it (see WriteFile) rather
// than write in place, since the two may share storage.
func CopyFile(outfile, infile string) error {
	if err := os.MkdirAll(filepath.Dir(outfile), 0755); err != nil {
		return err
	}
	return copyFile(outfile, infile)
}
