// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package utils contains utility functions.
package utils

import (
	"crypto/md5"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

// UnmarshallYAMLFile reads YAML file and unmarshalls it into data.
func UnmarshallYAMLFile(filename string, data any) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, data)
}

// Hash returns an MD5 hash of the given data.
func Hash(data []byte) []byte {
	h := md5.Sum(data)
	return h[:]
}

// DirExists returns true if the given directory exists.
func DirExist(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}

// Returns true if filename has one of the given extension.
// Extensions must start with dot.
func HasFileExt(filename string, extensions []string) bool {
	ext := filepath.Ext(filename)
	for _, v := range extensions {
		if v == ext {
			return true
		}
	}
	return false
}

// ReplaceExtension replaces file extension with the given string.
// Extension must start with dot.
func ReplaceFileExt(filename string, ext string) string {
	oldext := filepath.Ext(filename)
	return filename[:len(filename)-len(oldext)] + ext
}

// NoVowelsHexEncode returns bytes encoded in a hex-like encoding which
// doesn't use vowels.
//
// This is useful to avoid producing substrings, such as "ad", that
// may be blocked by ad-blockers.
func NoVowelsHexEncode(b []byte) string {
	const hextable = "0123456789vbcdzf"
	dst := make([]byte, len(b)*2)
	for i, v := range b {
		dst[i*2] = hextable[v>>4]
		dst[i*2+1] = hextable[v&0x0f]
	}
	return string(dst)
}

// Pool is a worker pool for parallel job processing.
type Pool struct {
	sync.Mutex
	wg   sync.WaitGroup
	jobs chan any
	err  error
}

// NewPool creates a new pool with one worker per CPU which calls fn
// for each added item and stores the first returned error.
func NewPool(fn func(any) error) *Pool {
	return NewPoolSize(runtime.NumCPU(), fn)
}

// NewPoolSize is like NewPool with the given number of workers.
func NewPoolSize(parallelism int, fn func(any) error) *Pool {
	if parallelism < 1 {
		parallelism = 1
	}
	p := &Pool{
		jobs: make(chan any, parallelism),
	}
	// Launch workers.
	for i := 0; i < parallelism; i++ {
		go func() {
			for j := range p.jobs {
				err := fn(j)
				if err != nil {
					p.Lock()
					if p.err == nil {
						p.err = err
					}
					p.Unlock()
				}
				p.wg.Done()
			}
		}()
	}
	return p
}

// Add adds a new job to pool. Function passed to
// NewPool will be called for each job in a worker goroutine.
//
// After finishing adding items, Err must be called on the pool
// to wait for unfinished jobs to complete and get the first error.
func (p *Pool) Add(job any) {
	p.wg.Add(1)
	p.jobs <- job
}

// Err waits for the added jobs, stops the workers and returns the
// first error. The pool cannot be used afterwards.
func (p *Pool) Err() error {
	p.wg.Wait()
	close(p.jobs)
	return p.err
}
