// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine implements the minifiers used by sitemin: external
// commands such as UglifyJS and in-process minifiers.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Exec runs command with args, feeding input on stdin, and returns its
// standard output. A non-zero exit status is reported together with
// whatever the command wrote to stderr.
func Exec(ctx context.Context, command string, args []string, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", command, ctx.Err())
		}
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return stdout.Bytes(), nil
}

// result runs fn in a goroutine and returns its result, or the context
// error if ctx is done first. In-process minifiers cannot be interrupted,
// so fn keeps running in the background until it returns.
func result(ctx context.Context, fn func() (string, error)) (string, error) {
	type res struct {
		s   string
		err error
	}
	ch := make(chan res, 1)
	go func() {
		s, err := fn()
		ch <- res{s, err}
	}()
	select {
	case r := <-ch:
		return r.s, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
