// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/sitemin/sitemin/attrmin"
)

// DefaultUglifyCommand is the UglifyJS executable looked up in PATH.
const DefaultUglifyCommand = "uglifyjs"

// Uglify minifies snippets with the UglifyJS command line tool.
type Uglify struct {
	// Command is the uglifyjs executable. Empty means DefaultUglifyCommand.
	Command string
}

func (u *Uglify) command() string {
	if u.Command == "" {
		return DefaultUglifyCommand
	}
	return u.Command
}

// Args returns the command line arguments for opts.
func (u *Uglify) Args(opts attrmin.ExpressionOptions) []string {
	args := []string{"--compress", "--mangle", "--module"}
	if opts.Mode == attrmin.Expression {
		args = append(args, "--expression")
	}
	// https://github.com/mishoo/UglifyJS#command-line-options
	// quote_style=1 always uses single quotes, 2 always double quotes.
	switch opts.Quote {
	case '"':
		args = append(args, "--beautify", "beautify=false,quote_style=1")
	case '\'':
		args = append(args, "--beautify", "beautify=false,quote_style=2")
	}
	return args
}

func (u *Uglify) MinifyExpression(ctx context.Context, code string, opts attrmin.ExpressionOptions) (string, error) {
	out, err := Exec(ctx, u.command(), u.Args(opts), []byte(code))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// MinifyFile minifies a whole script.
func (u *Uglify) MinifyFile(ctx context.Context, in []byte) ([]byte, error) {
	return Exec(ctx, u.command(), []string{"--compress", "--mangle"}, in)
}
