// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filters

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitemin/sitemin/engine"
)

// `exec` pipes the input through an external command, for example
// [exec, lightningcss, --minify] or [exec, uglifyjs, --compress, --mangle].

func init() {
	Register("exec", MakeExecFilter)
}

type execFilter struct {
	env     *Env
	command string
	args    []string
}

func MakeExecFilter(env *Env, args []string) (Filter, error) {
	if len(args) == 0 {
		return nil, errors.New("exec: missing command")
	}
	return &execFilter{env: env, command: args[0], args: args[1:]}, nil
}

func (f *execFilter) Name() string { return fmt.Sprintf("exec %s %q", f.command, f.args) }

func (f *execFilter) Apply(in []byte) (out []byte, err error) {
	ctx := f.env.context()
	if f.env != nil && f.env.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.env.Timeout)
		defer cancel()
	}
	return engine.Exec(ctx, f.command, f.args, in)
}
