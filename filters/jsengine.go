// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filters

import (
	"context"
	"fmt"
)

// `jsengine` minifies scripts with the engine used for inline snippets.

func init() {
	Register("jsengine", func(env *Env, args []string) (Filter, error) {
		if env == nil {
			return nil, fmt.Errorf("jsengine: no JavaScript engine")
		}
		fm, ok := env.Engine.(fileMinifier)
		if !ok {
			return nil, fmt.Errorf("jsengine: engine %T cannot minify files", env.Engine)
		}
		return &jsEngine{env: env, fm: fm}, nil
	})
}

type fileMinifier interface {
	MinifyFile(ctx context.Context, in []byte) ([]byte, error)
}

type jsEngine struct {
	env *Env
	fm  fileMinifier
}

func (f *jsEngine) Name() string { return "jsengine" }

func (f *jsEngine) Apply(in []byte) (out []byte, err error) {
	ctx := f.env.context()
	if f.env.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.env.Timeout)
		defer cancel()
	}
	return f.fm.MinifyFile(ctx, in)
}
