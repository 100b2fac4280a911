// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filters

import (
	"errors"
	"fmt"

	"github.com/sitemin/sitemin/attrmin"
)

// `alpine` minifies directive attributes and then the whole document
// with the markup engine. [alpine, attrs] skips the markup step.

func init() {
	Register("alpine", MakeAlpineFilter)
}

type alpineFilter struct {
	env *Env
	rw  *attrmin.Rewriter
}

func MakeAlpineFilter(env *Env, args []string) (Filter, error) {
	if env == nil || env.Engine == nil {
		return nil, errors.New("alpine: no JavaScript engine")
	}
	markup := env.Markup
	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "attrs":
		markup = nil
	default:
		return nil, fmt.Errorf("alpine: unexpected arguments %q", args)
	}
	return &alpineFilter{
		env: env,
		rw:  attrmin.NewRewriter(env.Engine, markup, env.Options),
	}, nil
}

func (f *alpineFilter) Name() string { return "alpine" }

func (f *alpineFilter) Apply(in []byte) (out []byte, err error) {
	return []byte(f.rw.Minify(f.env.context(), string(in))), nil
}
