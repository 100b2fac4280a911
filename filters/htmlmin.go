// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filters

import (
	"github.com/dchest/htmlmin"
)

// `htmlmin` is a primitive not-so-correct HTML minimizer filter.
// `htmljsmin` also minifies inline scripts with jsmin.

func init() {
	Register("htmlmin", func(env *Env, args []string) (Filter, error) {
		return HTMLMin{}, nil
	})
	Register("htmljsmin", func(env *Env, args []string) (Filter, error) {
		return HTMLMin{Scripts: true}, nil
	})
}

type HTMLMin struct {
	Scripts bool
}

func (f HTMLMin) Name() string {
	if f.Scripts {
		return "htmljsmin"
	}
	return "htmlmin"
}

func (f HTMLMin) Apply(in []byte) (out []byte, err error) {
	return htmlmin.Minify(in, &htmlmin.Options{MinifyScripts: f.Scripts})
}
