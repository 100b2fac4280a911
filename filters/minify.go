// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filters

import (
	"fmt"
	"mime"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// `minify` runs tdewolff/minify for a media type given as its argument,
// either directly ([minify, text/css]) or by extension ([minify, .svg]).

func init() {
	Register("minify", func(env *Env, args []string) (Filter, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("minify: want one media type or extension, got %d arguments", len(args))
		}
		return NewMinify(args[0])
	})
}

var minifiers = minify.New()

func init() {
	minifiers.AddFunc("text/css", css.Minify)
	minifiers.Add("text/html", &html.Minifier{KeepDocumentTags: true, KeepEndTags: true, KeepQuotes: true})
	minifiers.AddFunc("image/svg+xml", svg.Minify)
	minifiers.AddFunc("application/javascript", js.Minify)
	minifiers.AddFunc("text/javascript", js.Minify)
	minifiers.AddFunc("application/json", json.Minify)
	minifiers.AddFunc("application/manifest+json", json.Minify)
	minifiers.AddFunc("text/xml", xml.Minify)
	minifiers.AddFunc("application/xml", xml.Minify)
}

type Minify struct {
	mediaType string
}

// NewMinify returns a filter for the media type or file extension typ.
func NewMinify(typ string) (*Minify, error) {
	mt := typ
	if strings.HasPrefix(typ, ".") {
		mt = mime.TypeByExtension(typ)
		if mt == "" {
			return nil, fmt.Errorf("minify: unknown extension %s", typ)
		}
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if _, _, f := minifiers.Match(mt); f == nil {
		return nil, fmt.Errorf("minify: no minifier for %s", mt)
	}
	return &Minify{mediaType: mt}, nil
}

func (f *Minify) Name() string { return "minify " + f.mediaType }

func (f *Minify) Apply(in []byte) (out []byte, err error) {
	return minifiers.Bytes(f.mediaType, in)
}
