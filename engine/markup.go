// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"regexp"

	"github.com/dchest/htmlmin"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/sitemin/sitemin/attrmin"
)

var (
	doctypeRx = regexp.MustCompile(`(?is)^\s*<!doctype[^>]*>`)
	scriptRx  = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)
)

// splitDoctype separates a leading doctype declaration from text.
func splitDoctype(text string, keep bool) (doctype, rest string) {
	if !keep {
		return "", text
	}
	loc := doctypeRx.FindStringIndex(text)
	if loc == nil {
		return "", text
	}
	return text[loc[0]:loc[1]], text[loc[1]:]
}

// Markup minifies HTML documents with tdewolff/minify.
// Attribute values are never unquoted.
type Markup struct{}

func (Markup) MinifyMarkup(ctx context.Context, text string, opts attrmin.MarkupOptions) (string, error) {
	return result(ctx, func() (string, error) {
		doctype, body := splitDoctype(text, opts.KeepDoctype)
		m := minify.New()
		m.Add("text/html", &html.Minifier{
			KeepDocumentTags:    true,
			KeepEndTags:         true,
			KeepDefaultAttrVals: true,
			KeepQuotes:          true,
		})
		m.AddFunc("image/svg+xml", svg.Minify)
		if opts.MinifyCSS {
			m.AddFunc("text/css", css.Minify)
		}
		if opts.MinifyJS {
			m.AddFuncRegexp(scriptRx, js.Minify)
		}
		out, err := m.String("text/html", body)
		if err != nil {
			return "", err
		}
		return doctype + out, nil
	})
}

// HTMLMin minifies HTML documents with dchest/htmlmin, which keeps
// attribute quotes unless asked otherwise.
type HTMLMin struct{}

func (HTMLMin) MinifyMarkup(ctx context.Context, text string, opts attrmin.MarkupOptions) (string, error) {
	return result(ctx, func() (string, error) {
		doctype, body := splitDoctype(text, opts.KeepDoctype)
		out, err := htmlmin.Minify([]byte(body), &htmlmin.Options{
			MinifyScripts: opts.MinifyJS,
			MinifyStyles:  opts.MinifyCSS,
		})
		if err != nil {
			return "", err
		}
		return doctype + string(out), nil
	})
}
