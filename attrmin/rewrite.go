// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"context"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Rewriter minifies the directive attributes of HTML documents.
type Rewriter struct {
	sel         *Selector
	markup      MarkupMinifier
	parallelism int
	timeout     time.Duration
	log         zerolog.Logger
}

// NewRewriter returns a rewriter minifying snippets with expr. markup,
// if not nil, minifies whole documents after their attributes.
func NewRewriter(expr ExpressionMinifier, markup MarkupMinifier, opts *Options) *Rewriter {
	n := runtime.NumCPU()
	if opts != nil && opts.Parallelism > 0 {
		n = opts.Parallelism
	}
	return &Rewriter{
		sel:         NewSelector(NewAdapter(expr, opts)),
		markup:      markup,
		parallelism: n,
		timeout:     opts.timeout(),
		log:         opts.logger(),
	}
}

// Selector returns the selector used by r.
func (r *Rewriter) Selector() *Selector { return r.sel }

// Rewrite returns doc with every directive attribute replaced by its
// minified form. Other attributes are left byte for byte. On error doc is
// returned unchanged along with the error.
func (r *Rewriter) Rewrite(ctx context.Context, doc string) (string, error) {
	occs, err := LocateAll(doc)
	if err != nil {
		return doc, err
	}
	if len(occs) == 0 {
		return doc, nil
	}

	runes := []rune(doc)
	repl := make([]string, len(occs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, o := range occs {
		g.Go(func() error {
			if c, ok := r.sel.Select(gctx, o.Name, o.Value); ok {
				if c.Quote == 0 && !endsUnquoted(runes, o.Span.End) {
					c = delimit(c.Text, '"')
				}
				repl[i] = c.Attribute(o.Name)
			}
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	b.Grow(len(doc))
	last := 0
	for i, o := range occs {
		b.WriteString(string(runes[last:o.Span.Start]))
		if repl[i] != "" {
			b.WriteString(repl[i])
		} else {
			b.WriteString(string(runes[o.Span.Start:o.Span.End]))
		}
		last = o.Span.End
	}
	b.WriteString(string(runes[last:]))
	return b.String(), nil
}

// endsUnquoted reports whether an unquoted value may end before
// doc[i]: the tokenizer would read anything but whitespace or the end
// of the tag as part of the value.
func endsUnquoted(doc []rune, i int) bool {
	return i >= len(doc) || doc[i] == '>' || doc[i] < utf8.RuneSelf && isSpace(byte(doc[i]))
}

// Minify rewrites the attributes of doc and passes the result to the
// markup minifier. It never fails: each step that fails is skipped with
// a warning.
func (r *Rewriter) Minify(ctx context.Context, doc string) string {
	out, err := r.Rewrite(ctx, doc)
	if err != nil {
		r.log.Warn().Err(err).Msg("attribute scan failed, keeping attributes")
	}
	if r.markup == nil {
		return out
	}
	mctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	min, err := r.markup.MinifyMarkup(mctx, out, MarkupOptions{
		KeepDoctype: true,
		MinifyCSS:   true,
		MinifyJS:    true,
	})
	if err != nil {
		r.log.Warn().Str("title", "Markup minification failed").Err(err).Msg("markup minification failed")
		return out
	}
	return min
}
