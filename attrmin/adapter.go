// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/sitemin/sitemin/mincache"
)

// Mode is the evaluation context of a snippet.
type Mode int

const (
	// Expression: only the value of a single expression matters.
	Expression Mode = iota
	// Statement: one or more statements run for their side effects.
	Statement
)

func (m Mode) String() string {
	if m == Expression {
		return "expression"
	}
	return "statement"
}

// ExpressionOptions are passed to an ExpressionMinifier.
type ExpressionOptions struct {
	Mode Mode
	// Quote is the delimiter the result will be placed in ('"' or '\''),
	// so string literals in the output should use the other one.
	// Zero lets the minifier choose.
	Quote byte
}

// ExpressionMinifier minifies a JavaScript snippet.
type ExpressionMinifier interface {
	MinifyExpression(ctx context.Context, code string, opts ExpressionOptions) (string, error)
}

// MarkupOptions are passed to a MarkupMinifier.
type MarkupOptions struct {
	KeepDoctype bool
	MinifyCSS   bool
	MinifyJS    bool
}

// MarkupMinifier minifies a whole HTML document.
type MarkupMinifier interface {
	MinifyMarkup(ctx context.Context, text string, opts MarkupOptions) (string, error)
}

const (
	DefaultTimeout = 10 * time.Second

	asyncPrefix = "(async()=>{"
	asyncSuffix = "})()"
)

// Options configure an Adapter and the Selector and Rewriter built on it.
type Options struct {
	// Timeout bounds each call to a minifier. Zero means DefaultTimeout.
	Timeout time.Duration
	// Parallelism bounds the number of attributes of a document
	// minified at the same time. Zero means one per CPU.
	Parallelism int
	// CacheSize is the number of minified snippets remembered.
	// Negative disables the cache, zero means mincache.DefaultSize.
	CacheSize int
	// Logger receives diagnostics. Nil discards them.
	Logger *zerolog.Logger
}

func (o *Options) timeout() time.Duration {
	if o == nil || o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o *Options) logger() zerolog.Logger {
	if o == nil || o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// retryState is the state of the fallback chain of a single snippet.
type retryState int

const (
	stateInitial retryState = iota
	stateAsyncWrapped
	stateFailed
	stateDone
)

var errNoAsyncWrapper = errors.New("async wrapper missing from output")

// Adapter calls an ExpressionMinifier for one snippet at a time and never
// fails: a snippet that cannot be minified is returned unchanged.
type Adapter struct {
	min     ExpressionMinifier
	timeout time.Duration
	cache   *mincache.Cache
	log     zerolog.Logger
}

// NewAdapter returns an adapter for min. opts may be nil.
func NewAdapter(min ExpressionMinifier, opts *Options) *Adapter {
	a := &Adapter{
		min:     min,
		timeout: opts.timeout(),
		log:     opts.logger(),
	}
	if opts == nil || opts.CacheSize >= 0 {
		size := 0
		if opts != nil {
			size = opts.CacheSize
		}
		a.cache = mincache.New(size)
	}
	return a
}

// Candidate returns value minified in the given mode for an attribute
// delimited by quote (zero for no preference).
func (a *Adapter) Candidate(ctx context.Context, value string, quote byte, mode Mode) string {
	var key mincache.Key
	if a.cache != nil {
		key = mincache.NewKey(value, mode.String(), string(quote))
		if s, ok := a.cache.Get(key); ok {
			return s
		}
	}
	out, state := a.run(ctx, value, quote, mode)
	if a.cache != nil && state == stateDone {
		a.cache.Put(key, out)
	}
	return out
}

// run drives the fallback chain: minify value as is, then wrapped in an
// async arrow function, then give up and return value.
func (a *Adapter) run(ctx context.Context, value string, quote byte, mode Mode) (string, retryState) {
	state := stateInitial
	var out string
	for {
		switch state {
		case stateInitial:
			res, err := a.invoke(ctx, value, quote, mode)
			if err != nil {
				a.warn(value, err)
				state = stateAsyncWrapped
				continue
			}
			out, state = res, stateDone
		case stateAsyncWrapped:
			res, err := a.invoke(ctx, asyncPrefix+value+asyncSuffix, quote, mode)
			if err == nil {
				body, ok := unwrapAsync(res, mode)
				if ok {
					out, state = body, stateDone
					continue
				}
				err = errNoAsyncWrapper
			}
			a.warn(asyncPrefix+value+asyncSuffix, err)
			state = stateFailed
		case stateFailed:
			return value, state
		case stateDone:
			return out, state
		}
	}
}

func (a *Adapter) invoke(ctx context.Context, code string, quote byte, mode Mode) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ev := a.log.Debug().Str("code", code).Stringer("mode", mode)
	if quote != 0 {
		ev = ev.Str("quote", string(quote))
	}
	ev.Msg("minifying snippet")

	out, err := a.min.MinifyExpression(ctx, code, ExpressionOptions{Mode: mode, Quote: quote})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return "", err
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	out = strings.TrimSuffix(out, ";")
	a.log.Debug().Str("output", out).Msg("minified snippet")
	return out, nil
}

func (a *Adapter) warn(code string, err error) {
	a.log.Warn().
		Str("title", fmt.Sprintf("Minification of snippet '%s' failed", code)).
		Err(err).
		Msg("snippet minification failed")
}

// unwrapAsync removes the wrapper added by the async retry. The braces
// of the body may have been dropped by the minifier, leaving an arrow
// function with an expression body: that body was returned, so it is
// kept as a return statement. An expression directive cannot hold one.
func unwrapAsync(s string, mode Mode) (string, bool) {
	if len(s) >= len(asyncPrefix)+len(asyncSuffix) &&
		strings.HasPrefix(s, asyncPrefix) && strings.HasSuffix(s, asyncSuffix) {
		return s[len(asyncPrefix) : len(s)-len(asyncSuffix)], true
	}
	const arrow, call = "(async()=>", ")()"
	if mode != Statement || len(s) <= len(arrow)+len(call) ||
		!strings.HasPrefix(s, arrow) || !strings.HasSuffix(s, call) {
		return "", false
	}
	body := s[len(arrow) : len(s)-len(call)]
	if c := body[0]; isIdentByte(c) || c == '\\' {
		return "return " + body, true
	}
	return "return" + body, true
}
