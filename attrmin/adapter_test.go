// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterTrimsTerminator(t *testing.T) {
	m := &toyMinifier{override: func(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
		return "a;;\n", nil
	}}
	a := NewAdapter(m, nil)
	assert.Equal(t, "a;", a.Candidate(context.Background(), "a", '"', Statement))
}

func TestAdapterPassesOptions(t *testing.T) {
	m := &toyMinifier{}
	a := NewAdapter(m, nil)
	a.Candidate(context.Background(), "a", '\'', Expression)
	require.Len(t, m.calls, 1)
	assert.Equal(t, ExpressionOptions{Mode: Expression, Quote: '\''}, m.calls[0])
}

func TestAdapterFallbacks(t *testing.T) {
	wrapErr := func(out string) func(context.Context, string, ExpressionOptions) (string, error) {
		return func(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
			if !strings.HasPrefix(code, asyncPrefix) {
				return "", errSyntax
			}
			return out, nil
		}
	}
	var tests = []struct {
		name     string
		value    string
		override func(context.Context, string, ExpressionOptions) (string, error)
		out      string
		state    retryState
		calls    int
	}{
		{"ok", "a ;  b", nil, "a,b", stateDone, 1},
		{"async", "await load()", nil, "await load()", stateDone, 2},
		{"both fail", "SYNTAX here", nil, "SYNTAX here", stateFailed, 2},
		{"expression body", "x", wrapErr("(async()=>a())()"), "return a()", stateDone, 2},
		{"returned literal", "return false", wrapErr("(async()=>!1)()"), "return!1", stateDone, 2},
		{"returned sequence", "validate(); return false", wrapErr("(async()=>(validate(),!1))()"), "return(validate(),!1)", stateDone, 2},
		{"braces kept", "x", wrapErr("(async()=>{a(),b()})()"), "a(),b()", stateDone, 2},
		{"wrapper lost", "x", wrapErr("a()"), "x", stateFailed, 2},
	}
	for _, v := range tests {
		t.Run(v.name, func(t *testing.T) {
			m := &toyMinifier{override: v.override}
			a := NewAdapter(m, nil)
			out, state := a.run(context.Background(), v.value, '"', Statement)
			assert.Equal(t, v.out, out)
			assert.Equal(t, v.state, state)
			assert.Equal(t, v.calls, m.numCalls())
		})
	}
}

func TestAdapterAsyncWrapsInput(t *testing.T) {
	m := &toyMinifier{}
	a := NewAdapter(m, nil)
	a.Candidate(context.Background(), "await load()", 0, Statement)
	require.Len(t, m.codes, 2)
	assert.Equal(t, "(async()=>{await load()})()", m.codes[1])
}

func TestAdapterTimeout(t *testing.T) {
	m := &toyMinifier{override: func(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	a := NewAdapter(m, &Options{Timeout: 10 * time.Millisecond})
	out, state := a.run(context.Background(), "a  &&  b", '"', Expression)
	assert.Equal(t, "a  &&  b", out)
	assert.Equal(t, stateFailed, state)
}

func TestAdapterIgnoresLateSuccess(t *testing.T) {
	m := &toyMinifier{override: func(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
		<-ctx.Done()
		return "late", nil
	}}
	a := NewAdapter(m, &Options{Timeout: 10 * time.Millisecond})
	assert.Equal(t, "a", a.Candidate(context.Background(), "a", '"', Expression))
}

func TestAdapterCache(t *testing.T) {
	m := &toyMinifier{}
	a := NewAdapter(m, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "a&&b", a.Candidate(context.Background(), "a && b", '"', Expression))
	}
	assert.Equal(t, 1, m.numCalls())
	a.Candidate(context.Background(), "a && b", '\'', Expression)
	a.Candidate(context.Background(), "a && b", '"', Statement)
	assert.Equal(t, 3, m.numCalls())

	m = &toyMinifier{}
	a = NewAdapter(m, &Options{CacheSize: -1})
	a.Candidate(context.Background(), "a && b", '"', Expression)
	a.Candidate(context.Background(), "a && b", '"', Expression)
	assert.Equal(t, 2, m.numCalls())
}

func TestAdapterExpressionBodyInExpressionMode(t *testing.T) {
	m := &toyMinifier{override: func(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
		if !strings.HasPrefix(code, asyncPrefix) {
			return "", errSyntax
		}
		return "(async()=>!1)()", nil
	}}
	a := NewAdapter(m, nil)
	out, state := a.run(context.Background(), "x", '"', Expression)
	assert.Equal(t, "x", out)
	assert.Equal(t, stateFailed, state)
}

func TestAdapterDoesNotCacheFailures(t *testing.T) {
	fail := true
	m := &toyMinifier{override: func(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
		if fail {
			return "", errSyntax
		}
		return "a&&b", nil
	}}
	a := NewAdapter(m, nil)
	assert.Equal(t, "a  &&  b", a.Candidate(context.Background(), "a  &&  b", '"', Expression))
	fail = false
	assert.Equal(t, "a&&b", a.Candidate(context.Background(), "a  &&  b", '"', Expression))
	assert.Equal(t, "a&&b", a.Candidate(context.Background(), "a  &&  b", '"', Expression))
	assert.Equal(t, 3, m.numCalls())
}

func TestUnwrapAsync(t *testing.T) {
	var tests = []struct {
		in   string
		mode Mode
		out  string
		ok   bool
	}{
		{"(async()=>{a()})()", Statement, "a()", true},
		{"(async()=>{a()})()", Expression, "a()", true},
		{"(async()=>{})()", Statement, "", true},
		{"(async()=>a)()", Statement, "return a", true},
		{"(async()=>!1)()", Statement, "return!1", true},
		{"(async()=>({a:1}))()", Statement, "return({a:1})", true},
		{"(async()=>a)()", Expression, "", false},
		{"(async()=>)()", Statement, "", false},
		{"a()", Statement, "", false},
	}
	for _, v := range tests {
		out, ok := unwrapAsync(v.in, v.mode)
		assert.Equal(t, v.ok, ok, v.in)
		assert.Equal(t, v.out, out, v.in)
	}
}
