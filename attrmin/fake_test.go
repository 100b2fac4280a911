// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errSyntax = errors.New("syntax error")

// toyMinifier is a predictable stand-in for a real JavaScript minifier:
// it drops insignificant whitespace, joins statements with commas and
// rewrites string literals to the quote not used by the delimiter.
type toyMinifier struct {
	mu    sync.Mutex
	calls []ExpressionOptions
	codes []string

	// override, if set, replaces the toy behavior.
	override func(ctx context.Context, code string, opts ExpressionOptions) (string, error)
}

func (m *toyMinifier) MinifyExpression(ctx context.Context, code string, opts ExpressionOptions) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.codes = append(m.codes, code)
	m.mu.Unlock()

	if m.override != nil {
		return m.override(ctx, code, opts)
	}
	if strings.Contains(code, "SYNTAX") {
		return "", errSyntax
	}
	if strings.Contains(code, "await") && !strings.HasPrefix(code, asyncPrefix) {
		return "", errSyntax
	}
	out := squeeze(code)
	if opts.Mode == Statement {
		parts := strings.Split(out, ";")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		out = strings.Join(parts, ",")
	}
	literal := byte('"')
	if opts.Quote == '"' {
		literal = '\''
	}
	return requoteToy(out, literal) + ";\n", nil
}

func (m *toyMinifier) quotes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := make([]byte, len(m.calls))
	for i, c := range m.calls {
		q[i] = c.Quote
	}
	return q
}

func (m *toyMinifier) numCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// squeeze removes whitespace outside of string literals unless it
// separates two identifier characters.
func squeeze(s string) string {
	var out []byte
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			out = append(out, c)
			if c == quote {
				quote = 0
			}
			continue
		}
		if isSpace(c) {
			j := i
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if len(out) > 0 && j < len(s) && isIdentByte(out[len(out)-1]) && isIdentByte(s[j]) {
				out = append(out, ' ')
			}
			i = j - 1
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
		}
		out = append(out, c)
	}
	return string(out)
}

// requoteToy rewrites simple string literals (no quotes or backslashes
// inside) to use the literal quote.
func requoteToy(s string, literal byte) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		c := out[i]
		if c != '"' && c != '\'' {
			continue
		}
		j := i + 1
		for j < len(out) && out[j] != c {
			j++
		}
		if j == len(out) {
			break
		}
		body := string(out[i+1 : j])
		if !strings.ContainsAny(body, "\"'\\") {
			out[i], out[j] = literal, literal
		}
		i = j
	}
	return string(out)
}

// toyMarkup records its input and marks its output.
type toyMarkup struct {
	in   string
	opts MarkupOptions
	err  error
}

func (m *toyMarkup) MinifyMarkup(ctx context.Context, text string, opts MarkupOptions) (string, error) {
	m.in, m.opts = text, opts
	if m.err != nil {
		return "", m.err
	}
	return "<!--min-->" + text, nil
}
