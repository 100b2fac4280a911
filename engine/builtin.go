// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/parse/v2"
	jsparse "github.com/tdewolff/parse/v2/js"

	"github.com/sitemin/sitemin/attrmin"
)

const jsMediaType = "application/javascript"

// Builtin minifies snippets in-process, without Node.js.
//
// Statements go through the tdewolff JavaScript minifier. Expressions are
// only validated and compacted token by token, because the minifier works
// on programs and may drop the value of an expression statement.
type Builtin struct {
	m *minify.M
}

func NewBuiltin() *Builtin {
	m := minify.New()
	m.Add(jsMediaType, &js.Minifier{})
	return &Builtin{m: m}
}

func (b *Builtin) MinifyExpression(ctx context.Context, code string, opts attrmin.ExpressionOptions) (string, error) {
	return result(ctx, func() (string, error) {
		var out string
		if opts.Mode == attrmin.Statement {
			s, err := b.m.String(jsMediaType, code)
			if err != nil {
				return "", err
			}
			out = s
		} else {
			if err := checkExpression(code); err != nil {
				return "", err
			}
			toks, err := lex(code)
			if err != nil {
				return "", err
			}
			out = compact(toks)
		}
		return requote(out, opts.Quote)
	})
}

// MinifyFile minifies a whole script.
func (b *Builtin) MinifyFile(_ context.Context, in []byte) ([]byte, error) {
	return b.m.Bytes(jsMediaType, in)
}

// checkExpression returns an error unless code is a single expression.
func checkExpression(code string) error {
	_, err := jsparse.Parse(parse.NewInputString("("+code+"\n)"), jsparse.Options{})
	if err != nil {
		return fmt.Errorf("not an expression: %w", err)
	}
	return nil
}

type token struct {
	tt   jsparse.TokenType
	data []byte
}

func (t token) isSpace() bool {
	return t.tt == jsparse.WhitespaceToken || t.tt == jsparse.LineTerminatorToken
}

func (t token) isComment() bool {
	return bytes.HasPrefix(t.data, []byte("//")) || bytes.HasPrefix(t.data, []byte("/*"))
}

func (t token) hasNewline() bool {
	return t.tt == jsparse.LineTerminatorToken ||
		bytes.ContainsAny(t.data, "\n\r") ||
		bytes.Contains(t.data, []byte("\u2028")) || bytes.Contains(t.data, []byte("\u2029"))
}

// lex splits code into tokens, including whitespace and comments.
// A slash where an operand is expected starts a regular expression.
func lex(code string) ([]token, error) {
	l := jsparse.NewLexer(parse.NewInputString(code))
	var toks []token
	var prev []byte
	for {
		tt, data := l.Next()
		if tt == jsparse.ErrorToken {
			if err := l.Err(); err != io.EOF {
				return nil, err
			}
			return toks, nil
		}
		if (tt == jsparse.DivToken || tt == jsparse.DivEqToken) && regexpAllowed(prev) {
			tt, data = l.RegExp()
			if tt == jsparse.ErrorToken {
				if err := l.Err(); err != nil && err != io.EOF {
					return nil, err
				}
				return nil, fmt.Errorf("unterminated regular expression")
			}
		}
		t := token{tt: tt, data: append([]byte(nil), data...)}
		toks = append(toks, t)
		if !t.isSpace() && !t.isComment() {
			prev = t.data
		}
	}
}

var regexpKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexpAllowed reports whether a slash after prev starts a regular
// expression rather than a division.
func regexpAllowed(prev []byte) bool {
	if len(prev) == 0 {
		return true
	}
	switch c := prev[len(prev)-1]; {
	case c == ')' || c == ']' || c == '}' || c == '"' || c == '\'' || c == '`':
		return false
	case isIdentByte(c):
		return regexpKeywords[string(prev)]
	}
	return true
}

// compact joins tokens dropping comments and whitespace, except where
// two tokens would fuse or a line break may end a statement.
func compact(toks []token) string {
	var out []byte
	var space, newline bool
	for _, t := range toks {
		if t.isSpace() || t.isComment() {
			space = true
			newline = newline || t.hasNewline()
			continue
		}
		if len(out) > 0 && space {
			a, b := out[len(out)-1], t.data[0]
			switch {
			case newline && endsOperand(a) && startsOperand(b):
				out = append(out, '\n')
			case needsSpace(a, b):
				out = append(out, ' ')
			}
		}
		space, newline = false, false
		out = append(out, t.data...)
	}
	return string(out)
}

func needsSpace(a, b byte) bool {
	switch {
	case isIdentByte(a) && isIdentByte(b):
		return true
	case (a == '+' || a == '-') && a == b:
		return true
	case a == '/' && (b == '/' || b == '*'):
		return true
	case '0' <= a && a <= '9' && b == '.':
		return true
	}
	return false
}

func endsOperand(c byte) bool {
	return isIdentByte(c) || c == ')' || c == ']' || c == '}' || c == '"' || c == '\'' || c == '`'
}

func startsOperand(c byte) bool {
	return isIdentByte(c) || c == '(' || c == '[' || c == '{' || c == '"' || c == '\'' || c == '`' ||
		c == '+' || c == '-' || c == '/'
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// requote rewrites string literals of code to use the quote other than
// delim, unless that makes a literal longer. Zero leaves code unchanged.
func requote(code string, delim byte) (string, error) {
	if delim == 0 {
		return code, nil
	}
	target := byte('\'')
	if delim == '\'' {
		target = '"'
	}
	toks, err := lex(code)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	b.Grow(len(code))
	for _, t := range toks {
		if t.tt == jsparse.StringToken {
			b.Write(convertString(t.data, target))
		} else {
			b.Write(t.data)
		}
	}
	return b.String(), nil
}

func convertString(lit []byte, target byte) []byte {
	if len(lit) < 2 || lit[0] == target {
		return lit
	}
	q := lit[0]
	body := lit[1 : len(lit)-1]
	out := make([]byte, 0, len(lit)+2)
	out = append(out, target)
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			if body[i+1] != q {
				out = append(out, c)
			}
			out = append(out, body[i+1])
			i++
		case c == target:
			out = append(out, '\\', target)
		default:
			out = append(out, c)
		}
	}
	out = append(out, target)
	if len(out) > len(lit) {
		return lit
	}
	return out
}
