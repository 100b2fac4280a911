// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const (
	htmlSpace = " \t\n\f\r"
	// Characters that may not appear in an unquoted attribute value.
	unquotedUnsafe = htmlSpace + "\"'=<>`&"
)

// Candidate is a rewritten attribute value with its delimiter.
// Quote is zero when the value is emitted unquoted.
type Candidate struct {
	Text  string
	Quote byte
}

// Attribute returns the attribute name=value with c as the value.
func (c Candidate) Attribute(name string) string {
	if c.Quote == 0 {
		return name + "=" + c.Text
	}
	q := string(c.Quote)
	return name + "=" + q + c.Text + q
}

// Selector picks the shortest safe rewrite of a directive value.
type Selector struct {
	adapter *Adapter
}

func NewSelector(a *Adapter) *Selector {
	return &Selector{adapter: a}
}

// Select returns the rewritten value of attribute name. It returns false
// if the attribute is not a directive.
//
// The value is minified once for each delimiter and the shorter result
// wins, double quotes on ties. A result without whitespace but with quotes
// is minified again without a preferred quote, because the document
// minifier is free to drop the delimiters of such a value. The returned
// delimiter never appears unescaped in the text, and the original
// delimiter is never reused as is: <a b="c" d="e="f""> is not HTML.
func (s *Selector) Select(ctx context.Context, name, value string) (Candidate, bool) {
	kind := Classify(name)
	if !kind.IsDirective() {
		return Candidate{}, false
	}
	mode := kind.Mode()

	var double, single string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		double = spaceIn(s.adapter.Candidate(gctx, value, '"', mode))
		return nil
	})
	g.Go(func() error {
		single = spaceIn(s.adapter.Candidate(gctx, value, '\'', mode))
		return nil
	})
	_ = g.Wait()

	best := Candidate{Text: double, Quote: '"'}
	if utf8.RuneCountInString(single) < utf8.RuneCountInString(double) {
		best = Candidate{Text: single, Quote: '\''}
	}
	if needsRequote(best.Text) {
		s.adapter.log.Debug().Str("name", name).Msg("re-minifying without a preferred quote")
		text := spaceIn(s.adapter.Candidate(ctx, value, 0, mode))
		return delimit(text, 0), true
	}
	return delimit(best.Text, best.Quote), true
}

// needsRequote reports whether a value could lose its delimiters to the
// document minifier while holding quote characters.
func needsRequote(text string) bool {
	return !strings.ContainsAny(text, htmlSpace) && strings.ContainsAny(text, `"'`)
}

// delimit returns text with a delimiter that does not occur in it,
// starting from quote. Zero asks for an unquoted value when that is safe.
func delimit(text string, quote byte) Candidate {
	if quote == 0 {
		if text != "" && !strings.ContainsAny(text, unquotedUnsafe) {
			return Candidate{Text: text}
		}
		quote = '"'
	}
	if strings.IndexByte(text, quote) < 0 {
		return Candidate{Text: text, Quote: quote}
	}
	other := byte('"')
	if quote == '"' {
		other = '\''
	}
	if strings.IndexByte(text, other) < 0 {
		return Candidate{Text: text, Quote: other}
	}
	return Candidate{Text: strings.ReplaceAll(text, `"`, "&quot;"), Quote: '"'}
}

// spaceIn puts exactly one space around each "in" operator outside of
// string and template literals. Minifiers may glue it to its operands in
// places where Alpine.js (x-for="item in items") needs the spaces.
func spaceIn(s string) string {
	if !strings.Contains(s, "in") {
		return s
	}
	out := make([]byte, 0, len(s)+4)
	var quote byte
	for i := 0; i < len(s); {
		c := s[i]
		if quote != 0 {
			out = append(out, c)
			i++
			switch {
			case c == '\\' && i < len(s):
				out = append(out, s[i])
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == 'i' && isInOperator(s, i):
			out = trimSpaceRight(out)
			if len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, "in"...)
			i += 2
			for i < len(s) && isSpace(s[i]) {
				i++
			}
			if i < len(s) {
				out = append(out, ' ')
			}
			continue
		}
		out = append(out, c)
		i++
	}
	return string(out)
}

// isInOperator reports whether s[i:] starts with the "in" keyword.
func isInOperator(s string, i int) bool {
	if !strings.HasPrefix(s[i:], "in") {
		return false
	}
	if i+2 < len(s) && isIdentByte(s[i+2]) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	// Property access: a.in
	j := i - 1
	for j >= 0 && isSpace(s[j]) {
		j--
	}
	return j < 0 || s[j] != '.'
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func isSpace(c byte) bool {
	return strings.IndexByte(htmlSpace, c) >= 0
}

func trimSpaceRight(b []byte) []byte {
	for len(b) > 0 && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}
