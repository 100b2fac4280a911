// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"time"

	"github.com/dlclark/regexp2"
)

// attributeRx matches name="value" and name='value' where the name follows a
// quote or whitespace, so the text of an already-quoted value such as
// title="a b='c'" is only matched once. The value may span lines.
//
// See https://html.spec.whatwg.org/multipage/syntax.html#syntax-attribute-name
var attributeRx = func() *regexp2.Regexp {
	rx := regexp2.MustCompile(`(?<=["'\s])([^\s"'>/=]+?)=(["'])(.*?)\2`, regexp2.Singleline)
	rx.MatchTimeout = time.Minute
	return rx
}()

// Span is a half-open range of rune offsets in a document.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Occurrence is a quoted attribute found in a document.
type Occurrence struct {
	Name  string
	Quote byte
	Value string
	Span  Span
}

// String returns the attribute as it appears in the document.
func (o Occurrence) String() string {
	q := string(o.Quote)
	return o.Name + "=" + q + o.Value + q
}

// Scanner iterates over the attributes of a document in order.
//
//	s := attrmin.Locate(doc)
//	for s.Next() {
//		o := s.Occurrence()
//		...
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
type Scanner struct {
	doc  string
	m    *regexp2.Match
	err  error
	done bool
}

// Locate returns a scanner over the quoted attributes of doc.
func Locate(doc string) *Scanner {
	return &Scanner{doc: doc}
}

// Next advances to the next attribute. It returns false when there are
// no more attributes or matching failed.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	var (
		m   *regexp2.Match
		err error
	)
	if s.m == nil {
		m, err = attributeRx.FindStringMatch(s.doc)
	} else {
		m, err = attributeRx.FindNextMatch(s.m)
	}
	if err != nil || m == nil {
		s.err = err
		s.done = true
		s.m = nil
		return false
	}
	s.m = m
	return true
}

// Occurrence returns the current attribute.
func (s *Scanner) Occurrence() Occurrence {
	if s.m == nil {
		panic("attrmin: Occurrence called without a successful Next")
	}
	return Occurrence{
		Name:  s.m.GroupByNumber(1).String(),
		Quote: s.m.GroupByNumber(2).String()[0],
		Value: s.m.GroupByNumber(3).String(),
		Span:  Span{Start: s.m.Index, End: s.m.Index + s.m.Length},
	}
}

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error { return s.err }

// LocateAll returns every quoted attribute of doc.
func LocateAll(doc string) ([]Occurrence, error) {
	var occs []Occurrence
	s := Locate(doc)
	for s.Next() {
		occs = append(occs, s.Occurrence())
	}
	return occs, s.Err()
}
