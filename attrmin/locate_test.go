// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package attrmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	var tests = []struct {
		doc  string
		want []Occurrence
	}{
		{
			`<div x-show="a && b" class='c'>`,
			[]Occurrence{
				{Name: "x-show", Quote: '"', Value: "a && b"},
				{Name: "class", Quote: '\'', Value: "c"},
			},
		},
		{
			// Attribute-like text inside a value is part of the value.
			`<a title="x y='z'">`,
			[]Occurrence{
				{Name: "title", Quote: '"', Value: "x y='z'"},
			},
		},
		{
			`<a b="c" d="e='f'">`,
			[]Occurrence{
				{Name: "b", Quote: '"', Value: "c"},
				{Name: "d", Quote: '"', Value: "e='f'"},
			},
		},
		{
			`<input value="a=b" x-model="c">`,
			[]Occurrence{
				{Name: "value", Quote: '"', Value: "a=b"},
				{Name: "x-model", Quote: '"', Value: "c"},
			},
		},
		{
			`<a href=foo x-show="a">`,
			[]Occurrence{
				{Name: "x-show", Quote: '"', Value: "a"},
			},
		},
		{
			"<div x-init=\"\n  a();\n  b()\n\">",
			[]Occurrence{
				{Name: "x-init", Quote: '"', Value: "\n  a();\n  b()\n"},
			},
		},
		{
			`<p>a=b "x"</p>`,
			nil,
		},
	}
	for i, v := range tests {
		occs, err := LocateAll(v.doc)
		require.NoError(t, err)
		require.Len(t, occs, len(v.want), "%d", i)
		runes := []rune(v.doc)
		for j, o := range occs {
			w := v.want[j]
			assert.Equal(t, w.Name, o.Name, "%d/%d", i, j)
			assert.Equal(t, w.Quote, o.Quote, "%d/%d", i, j)
			assert.Equal(t, w.Value, o.Value, "%d/%d", i, j)
			assert.Equal(t, o.String(), string(runes[o.Span.Start:o.Span.End]), "%d/%d", i, j)
		}
	}
}

func TestLocateRuneSpans(t *testing.T) {
	doc := `<p title="é">ü</p><b x-show="ä">`
	occs, err := LocateAll(doc)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, Span{Start: 3, End: 12}, occs[0].Span)
	assert.Equal(t, 9, occs[0].Span.Len())
	assert.Equal(t, `x-show="ä"`, string([]rune(doc)[occs[1].Span.Start:occs[1].Span.End]))
}

func TestScannerDone(t *testing.T) {
	s := Locate(`<a x-show="a">`)
	require.True(t, s.Next())
	assert.Equal(t, "x-show", s.Occurrence().Name)
	assert.False(t, s.Next())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.Panics(t, func() { s.Occurrence() })
}
