// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package attrmin minifies the JavaScript held in directive attributes
// (x-show, :class, @click, onclick...) of HTML documents.
//
// Each directive value is minified by an ExpressionMinifier in expression
// or statement mode, once for each attribute delimiter, and the shortest
// result that still tokenizes as the same attribute value replaces it.
// A value that cannot be minified is left as it was.
package attrmin

import "strings"

// Kind tells how an attribute value is evaluated.
type Kind int

const (
	NotADirective Kind = iota
	// BooleanLike is reserved for attributes that look like boolean HTML
	// attributes but hold code. Classify never returns it.
	BooleanLike
	ExpressionDirective
	StatementDirective
)

var kindNames = [...]string{
	NotADirective:       "not a directive",
	BooleanLike:         "boolean-like",
	ExpressionDirective: "expression",
	StatementDirective:  "statement",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsDirective reports whether the attribute value is code.
func (k Kind) IsDirective() bool {
	return k == ExpressionDirective || k == StatementDirective
}

// Mode returns the evaluation mode used to minify a directive of kind k.
func (k Kind) Mode() Mode {
	if k == ExpressionDirective {
		return Expression
	}
	return Statement
}

// Classify returns the kind of attribute name.
//
// Alpine.js directives (except x-init and x-effect) and bindings evaluate a
// single expression whose value is used, so a&&"b" must not become a.
// x-init, x-effect, event handlers (@click) and on* attributes run
// statements for their side effects.
func Classify(name string) Kind {
	switch {
	case strings.HasPrefix(name, ":"):
		return ExpressionDirective
	case strings.HasPrefix(name, "x-"):
		if name == "x-init" || name == "x-effect" {
			return StatementDirective
		}
		return ExpressionDirective
	case strings.HasPrefix(name, "@"), strings.HasPrefix(name, "on"):
		return StatementDirective
	}
	return NotADirective
}
