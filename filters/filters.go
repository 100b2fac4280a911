// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filters implements file content filters.
package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/sitemin/sitemin/attrmin"
)

// Filter is an interface declaring a filter.
type Filter interface {
	Name() string
	Apply([]byte) ([]byte, error)
}

// Env is what filters may use from the build that creates them.
type Env struct {
	// Context bounds external commands and snippet minification.
	Context context.Context
	// Engine minifies inline JavaScript.
	Engine attrmin.ExpressionMinifier
	// Markup minifies whole HTML documents.
	Markup attrmin.MarkupMinifier
	// Options configure attribute minification.
	Options *attrmin.Options
	// Timeout bounds each external command. Zero means no limit.
	Timeout time.Duration
}

func (e *Env) context() context.Context {
	if e == nil || e.Context == nil {
		return context.Background()
	}
	return e.Context
}

// Maker is a type of function which accepts arguments
// for filter and returns a new instance of the filter.
type Maker func(env *Env, args []string) (Filter, error)

// makers stores builtin filter makers addressed by their names.
var makers = make(map[string]Maker)

// Register registers a new filter maker.
func Register(name string, maker Maker) {
	makers[name] = maker
}

// Make creates a new filter by name with the given arguments.
func Make(env *Env, name string, args []string) (Filter, error) {
	maker := makers[name]
	if maker == nil {
		return nil, fmt.Errorf("filter %s not found", name)
	}
	return maker(env, args)
}

// Collection is a collection of filters addressed by some key,
// usually a file extension.
type Collection struct {
	env     *Env
	filters map[string]Filter
}

// NewCollection returns a new collection making filters with env.
func NewCollection(env *Env) *Collection {
	return &Collection{
		env:     env,
		filters: make(map[string]Filter),
	}
}

// Add adds the filter to collection to be addressable by key.
func (c *Collection) Add(key string, filterName string, args []string) error {
	f, err := Make(c.env, filterName, args)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	c.filters[key] = f
	return nil
}

// AddFromYAML parses a `filters` value (line) and adds corresponding filters.
func (c *Collection) AddFromYAML(key string, line interface{}) error {
	switch x := line.(type) {
	case string:
		return c.Add(key, x, nil)
	case []interface{}:
		if len(x) == 0 {
			return fmt.Errorf("failed to parse filters: empty array")
		}
		args := make([]string, len(x))
		for i, v := range x {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("failed to parse filters: not an array of strings")
			}
			args[i] = s
		}
		return c.Add(key, args[0], args[1:])
	default:
		return fmt.Errorf("failed to parse filters: not a string or array")
	}
}

// Get returns a filter for key.
// It returns nil if the filter wasn't found.
func (c *Collection) Get(key string) Filter {
	return c.filters[key]
}

// Keys returns the keys that have a filter.
func (c *Collection) Keys() []string {
	keys := make([]string, 0, len(c.filters))
	for k := range c.filters {
		keys = append(keys, k)
	}
	return keys
}

// ApplyFilter applies a filter found by key to the given data.
// If the filter wasn't found, returns the original data.
func (c *Collection) ApplyFilter(key string, in []byte) (out []byte, err error) {
	f := c.filters[key]
	if f == nil {
		return in, nil
	}
	return f.Apply(in)
}
