// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging sets up the zerolog logger of the command line tool.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// TitleField is the event field used as the title of an annotation.
const TitleField = "title"

// InGitHubActions reports whether the process runs in a GitHub Actions
// workflow, where annotations are shown in the run summary.
func InGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// New returns a logger writing human-readable lines to w. If annotations
// is not nil, debug, warning and error events are also written to it as
// GitHub workflow commands.
func New(w io.Writer, verbose bool, annotations io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	if annotations != nil {
		out = zerolog.MultiLevelWriter(out, &Annotations{Out: annotations})
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Annotations is a zerolog.LevelWriter that turns events into workflow
// commands (::debug::, ::warning::, ::error::).
type Annotations struct {
	Out io.Writer
}

// Write discards events without a level.
func (a *Annotations) Write(p []byte) (int, error) {
	return len(p), nil
}

func (a *Annotations) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var command string
	switch level {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		command = "debug"
	case zerolog.WarnLevel:
		command = "warning"
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		command = "error"
	default:
		return len(p), nil
	}
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		return 0, err
	}
	msg, _ := ev[zerolog.MessageFieldName].(string)
	if e, ok := ev[zerolog.ErrorFieldName].(string); ok && e != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e
	}
	var b strings.Builder
	b.WriteString("::")
	b.WriteString(command)
	if title, ok := ev[TitleField].(string); ok && title != "" && command != "debug" {
		b.WriteString(" title=")
		b.WriteString(escapeProperty(title))
	}
	b.WriteString("::")
	b.WriteString(escapeData(msg))
	b.WriteByte('\n')
	if _, err := io.WriteString(a.Out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

var (
	dataEscaper     = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
)

func escapeData(s string) string     { return dataEscaper.Replace(s) }
func escapeProperty(s string) string { return propertyEscaper.Replace(s) }
