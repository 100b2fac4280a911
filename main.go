// Copyright 2024 The sitemin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/sitemin/sitemin/logging"
	"github.com/sitemin/sitemin/site"
)

var (
	fDir        = flag.String("dir", ".", "project directory")
	fSite       = flag.String("site", "", "built site directory (overrides site_dir)")
	fEngine     = flag.String("engine", "", "JavaScript engine: builtin or uglifyjs (overrides engine)")
	fVerbose    = flag.Bool("v", false, "verbose output")
	fHttp       = flag.String("http", "localhost:8080", "address and port to use for serving")
	fCPUProfile = flag.String("cpuprofile", "", "(debug) write CPU profile to file")
)

var Usage = func() {
	fmt.Printf(`usage: sitemin command [options]

Commands:
  build    - run sentry, version, minify, hash and compress on the site
  minify   - minify site files with the configured filters
  hash     - give static files content-hashed names
  sentry   - inject the Sentry DSN
  version  - copy the service worker with the current version
  download - download external assets
  attrs    - minify directive attributes of stdin to stdout
  serve    - serve the built site

Options:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = Usage

	if len(os.Args) < 2 {
		flag.Usage()
		return
	}
	command := os.Args[1]
	os.Args = os.Args[1:]
	flag.Parse()

	var annotations io.Writer
	if logging.InGitHubActions() {
		annotations = os.Stdout
	}
	log := logging.New(os.Stderr, *fVerbose, annotations)

	if *fCPUProfile != "" {
		f, err := os.Create(*fCPUProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create profile")
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := site.Open(ctx, *fDir, site.Overrides{Engine: *fEngine, SiteDir: *fSite}, log)
	if err != nil {
		log.Error().Err(err).Msg("cannot open project")
		os.Exit(1)
	}

	switch command {
	case "build":
		err = s.Build(ctx)
	case "minify":
		err = s.Minify()
	case "hash":
		err = s.Hash()
	case "sentry":
		err = s.Sentry()
	case "version":
		err = s.Version()
	case "download":
		err = s.Download(ctx)
	case "attrs":
		err = s.Attrs(ctx, os.Stdin, os.Stdout)
	case "serve":
		err = s.Serve(ctx, *fHttp)
	default:
		log.Error().Msgf("unknown command %s", command)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msgf("%s failed", command)
		os.Exit(1)
	}
}
