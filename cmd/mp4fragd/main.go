// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Command mp4fragd is a debug harness that feeds an fMP4 byte stream
// (from a file or stdin) into a mp4frag.Parser and exposes the
// resulting init segment, media segments, and HLS playlist over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/maxim729467/mp4frag/cmd/mp4fragd/app"
	"github.com/maxim729467/mp4frag/internal/version"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := app.LoadConfig(args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	h, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("build harness: %w", err)
	}
	slog.Info("mp4fragd starting", "version", version.GetVersion())

	go func() {
		if ingestErr := h.Ingest(); ingestErr != nil {
			slog.Error("ingest stopped", "err", ingestErr)
		}
	}()
	return h.ListenAndServe()
}
