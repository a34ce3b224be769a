// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package version reports the build-time version stamp for mp4fragd.
package version

import (
	"fmt"
	"strconv"
	"time"
)

var (
	commitVersion string = "v0.1.0" // filled in during build
	commitDate    string = ""       // commitDate in Epoch seconds (filled in during build)
)

// GetVersion returns the version string, with the commit date appended
// if one was stamped in at build time.
func GetVersion() string {
	msg := commitVersion
	if commitDate != "" {
		if seconds, err := strconv.Atoi(commitDate); err == nil {
			t := time.Unix(int64(seconds), 0)
			msg += fmt.Sprintf(", date: %s", t.Format("2006-01-02"))
		}
	}
	return msg
}
