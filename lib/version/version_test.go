// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	defer func(v, c, d string) { Version, GitCommit, GitDirty = v, c, d }(Version, GitCommit, GitDirty)

	Version = "1.2.3"
	GitCommit = "abc1234"
	GitDirty = "false"
	if got := Info(); !strings.HasPrefix(got, "1.2.3 (abc1234,") {
		t.Errorf("Info() = %q", got)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() with dirty tree = %q", got)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	got := Full()
	if !strings.Contains(got, runtime.Version()) {
		t.Errorf("Full() missing Go version: %q", got)
	}
	if !strings.Contains(got, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() missing platform: %q", got)
	}
}
