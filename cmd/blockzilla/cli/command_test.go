// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(ran *string) *Command {
	return &Command{
		Name:    "blockzilla",
		Summary: "test tree",
		Subcommands: []*Command{
			{
				Name:    "analyze",
				Summary: "analyze things",
				Run: func(args []string) error {
					*ran = "analyze " + strings.Join(args, " ")
					return nil
				},
			},
			{
				Name:    "optimize",
				Summary: "optimize things",
				Flags: func() *pflag.FlagSet {
					flags := pflag.NewFlagSet("optimize", pflag.ContinueOnError)
					flags.String("output", "", "output dir")
					return flags
				},
				Run: func(args []string) error {
					*ran = "optimize"
					return nil
				},
			},
		},
	}
}

func TestExecuteDispatchesSubcommand(t *testing.T) {
	var ran string
	if err := testTree(&ran).Execute([]string{"analyze", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran != "analyze extra" {
		t.Errorf("ran = %q", ran)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var ran string
	if err := testTree(&ran).Execute([]string{"optimize", "--output", "/tmp/out"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ran != "optimize" {
		t.Errorf("ran = %q", ran)
	}
}

func TestExecuteSuggestsCloseMatch(t *testing.T) {
	var ran string
	err := testTree(&ran).Execute([]string{"analyse"})
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.Contains(err.Error(), `did you mean "analyze"`) {
		t.Errorf("error = %v", err)
	}
}

func TestExecuteUnknownCommandNoSuggestion(t *testing.T) {
	var ran string
	err := testTree(&ran).Execute([]string{"frobnicate"})
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("far-off name got a suggestion: %v", err)
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	var ran string
	if err := testTree(&ran).Execute(nil); err == nil {
		t.Fatal("missing subcommand accepted")
	}
}

func TestExecuteRejectsUnknownFlag(t *testing.T) {
	var ran string
	if err := testTree(&ran).Execute([]string{"optimize", "--nope"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	var ran string
	var out strings.Builder
	testTree(&ran).PrintHelp(&out)
	help := out.String()
	for _, want := range []string{"analyze", "optimize", "Commands:"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"analyse", "analyze", 1},
		{"kitten", "sitting", 3},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
