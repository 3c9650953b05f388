// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlagFile(t *testing.T) {
	tests := []struct {
		name        string
		contents    string
		env         map[string]string
		cliArgs     []string
		expectedErr string
		expectedA   string
		expectedB   string
	}{
		{
			name:      "two flags per line",
			contents:  "-a one -b two",
			expectedA: "one",
			expectedB: "two",
		},
		{
			name:      "one flag per line",
			contents:  "-a one\n-b two",
			expectedA: "one",
			expectedB: "two",
		},
		{
			name:      "quoted value",
			contents:  "-a 'one two' -b \"three\"",
			expectedA: "one two",
			expectedB: "three",
		},
		{
			name:      "one flag in file, one flag on command-line",
			contents:  "-a one",
			cliArgs:   []string{"-b", "two"},
			expectedA: "one",
			expectedB: "two",
		},
		{
			name:      "two flags, one overridden by command-line",
			contents:  "-a one\n-b two",
			cliArgs:   []string{"-b", "three"},
			expectedA: "one",
			expectedB: "three",
		},
		{
			name:      "two flags, one using an environment variable",
			contents:  "-a one\n-b $CANOPY_TEST_VAR",
			env:       map[string]string{"CANOPY_TEST_VAR": "from-env"},
			expectedA: "one",
			expectedB: "from-env",
		},
		{
			name:        "three flags, one undefined",
			contents:    "-a one -b two -c three",
			expectedErr: "flag provided but not defined: -c",
		},
		{
			name:        "unbalanced quotes",
			contents:    "-a 'one",
			expectedErr: "unbalanced quotes",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "flags")
			if err := os.WriteFile(path, []byte(tc.contents), 0o600); err != nil {
				t.Fatal(err)
			}
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			a := fs.String("a", "", "")
			b := fs.String("b", "", "")

			err := ParseFlagFile(fs, path, tc.cliArgs)
			if tc.expectedErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectedErr) {
					t.Fatalf("ParseFlagFile() = %v, want %q", err, tc.expectedErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFlagFile() = %v", err)
			}
			if *a != tc.expectedA {
				t.Errorf("flag 'a' not properly set: got %q, want %q", *a, tc.expectedA)
			}
			if *b != tc.expectedB {
				t.Errorf("flag 'b' not properly set: got %q, want %q", *b, tc.expectedB)
			}
		})
	}
}

func TestParseFlagFileMissing(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if err := ParseFlagFile(fs, filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Error("ParseFlagFile() on a missing file succeeded")
	}
}
