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

// Package cmd holds helpers shared by the binaries.
package cmd

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/creachadair/shell"
)

// ParseFlagFile parses flags from the file at path into fs, then parses args
// so that flags given on the command line take precedence over the file.
// Environment variables in the file are expanded.
func ParseFlagFile(fs *flag.FlagSet, path string, args []string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fileArgs, ok := shell.Split(os.ExpandEnv(string(file)))
	if !ok {
		return fmt.Errorf("%s: unbalanced quotes", path)
	}
	if err := fs.Parse(fileArgs); err != nil {
		return err
	}
	return fs.Parse(args)
}
