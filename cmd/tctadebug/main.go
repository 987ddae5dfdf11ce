// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command tctadebug dumps SSA, CFG, and DOT source for every analyzed
// function under -dumpssa, for inspecting what tcta's driver sees
// without running the full taint analysis.
package main

import (
	"github.com/go-taint/tcta/internal/pkg/debug"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(debug.Analyzer)
}
