// Copyright 2019 Google LLC
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

// Package dump contains functions for writing a function's SSA, its
// CFG, or its final taint Model as SSA/DOT/text source to a directory,
// for inspecting what the fixed-point driver actually analyzed.
package dump

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-taint/tcta/internal/pkg/debug/render"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
	"golang.org/x/tools/go/ssa"
)

// SSA dumps a function's SSA to a file under dir.
func SSA(dir, fileName string, f *ssa.Function) {
	save(dir, fileName, f.Name(), render.SSA(f), "ssa")
}

// DOT dumps DOT source representing the function's SSA graph to a file under dir.
func DOT(dir, fileName string, f *ssa.Function) {
	save(dir, fileName, f.Name(), render.DOT(f), "dot")
}

// CFG dumps DOT source representing the function's control flow graph (CFG) to a file under dir.
func CFG(dir, fileName string, f *ssa.Function) {
	save(dir, fileName, f.Name()+"-cfg", render.CFG(f), "dot")
}

// Model dumps a human-readable rendering of a method's final taint
// Model (its generations, sinks, propagations, and issues) to a file
// under dir, the taint-core analogue of SSA/DOT/CFG above.
func Model(dir, fileName string, m *model.Model) {
	save(dir, fileName, "model", render.Model(m), "txt")
}

func save(dir, fileName, funcName, s, ending string) {
	baseName := strings.TrimSuffix(fileName, ".go")
	outFile := fmt.Sprintf("%s_%s.%s", baseName, funcName, ending)
	target := filepath.Join(dir, outFile)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "could not create dump directory for: %s, error: %v\n", target, err)
		return
	}
	if err := ioutil.WriteFile(target, []byte(s), 0666); err != nil {
		fmt.Fprintf(os.Stderr, "could not write to file: %s, error: %v\n", outFile, err)
	}
}
