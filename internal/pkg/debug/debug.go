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

package debug

import (
	"github.com/go-taint/tcta/internal/pkg/config"
	"github.com/go-taint/tcta/internal/pkg/debug/dump"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
)

var Analyzer = &analysis.Analyzer{
	Name:     "debug",
	Run:      run,
	Doc:      "dumps SSA and DOT source for every function under -dumpssa",
	Flags:    config.FlagSet,
	Requires: []*analysis.Analyzer{buildssa.Analyzer},
}

func run(pass *analysis.Pass) (interface{}, error) {
	if config.DumpDir == "" {
		return nil, nil
	}
	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)

	for _, f := range ssaInput.SrcFuncs {
		pkgName := f.Pkg.Pkg.Name()
		dump.SSA(config.DumpDir, pkgName, f)
		dump.DOT(config.DumpDir, pkgName, f)
		dump.CFG(config.DumpDir, pkgName, f)
	}

	return nil, nil
}
