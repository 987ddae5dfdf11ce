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

package driver

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
	"github.com/go-taint/tcta/internal/pkg/taint/registry"
	"github.com/go-taint/tcta/internal/pkg/taint/rules"
)

// buildSSA follows golang.org/x/tools/go/ssa/example_test.go.
func buildSSA(t *testing.T, source string) *ssa.Package {
	t.Helper()

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", source, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	pkg := types.NewPackage("test", "")
	ssaPkg, _, err := ssautil.BuildPackage(&types.Config{Importer: importer.Default()}, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}
	return ssaPkg
}

// TestRunConvergesAcrossCallChain drives the fixed point over a
// three-hop chain whose functions are analyzed in an order that forces
// multiple passes: the source fact must travel c -> b -> a before the
// sink match in a can fire.
func TestRunConvergesAcrossCallChain(t *testing.T) {
	pkg := buildSSA(t, `package test

func sink(s string) {}

func c(s string) string {
	return s
}

func b(s string) string {
	return c(s)
}

func a(s string) {
	sink(b(s))
}
`)

	srcKind := kind.NewNamed("driver-test-source")
	sinkKind := kind.NewNamed("driver-test-sink")

	sinkFn := pkg.Func("sink")
	cFn := pkg.Func("c")
	aFn := pkg.Func("a")

	reg := registry.New()
	sinkModel := model.New(sinkFn.String())
	sinkModel.Sinks[access.MakeArgument(0).String()] = domain.LeafTree(domain.FromFrame(frame.New(sinkKind)))
	sinkModel.Frozen |= model.FrozenSinks
	reg.Set(sinkFn.String(), sinkModel)

	rs := rules.Set{Simple: []*rules.Rule{{
		Name:    "r1",
		Sources: []*kind.Kind{srcKind},
		Sinks:   []*kind.Kind{sinkKind},
	}}}

	sources := map[*ssa.Function]map[ssa.Value]domain.Taint{
		cFn: {cFn.Params[0]: domain.FromFrame(frame.New(srcKind))},
	}

	funcs := []*ssa.Function{aFn, pkg.Func("b"), cFn, sinkFn}
	passes, converged := Run(funcs, reg, rs, nil, sources, Options{})

	if !converged {
		t.Fatalf("fixed point did not converge within %d passes", passes)
	}
	if passes < 3 {
		t.Errorf("expected the chain to need several passes, converged after %d", passes)
	}

	aModel := reg.Get(aFn.String())
	if len(aModel.Issues) == 0 {
		t.Fatal("expected the source reaching sink through the b -> c chain to produce an issue in a")
	}
	if aModel.Issues[0].RuleName != "r1" {
		t.Errorf("issue rule = %q, want r1", aModel.Issues[0].RuleName)
	}
}

// TestRunSkipsSkipAnalysisModels pins a SkipAnalysis Model and checks
// the driver never accumulates inferred facts for that function.
func TestRunSkipsSkipAnalysisModels(t *testing.T) {
	pkg := buildSSA(t, `package test

func skipped(s string) string {
	return s
}
`)
	fn := pkg.Func("skipped")

	reg := registry.New()
	skip := model.New(fn.String())
	skip.Modes |= model.SkipAnalysis
	reg.Set(fn.String(), skip)

	srcKind := kind.NewNamed("driver-test-skip-source")
	sources := map[*ssa.Function]map[ssa.Value]domain.Taint{
		fn: {fn.Params[0]: domain.FromFrame(frame.New(srcKind))},
	}

	Run([]*ssa.Function{fn}, reg, rules.Set{}, nil, sources, Options{})

	if len(reg.Get(fn.String()).Generations) != 0 {
		t.Error("a SkipAnalysis function must not accumulate inferred generations")
	}
}
