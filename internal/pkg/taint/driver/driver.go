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

// Package driver implements the fixed-point worklist iterator that
// repeatedly runs the forward transfer function over every analyzed
// method until the registry of Models stabilizes.
package driver

import (
	"log"
	"sort"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"

	"github.com/go-taint/tcta/internal/pkg/taint/alias"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
	"github.com/go-taint/tcta/internal/pkg/taint/registry"
	"github.com/go-taint/tcta/internal/pkg/taint/rules"
	"github.com/go-taint/tcta/internal/pkg/taint/transfer"
)

// MaxIterations bounds the fixed-point loop so a pathological
// recursive-call cycle cannot run forever; reaching the cap is reported
// to the caller rather than silently truncating results.
const MaxIterations = 50

// calleeResolver resolves a call's static callee Model from the shared
// Registry. It exists so the transfer package depends only on the
// CalleeResolver contract, not on the registry or the callgraph.
type calleeResolver struct {
	reg *registry.Registry
}

func (c *calleeResolver) ModelFor(callee *ssa.Function) *model.Model {
	if callee == nil {
		return nil
	}
	m := c.reg.Get(callee.String())
	if m.IsEmpty() {
		return nil
	}
	return m
}

// Options carries the optional per-run hooks the transfer function
// consults: literal-source lookup and the via-cast type allow-list.
// The zero value disables both.
type Options struct {
	Literals       func(value string) domain.Taint
	ViaCastAllowed func(typeName string) bool
}

// Run analyzes every function in funcs repeatedly, feeding instruction
// results through transfer.State, until no Model in reg changes during a
// full pass or MaxIterations is reached. It returns the number of passes
// actually performed and whether the loop converged before the cap.
// sources, if non-nil, seeds each function's detected source values
// (internal/pkg/source's parameter/closure/block-local Sources) into the
// environment every pass; a nil or missing entry analyzes the function
// with no additional seeding.
func Run(funcs []*ssa.Function, reg *registry.Registry, rs rules.Set, parts *alias.Partitions, sources map[*ssa.Function]map[ssa.Value]domain.Taint, opts Options) (passes int, converged bool) {
	order := append([]*ssa.Function(nil), funcs...)
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	oracle := alias.New(parts)
	callees := &calleeResolver{reg: reg}

	for passes = 1; passes <= MaxIterations; passes++ {
		changed := false
		for _, fn := range order {
			if fn == nil || fn.Blocks == nil {
				continue
			}
			prev := reg.Get(fn.String())
			if prev.Modes.Has(model.SkipAnalysis) {
				continue
			}
			next := analyze(fn, prev, oracle, callees, rs, sources[fn], opts)
			if next == nil {
				continue
			}
			if reg.Join(fn.String(), next) {
				changed = true
			}
		}
		if !changed {
			return passes, true
		}
	}
	return MaxIterations, false
}

// analyze runs one pass of the forward transfer over fn and returns the
// Model it computed, or nil if an invariant assertion fired mid-body.
// This is the single recovery boundary for the invariant package's
// panics: a precondition bug in one method drops that method's pass and
// is logged, instead of aborting the whole-program run.
func analyze(fn *ssa.Function, prev *model.Model, oracle transfer.AliasOracle, callees transfer.CalleeResolver, rs rules.Set, seeds map[ssa.Value]domain.Taint, opts Options) (out *model.Model) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dropping this pass over %s: %v", fn.String(), r)
			out = nil
		}
	}()

	st := transfer.New(fn, oracle, callees, rs)
	// The previous iteration's Model is immutable input; the pass
	// accumulates into its own copy, so change detection in reg.Join
	// compares against an untouched baseline.
	st.Model = prev.Copy()
	st.Sources = seeds
	st.Literals = opts.Literals
	st.ViaCastAllowed = opts.ViaCastAllowed
	st.SeedParams()
	st.SeedSources()
	st.SeedArtificialSources()
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			st.Visit(instr)
		}
	}
	st.ExtractInferredPropagations()
	return st.Model
}

// CallGraphOrder returns the functions reachable from cg in a stable,
// deterministic order -- a convenience for callers that built a
// callgraph.Graph (e.g. via golang.org/x/tools/go/callgraph/cha) instead
// of enumerating ssa.Program.AllFunctions themselves.
func CallGraphOrder(cg *callgraph.Graph) []*ssa.Function {
	var out []*ssa.Function
	for fn := range cg.Nodes {
		if fn != nil {
			out = append(out, fn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
