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

// Package tctanalysis assembles the taint engine (internal/pkg/taint/*)
// into a runnable go/analysis.Analyzer: it loads configuration, seeds
// sources, sink models, and model files, runs the fixed-point driver
// over the whole program, and reports the resulting Issues.
package tctanalysis

import (
	"go/token"
	"log"
	"path/filepath"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/go-taint/tcta/internal/pkg/config"
	"github.com/go-taint/tcta/internal/pkg/debug/dump"
	"github.com/go-taint/tcta/internal/pkg/source"
	"github.com/go-taint/tcta/internal/pkg/suppression"
	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/alias"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/driver"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
	"github.com/go-taint/tcta/internal/pkg/taint/modelfile"
	"github.com/go-taint/tcta/internal/pkg/taint/registry"
	"github.com/go-taint/tcta/internal/pkg/taint/rules"
	"github.com/go-taint/tcta/internal/pkg/utils"
)

// ConfiguredSource and ConfiguredSink are the kinds attached to every
// value the configuration's Sources/Sinks matchers identify. When the
// configuration declares no Rules of its own linking named kinds
// together, a single blanket rule connects these two.
var (
	ConfiguredSource = kind.NewNamed("ConfiguredSource")
	ConfiguredSink   = kind.NewNamed("ConfiguredSink")
)

// Analyzer reports data flows from configured sources to configured
// sinks, tracked inter-procedurally across the whole program.
var Analyzer = &analysis.Analyzer{
	Name: "tcta",
	Doc: `reports flows from configured sources to configured sinks

tcta performs a whole-program, inter-procedural abstract interpretation
over SSA: it computes one Model per analyzed function, joins Models
across call sites to a fixed point, and reports every confirmed
source-to-sink flow as a diagnostic.`,
	Flags: config.FlagSet,
	Run:   run,
	Requires: []*analysis.Analyzer{
		buildssa.Analyzer,
		source.Analyzer,
		suppression.Analyzer,
		alias.Analyzer,
	},
}

func run(pass *analysis.Pass) (interface{}, error) {
	conf, err := config.ReadConfig()
	if err != nil {
		return nil, err
	}

	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	sourceMap := pass.ResultOf[source.Analyzer].(source.ResultType)
	suppressed := pass.ResultOf[suppression.Analyzer].(suppression.ResultType)
	parts, _ := pass.ResultOf[alias.Analyzer].(*alias.Partitions)

	rs := conf.RuleSet()
	if len(rs.Simple) == 0 && len(rs.Multi) == 0 {
		rs.Simple = append(rs.Simple, &rules.Rule{
			Name:    "configured-source-sink",
			Sources: []*kind.Kind{ConfiguredSource},
			Sinks:   []*kind.Kind{ConfiguredSink},
			Message: "data from a configured source reaches a configured sink",
		})
	}

	reg := registry.New()
	seedSinkModels(reg, ssaInput, conf)
	seedSanitizerModels(reg, ssaInput, conf)
	seedTransformPropagations(reg, ssaInput, conf)
	seedModelFiles(reg, ssaInput, conf)
	seeds := seedSources(sourceMap)

	driver.Run(ssaInput.SrcFuncs, reg, rs, parts, seeds, driverOptions(conf))

	if config.DumpDir != "" {
		dumpModels(ssaInput, reg)
	}

	report(pass, ssaInput, reg, suppressed)
	return nil, nil
}

// dumpModels writes one text file per analyzed function holding its
// final Model, under config.DumpDir, alongside whatever -dumpssa wrote
// for that same function via the standalone debug.Analyzer.
func dumpModels(ssaInput *buildssa.SSA, reg *registry.Registry) {
	for _, fn := range ssaInput.SrcFuncs {
		pkgName := fn.Pkg.Pkg.Name()
		dump.Model(config.DumpDir, filepath.Join(pkgName, fn.Name()), reg.Get(fn.String()))
	}
}

// seedSinkModels pre-registers a frozen Model for every external
// function (one buildssa never gives a body, e.g. a stdlib logger or a
// third-party client call) the configuration names as a sink, so
// visitInvoke's ordinary Sinks-matching path fires for it exactly as it
// would for an in-program callee. Frozen keeps the fixed-point loop
// from ever widening it; in practice the loop never revisits an
// external function anyway, since driver.Run skips any fn with a nil
// Blocks.
func seedSinkModels(reg *registry.Registry, ssaInput *buildssa.SSA, conf *config.Config) {
	arity := map[*ssa.Function]int{}
	for _, fn := range ssaInput.SrcFuncs {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				ci, ok := instr.(ssa.CallInstruction)
				if !ok {
					continue
				}
				common := ci.Common()
				if common.IsInvoke() {
					continue
				}
				callee, ok := common.Value.(*ssa.Function)
				if !ok || callee.Blocks != nil {
					continue
				}
				path, recv, name := utils.DecomposeFunction(callee)
				if !conf.IsSink(path, recv, name) {
					continue
				}
				if n := len(common.Args); n > arity[callee] {
					arity[callee] = n
				}
			}
		}
	}

	sinkTaint := domain.FromFrame(frame.New(ConfiguredSink))
	for callee, n := range arity {
		m := model.New(callee.String())
		for i := 0; i < n; i++ {
			m.Sinks[access.MakeArgument(i).String()] = domain.LeafTree(sinkTaint)
		}
		m.Frozen |= model.FrozenSinks
		reg.Set(callee.String(), m)
	}
}

// seedSanitizerModels pre-registers a frozen, sanitize-all Model for
// every function the configuration names as a sanitizer -- in-program
// or external alike, since sanitizer status is a property of the
// callee's own identity, not of how or whether the driver ever gives
// it a body to analyze -- so visitInvoke strips every kind from a
// value the moment it passes through one, the same way it already
// fabricates a Sinks entry for a configured external sink in
// seedSinkModels. A callee already seeded as a sink (rare, but not
// excluded by configuration) keeps its sink entries: the sanitizer
// fields are merged in, not overwritten.
func seedSanitizerModels(reg *registry.Registry, ssaInput *buildssa.SSA, conf *config.Config) {
	mark := func(callee *ssa.Function) {
		path, recv, name := utils.DecomposeFunction(callee)
		if !conf.IsSanitizer(path, recv, name) {
			return
		}
		m := reg.Get(callee.String())
		m.GlobalSanitizers = append(m.GlobalSanitizers, model.SanitizerRule{})
		m.Frozen |= model.FrozenSanitizers
		reg.Set(callee.String(), m)
	}

	for _, fn := range ssaInput.SrcFuncs {
		mark(fn)
	}

	seen := map[*ssa.Function]bool{}
	for _, fn := range ssaInput.SrcFuncs {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				ci, ok := instr.(ssa.CallInstruction)
				if !ok {
					continue
				}
				common := ci.Common()
				if common.IsInvoke() {
					continue
				}
				callee, ok := common.Value.(*ssa.Function)
				if !ok || callee.Blocks != nil || seen[callee] {
					continue
				}
				seen[callee] = true
				mark(callee)
			}
		}
	}
}

// seedTransformPropagations records, for every analyzed function the
// configuration names as a Transform, the transform label on each of
// its parameter ports. The Propagations facts themselves are inferred
// during the fixed point (the driver seeds artificial parameter sources
// and converts the ones reaching Return into propagation facts); this
// only pins the label, so taint that flows through the function carries
// a Transform kind at later call sites.
func seedTransformPropagations(reg *registry.Registry, ssaInput *buildssa.SSA, conf *config.Config) {
	for _, fn := range ssaInput.SrcFuncs {
		name, ok := conf.TransformName(utils.DecomposeFunction(fn))
		if !ok {
			continue
		}
		m := reg.Get(fn.String())
		for i := range fn.Params {
			inPort := access.MakeArgument(i).String()
			m.PropagationTransforms[inPort] = append(m.PropagationTransforms[inPort], kind.Transform{Name: name})
		}
		reg.Set(fn.String(), m)
	}
}

// seedModelFiles joins every Model declared in the configuration's
// model files into the registry, so hand-written or exported summaries
// take part in the fixed point exactly like inferred ones. A model
// whose method resolves to an analyzed function is validated against
// that function's signature first, dropping fragments on ports the
// method does not have (reported through model.OnConsistencyError). A
// file that cannot be read or parsed is logged and skipped: a missing
// model file degrades precision, it does not abort the analysis.
func seedModelFiles(reg *registry.Registry, ssaInput *buildssa.SSA, conf *config.Config) {
	byName := make(map[string]*ssa.Function, len(ssaInput.SrcFuncs))
	for _, fn := range ssaInput.SrcFuncs {
		byName[fn.String()] = fn
	}
	for _, path := range conf.ModelFiles {
		models, err := modelfile.Load(path)
		if err != nil {
			log.Printf("skipping model file %s: %v", path, err)
			continue
		}
		for _, m := range models {
			if fn, ok := byName[m.Method]; ok {
				m.ValidateForSignature(len(fn.Params), fn.Signature.Results().Len() > 0)
			}
			reg.Join(m.Method, m)
		}
	}
}

// driverOptions binds the configuration's literal-source matchers and
// via-cast allow-list to the transfer function's hooks.
func driverOptions(conf *config.Config) driver.Options {
	var opts driver.Options
	if len(conf.Literals) > 0 {
		opts.Literals = func(value string) domain.Taint {
			name, ok := conf.LiteralSourceKind(value)
			if !ok {
				return domain.Bottom
			}
			k := ConfiguredSource
			if name != "" {
				k = kind.NewNamed(name)
			}
			return domain.FromFrame(frame.New(k))
		}
	}
	opts.ViaCastAllowed = conf.IsViaCastType
	return opts
}

// seedSources turns the source-detection pass's per-function Source
// lists into the per-value taint driver.Run seeds into each function's
// environment, tagging every detected node as ConfiguredSource.
func seedSources(sourceMap source.ResultType) map[*ssa.Function]map[ssa.Value]domain.Taint {
	srcTaint := domain.FromFrame(frame.New(ConfiguredSource))
	out := make(map[*ssa.Function]map[ssa.Value]domain.Taint, len(sourceMap))
	for fn, srcs := range sourceMap {
		values := make(map[ssa.Value]domain.Taint, len(srcs))
		for _, src := range srcs {
			v, ok := src.Node.(ssa.Value)
			if !ok {
				continue
			}
			values[v] = values[v].Join(srcTaint)
		}
		if len(values) > 0 {
			out[fn] = values
		}
	}
	return out
}

// report walks every analyzed function's final Model and reports each
// Issue not covered by a "do not report" suppression comment.
func report(pass *analysis.Pass, ssaInput *buildssa.SSA, reg *registry.Registry, suppressed suppression.ResultType) {
	ranges := suppressedRanges(suppressed)
	for _, fn := range ssaInput.SrcFuncs {
		m := reg.Get(fn.String())
		for _, issue := range m.Issues {
			if withinAny(ranges, issue.Pos) {
				continue
			}
			pass.Reportf(issue.Pos, "%s", issue.Message)
		}
	}
}

type posRange struct{ start, end token.Pos }

// suppressedRanges flattens the suppression pass's node set into
// position ranges, so a reported Issue (which only carries a token.Pos,
// not the ast.Node it came from) can still be checked against a "do not
// report" comment's attached node.
func suppressedRanges(suppressed suppression.ResultType) []posRange {
	out := make([]posRange, 0, len(suppressed))
	for n := range suppressed {
		out = append(out, posRange{n.Pos(), n.End()})
	}
	return out
}

func withinAny(ranges []posRange, pos token.Pos) bool {
	for _, r := range ranges {
		if pos >= r.start && pos <= r.end {
			return true
		}
	}
	return false
}
