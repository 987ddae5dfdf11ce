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

// Package transfer implements the forward transfer function: one Visit
// call per ssa.Instruction, threading a domain.Environment through a
// method's instructions and accumulating facts into its model.Model.
package transfer

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"sort"

	"golang.org/x/tools/go/ssa"

	"github.com/go-taint/tcta/internal/pkg/propagation/summary"
	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/invariant"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
	"github.com/go-taint/tcta/internal/pkg/taint/position"
	"github.com/go-taint/tcta/internal/pkg/taint/propagate"
	"github.com/go-taint/tcta/internal/pkg/taint/rules"
)

// AliasOracle is the external boundary contract a transfer needs to
// resolve which abstract memory location an ssa.Value denotes. The
// driver binds this to internal/pkg/taint/alias's partitioning; a nil
// oracle falls back to per-value identity, which is sound (if
// imprecise) since distinct ssa.Value pointers are already distinct SSA
// names within one function.
type AliasOracle interface {
	Location(v ssa.Value) domain.MemoryLocation
}

// CalleeResolver looks up the Model for a call's static (or, for
// interface calls, each feasible override's) callee. The driver binds
// this to the registry, resolved through a callgraph.
type CalleeResolver interface {
	ModelFor(callee *ssa.Function) *model.Model
}

// State is the per-method working state threaded through Visit calls in
// instruction order. A single State is shared across the whole body of
// one function being analyzed; the driver reruns the method if its
// computed Model changed and any other method in its SCC has not yet
// converged.
type State struct {
	Fn      *ssa.Function
	Env     domain.Environment
	Model   *model.Model
	Oracle  AliasOracle
	Callees CalleeResolver
	Rules   rules.Set

	// Sources holds every ssa.Value the source-detection pass identified
	// within Fn, keyed to the Taint it should carry. A Parameter or
	// FreeVar entry is applied once, before any instruction runs; an
	// entry for a block-local instruction (Field, Call, UnOp, ...) is
	// joined in right after that instruction's own transfer runs, since
	// it has no Env entry to seed beforehand.
	Sources map[ssa.Value]domain.Taint

	// Literals, when non-nil, looks up source taint for an exact string
	// literal value, so a configured literal source taints the constant
	// the moment it is materialized.
	Literals func(value string) domain.Taint

	// ViaCastAllowed, when non-nil, restricts which asserted types get
	// the via-cast feature; nil tags every type assertion.
	ViaCastAllowed func(typeName string) bool

	// PartialStates records, per call instruction, the multi-source
	// partial-rule progress accumulated across that call's sinks, for
	// consumers that run after the forward pass.
	PartialStates map[ssa.Instruction]*rules.FulfilledPartialKindState

	fset *token.FileSet
}

// New returns a fresh State for analyzing fn.
func New(fn *ssa.Function, oracle AliasOracle, callees CalleeResolver, rs rules.Set) *State {
	return &State{
		Fn:            fn,
		Env:           domain.NewEnvironment(),
		Model:         model.New(fn.String()),
		Oracle:        oracle,
		Callees:       callees,
		Rules:         rs,
		PartialStates: map[ssa.Instruction]*rules.FulfilledPartialKindState{},
		fset:          fn.Prog.Fset,
	}
}

func (s *State) loc(v ssa.Value) domain.MemoryLocation {
	if s.Oracle != nil {
		return s.Oracle.Location(v)
	}
	return v
}

// taintAt reads the taint tree recorded for v's memory location. A
// string constant additionally folds in any configured literal-source
// taint: constants have no defining instruction to seed, so the lookup
// happens at every read instead.
func (s *State) taintAt(v ssa.Value) domain.TaintTree {
	t := s.Env.Get(s.loc(v))
	if c, ok := v.(*ssa.Const); ok && s.Literals != nil && c.Value != nil {
		if lit := s.Literals(constString(c)); !lit.IsBottom() {
			t = t.Join(domain.LeafTree(lit))
		}
	}
	return t
}

func (s *State) writeTaint(v ssa.Value, t domain.TaintTree) {
	s.Env = s.Env.Write(s.loc(v), t)
}

func (s *State) assignTaint(v ssa.Value, t domain.TaintTree) {
	s.Env = s.Env.Assign(s.loc(v), t)
}

func (s *State) position(pos token.Pos) frame.Origin {
	out := frame.Origin{Method: s.Fn.String()}
	if pos.IsValid() && s.fset != nil {
		out.Position = position.FromPos(s.fset.Position(pos))
	}
	return out
}

// SeedParams populates the environment with each formal parameter's
// declared source taint, read from the method's own Model
// (parameter_sources contributed by model generators such as source
// field tagging): the "parameter load" pseudo-instruction that runs
// once before any real instruction in the method body.
func (s *State) SeedParams() {
	entry := s.position(s.Fn.Pos())
	for i, p := range s.Fn.Params {
		root := access.MakeArgument(i)
		if t, ok := s.Model.ParameterSources[root.String()]; ok {
			seeded := domain.EmptyTree()
			for _, pth := range t.Paths() {
				seeded = seeded.Write(pth, t.Get(pth).AttachPosition(entry.Position))
			}
			s.writeTaint(p, seeded)
		}
	}
}

// SeedArtificialSources seeds every formal parameter with an
// artificial-source frame rooted at that parameter's port. Artificial
// kinds match no rule, so the marker taint never produces an issue; it
// exists so the body's own dataflow records which parameters reach
// which outputs, and ExtractInferredPropagations turns that into
// Propagations facts after the body has run.
func (s *State) SeedArtificialSources() {
	for i, p := range s.Fn.Params {
		port := access.Make(access.MakeArgument(i))
		f := frame.New(kind.NewArtificial(port.String()))
		f.CalleePort = port
		s.writeTaint(p, domain.LeafTree(domain.FromFrame(f)))
	}
}

// isArtificial reports whether k is an artificial-source kind, possibly
// wrapped in transform kinds picked up on the way through the body.
func isArtificial(k *kind.Kind) bool {
	for b := k; b != nil; b = b.Base() {
		if b.Tag() == kind.Artificial {
			return true
		}
	}
	return false
}

// ExtractInferredPropagations converts artificial-source frames that
// reached the Return generation into Propagations facts ("taint
// entering Argument(i) leaves at Return"), then strips artificial
// frames from every model tree: callers only ever see the inferred
// fact, never the marker taint itself.
func (s *State) ExtractInferredPropagations() {
	localReturn := domain.FromFrame(frame.New(kind.NewLocalReturn()))
	if tr, ok := s.Model.Generations[access.MakeReturn().String()]; ok {
		for _, k := range tr.Collapse().Kinds() {
			if !isArtificial(k) {
				continue
			}
			base := k
			for base.Tag() != kind.Artificial {
				base = base.Base()
			}
			port, err := access.Parse(base.Name())
			if err != nil || port.Root.Kind != access.Argument {
				continue
			}
			inPort := access.AccessPath{Root: port.Root}.String()
			s.Model.Propagations[inPort] = s.Model.Propagations[inPort].Join(domain.LeafTree(localReturn))
		}
	}

	strip := func(m map[string]domain.TaintTree) {
		for key, tr := range m {
			filtered := domain.FilterKinds(tr, func(k *kind.Kind) bool { return !isArtificial(k) })
			if filtered.IsEmpty() {
				delete(m, key)
			} else {
				m[key] = filtered
			}
		}
	}
	strip(s.Model.Generations)
	strip(s.Model.Sinks)
	strip(s.Model.CallEffectSources)
	strip(s.Model.CallEffectSinks)
}

// SeedSources applies every Parameter/FreeVar entry of s.Sources to the
// environment up front. Block-local entries are handled by Visit itself,
// since they have no value to seed before their defining instruction runs.
func (s *State) SeedSources() {
	for v, t := range s.Sources {
		switch v.(type) {
		case *ssa.Parameter, *ssa.FreeVar:
			s.writeTaint(v, domain.LeafTree(t))
		}
	}
}

// Visit dispatches instr to the category-specific handler, per the
// table in the instruction-category mapping: default (result-producing)
// ops, check-cast, field/array/map access, stores, return, and invoke,
// then joins in any block-local source taint s.Sources records for the
// instruction's result.
func (s *State) Visit(instr ssa.Instruction) {
	s.dispatch(instr)
	if v, ok := instr.(ssa.Value); ok {
		if t, ok := s.Sources[v]; ok {
			s.writeTaint(v, domain.LeafTree(t))
		}
	}
}

func (s *State) dispatch(instr ssa.Instruction) {
	switch v := instr.(type) {
	case *ssa.BinOp:
		s.visitNumericalOp(v, v.X, v.Y)
	case *ssa.UnOp:
		if v.Op == token.ARROW {
			s.visitChanReceive(v)
			return
		}
		s.visitDefault(v, v.X)
	case *ssa.Convert:
		s.visitDefault(v, v.X)
	case *ssa.ChangeType:
		s.visitDefault(v, v.X)
	case *ssa.ChangeInterface:
		s.visitDefault(v, v.X)
	case *ssa.MakeInterface:
		s.visitDefault(v, v.X)
	case *ssa.Slice:
		s.visitDefault(v, v.X)
	case *ssa.Extract:
		s.visitDefault(v, v.Tuple)
	case *ssa.Phi:
		s.visitPhi(v)
	case *ssa.TypeAssert:
		s.visitTypeAssert(v)
	case *ssa.Field:
		s.visitFieldRead(v, v.X, fieldName(v.X, v.Field))
	case *ssa.FieldAddr:
		s.visitFieldRead(v, v.X, fieldName(v.X, v.Field))
	case *ssa.Index:
		s.visitIndexRead(v, v.X)
	case *ssa.IndexAddr:
		s.visitIndexRead(v, v.X)
	case *ssa.Lookup:
		s.visitIndexRead(v, v.X)
	case *ssa.MapUpdate:
		s.visitMapUpdate(v)
	case *ssa.MakeSlice:
		s.assignTaint(v, domain.EmptyTree())
	case *ssa.Alloc:
		s.assignTaint(v, domain.EmptyTree())
	case *ssa.MakeMap:
		s.assignTaint(v, domain.EmptyTree())
	case *ssa.MakeChan:
		s.assignTaint(v, domain.EmptyTree())
	case *ssa.MakeClosure:
		s.visitMakeClosure(v)
	case *ssa.Range:
		s.visitDefault(v, v.X)
	case *ssa.Next:
		s.visitDefault(v, v.Iter)
	case *ssa.Store:
		s.visitStore(v)
	case *ssa.Send:
		s.visitSend(v)
	case *ssa.Return:
		s.visitReturn(v)
	case *ssa.Call:
		s.visitInvoke(v.Common(), v, []ssa.Value{v}, v.Pos())
	case *ssa.Go:
		s.visitInvoke(v.Common(), nil, nil, v.Pos())
	case *ssa.Defer:
		s.visitInvoke(v.Common(), nil, nil, v.Pos())
	}
}

func fieldName(base ssa.Value, index int) string {
	t := base.Type()
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		t = ptr.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok || index < 0 || index >= st.NumFields() {
		return fmt.Sprintf("field%d", index)
	}
	return st.Field(index).Name()
}

// visitDefault joins the taint of every operand into result's location:
// the default category for a result-producing instruction with no
// special path semantics, which propagates taint identically from all
// of its operands.
func (s *State) visitDefault(result ssa.Value, operands ...ssa.Value) {
	out := domain.EmptyTree()
	for _, op := range operands {
		out = out.Join(s.taintAt(op))
	}
	s.assignTaint(result, out)
}

// visitNumericalOp joins the operands' taint like visitDefault but tags
// the result with the via-numerical-operator feature, since the result
// is a computed derivative of the tainted inputs rather than the
// tainted value itself.
func (s *State) visitNumericalOp(result ssa.Value, operands ...ssa.Value) {
	joined := domain.Bottom
	for _, op := range operands {
		joined = joined.Join(s.taintAt(op).Collapse())
	}
	if joined.IsBottom() {
		s.assignTaint(result, domain.EmptyTree())
		return
	}
	joined = joined.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		f.Features = f.Features.AddAlways(feature.ViaNumericalOperator)
		return f, true
	})
	s.assignTaint(result, domain.LeafTree(joined))
}

func (s *State) visitPhi(v *ssa.Phi) {
	out := domain.EmptyTree()
	for _, e := range v.Edges {
		out = out.Join(s.taintAt(e))
	}
	s.assignTaint(v, out)
}

// visitTypeAssert implements the check-cast category: taint propagates
// through the assertion, tagged with a via-cast feature naming the
// asserted type so downstream rules can require a specific narrowing to
// have occurred. When a via-cast allow-list is configured, only
// allow-listed types get the feature; the taint itself always flows.
func (s *State) visitTypeAssert(v *ssa.TypeAssert) {
	t := s.taintAt(v.X)
	typeName := v.AssertedType.String()
	if s.ViaCastAllowed != nil && !s.ViaCastAllowed(typeName) {
		s.assignTaint(v, t)
		return
	}
	tagged := t.Collapse()
	tagged = tagged.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		f.Features = f.Features.AddAlways(feature.ViaCast(typeName))
		return f, true
	})
	s.assignTaint(v, domain.LeafTree(tagged))
}

func (s *State) visitFieldRead(result ssa.Value, base ssa.Value, field string) {
	path := access.Path{access.MakeField(field)}
	baseTaint := s.taintAt(base)
	fieldTaint := baseTaint.Read(path)
	s.assignTaint(result, domain.LeafTree(fieldTaint))
}

func (s *State) visitIndexRead(result ssa.Value, base ssa.Value) {
	path := access.Path{access.MakeAnyIndex()}
	baseTaint := s.taintAt(base)
	elemTaint := baseTaint.Read(path)
	s.assignTaint(result, domain.LeafTree(elemTaint))
}

func (s *State) visitMapUpdate(v *ssa.MapUpdate) {
	valTaint := s.viaArray(s.taintAt(v.Value).Collapse(), v.Pos())
	cur := s.taintAt(v.Map)
	s.writeTaint(v.Map, cur.Write(access.Path{access.MakeAnyIndex()}, valTaint))
}

func (s *State) visitMakeClosure(v *ssa.MakeClosure) {
	out := domain.EmptyTree()
	for _, fv := range v.Bindings {
		out = out.Join(s.taintAt(fv))
	}
	s.assignTaint(v, out)
}

// visitChanReceive reads the channel's element cell, the same cell
// visitSend writes, folding in anything known about the channel value
// itself.
func (s *State) visitChanReceive(v *ssa.UnOp) {
	elem := s.taintAt(v.X).Read(access.Path{access.MakeElement()})
	s.assignTaint(v, domain.LeafTree(elem))
}

func (s *State) visitSend(v *ssa.Send) {
	valTaint := s.taintAt(v.X).Collapse()
	cur := s.taintAt(v.Chan)
	s.writeTaint(v.Chan, cur.Write(access.Path{access.MakeElement()}, valTaint))
}

// viaArray tags taint flowing into an array/slice/map cell with the
// via-array feature and the local store position.
func (s *State) viaArray(t domain.Taint, pos token.Pos) domain.Taint {
	if t.IsBottom() {
		return t
	}
	p := s.position(pos).Position
	return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		f.Features = f.Features.AddAlways(feature.ViaArray)
		f.Positions = f.Positions.Add(p)
		return f, true
	})
}

// visitStore implements the field/element/global store categories,
// dispatching on the address instruction being stored into. A store
// into a singleton global location is a strong update; element stores
// are weak, since other elements of the same container share the
// location.
func (s *State) visitStore(v *ssa.Store) {
	valTaint := s.taintAt(v.Val).Collapse()
	switch addr := v.Addr.(type) {
	case *ssa.FieldAddr:
		field := fieldName(addr.X, addr.Field)
		cur := s.taintAt(addr.X)
		s.writeTaint(addr.X, cur.Write(access.Path{access.MakeField(field)}, valTaint))
	case *ssa.IndexAddr:
		cur := s.taintAt(addr.X)
		s.writeTaint(addr.X, cur.Write(access.Path{access.MakeAnyIndex()}, s.viaArray(valTaint, v.Pos())))
	case *ssa.Global:
		s.assignTaint(addr, domain.LeafTree(valTaint))
	default:
		s.assignTaint(v.Addr, domain.LeafTree(valTaint))
	}
}

// visitReturn folds every result's taint into the method's Generations
// at the Return root (and, for a method with a receiver, the receiver's
// taint into the Argument(this) root), then matches the returned taint
// against any sink the method itself declares on its Return port.
func (s *State) visitReturn(v *ssa.Return) {
	out := domain.EmptyTree()
	for _, r := range v.Results {
		out = out.Join(s.taintAt(r))
	}
	root := access.MakeReturn().String()
	joined := s.Model.Generations[root].Join(out)
	s.Model.Generations[root] = domain.Bound(joined, domain.GenerationBounds)

	if recv := s.Fn.Signature.Recv(); recv != nil && len(s.Fn.Params) > 0 {
		recvRoot := access.MakeArgument(0).String()
		recvTree := s.taintAt(s.Fn.Params[0])
		if !recvTree.IsEmpty() {
			joined := s.Model.Generations[recvRoot].Join(recvTree)
			s.Model.Generations[recvRoot] = domain.Bound(joined, domain.GenerationBounds)
		}
	}

	if sinkTree, ok := s.Model.Sinks[root]; ok {
		partial := rules.NewFulfilledPartialKindState()
		s.matchFlows(out.Collapse(), sinkTree.Collapse(), v.Pos(), 0, s.Fn.String(), partial)
	}
}

// callContext assembles the caller-side instantiation context for one
// call: caller identity, call position, the callee's name, per-argument
// static types, and per-argument constant values (used to resolve
// via-value-of ports and indirect path indices).
func (s *State) callContext(callee *ssa.Function, args []ssa.Value, pos token.Pos) propagate.CallSite {
	argTypes := make([]string, len(args))
	constArgs := make([]string, len(args))
	for i, a := range args {
		argTypes[i] = a.Type().String()
		if c, ok := a.(*ssa.Const); ok {
			constArgs[i] = constString(c)
		}
	}
	return propagate.CallSite{
		Method:            s.Fn.String(),
		Callee:            callee.String(),
		Position:          s.position(pos),
		ReceiverInterval:  receiverInterval(callee, args),
		ArgumentTypes:     argTypes,
		ConstantArguments: constArgs,
	}
}

// receiverInterval narrows the call to the receiver's class interval
// when the callee is a method and the receiver's type at this call site
// is concrete. Free functions and interface-typed receivers stay at the
// identity interval: there is no single class to narrow to.
func receiverInterval(callee *ssa.Function, args []ssa.Value) frame.Interval {
	if callee.Signature.Recv() == nil || len(args) == 0 {
		return frame.AnyInterval
	}
	t := args[0].Type()
	if types.IsInterface(t) {
		return frame.AnyInterval
	}
	return frame.TypeInterval(t)
}

func constString(c *ssa.Const) string {
	if c.Value == nil {
		return ""
	}
	if c.Value.Kind() == constant.String {
		return constant.StringVal(c.Value)
	}
	return c.Value.ExactString()
}

// resolveIndirectIndices rewrites any path step that names an indirect
// index (stored as a field step of the form "<Argument(i)>") into the
// literal value of the call's i'th constant argument, or the any-index
// wildcard when the argument is not a constant at this call site.
func resolveIndirectIndices(p access.Path, constArgs []string) access.Path {
	out := make(access.Path, len(p))
	for i, e := range p {
		out[i] = e
		if e.Kind != access.Field {
			continue
		}
		var arg int
		if _, err := fmt.Sscanf(e.Field, "<Argument(%d)>", &arg); err != nil {
			continue
		}
		if arg >= 0 && arg < len(constArgs) && constArgs[arg] != "" {
			out[i] = access.MakeField(constArgs[arg])
		} else {
			out[i] = access.MakeAnyIndex()
		}
	}
	return out
}

// sortedPorts returns m's port keys in a stable order, so iteration
// over a Model's port maps never depends on map layout.
func sortedPorts(m map[string]domain.TaintTree) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// matchFlows runs the flow matcher over one (source Taint, sink Taint)
// pair: simple rules, exploitability (source-as-transform) rules, and
// multi-source partial rules, accumulating partial progress in state
// and appending any resulting Issues to the method's Model. Source and
// sink kinds are visited in their stable interning order so rule
// matching is deterministic.
func (s *State) matchFlows(src, sink domain.Taint, pos token.Pos, sinkIndex int, calleeName string, state *rules.FulfilledPartialKindState) {
	if src.IsBottom() || sink.IsBottom() {
		return
	}
	for _, srcKind := range src.Kinds() {
		srcIntervals := intervalsOf(src, srcKind)
		for _, sinkKind := range sink.Kinds() {
			sinkIntervals := intervalsOf(sink, sinkKind)
			for _, r := range s.Rules.Match(srcKind, sinkKind, srcIntervals, sinkIntervals) {
				s.addIssue(r.Name, r.Code, rules.IssueMessage(r.Name, srcKind, sinkKind), calleeName, sinkIndex, pos)
			}
			legFeatures := combinedFeatures(src, srcKind, sink, sinkKind)
			for _, r := range s.Rules.MatchMulti(srcKind, sinkKind, legFeatures, state, srcIntervals, sinkIntervals) {
				s.addIssue(r.Name, r.Code, rules.IssueMessage(r.Name, srcKind, sinkKind), calleeName, sinkIndex, pos)
			}
			s.escalateExploitability(srcKind, sink, sinkKind, pos, sinkIndex, calleeName)
		}
	}
	s.matchExploitabilitySinks(sink, pos, sinkIndex, calleeName)
}

// exploitabilityPort is the port key of the call-effect-exploitability
// root, where partially-fulfilled exploitability sinks accumulate.
var exploitabilityPort = access.AccessPath{Root: access.MakeExploitability()}.String()

// matchExploitabilitySinks handles sink kinds that already carry a
// source-as-transform marker: if an exploitability rule is fulfilled by
// the combination, one issue is emitted per recorded origin of the sink
// (the origin's method named in the message); otherwise the sink is
// recorded onto the method's exploitability port so the combination
// keeps propagating outward until some caller fulfills it.
func (s *State) matchExploitabilitySinks(sink domain.Taint, pos token.Pos, sinkIndex int, calleeName string) {
	for _, sinkKind := range sink.Kinds() {
		if sinkKind.Tag() != kind.TransformTag || !sinkKind.HasSourceAsTransform() {
			continue
		}
		fulfilled := s.Rules.MatchFulfilledExploitability(sinkKind)
		if len(fulfilled) == 0 {
			s.recordExploitabilitySink(sink, sinkKind, pos)
			continue
		}
		for _, r := range fulfilled {
			emitted := false
			for _, f := range sink.Frames(sinkKind) {
				for _, origin := range f.Origins {
					s.addIssue(r.Name, r.Code,
						fmt.Sprintf("%s (exploitable via %s)", rules.IssueMessage(r.Name, sinkKind.Base(), sinkKind), origin.Method),
						calleeName, sinkIndex, pos)
					emitted = true
				}
			}
			if !emitted {
				s.addIssue(r.Name, r.Code, rules.IssueMessage(r.Name, sinkKind.Base(), sinkKind), calleeName, sinkIndex, pos)
			}
		}
	}
}

// escalateExploitability handles a plain (source, sink) pair that fires
// the first leg of an exploitability rule: the source kind is applied
// as a transform over the sink kind, the combined sink is homed at this
// call position, and it is checked against the method's own
// exploitability sources -- fulfilled immediately if the port already
// carries taint, recorded onto the method's exploitability sinks
// otherwise so the combination propagates outward.
func (s *State) escalateExploitability(srcKind *kind.Kind, sink domain.Taint, sinkKind *kind.Kind, pos token.Pos, sinkIndex int, calleeName string) {
	if len(s.Rules.PartialExploitability(srcKind, sinkKind)) == 0 {
		return
	}
	combined := rules.SourceAsTransformSink(srcKind, sinkKind)
	carrier := sink.TransformKind(func(k *kind.Kind) []*kind.Kind {
		if k == sinkKind {
			return []*kind.Kind{combined}
		}
		return nil
	}, nil).AttachPosition(s.position(pos).Position)
	if carrier.IsBottom() {
		return
	}

	if srcTree, ok := s.Model.CallEffectSources[exploitabilityPort]; ok && !srcTree.IsEmpty() {
		for _, r := range s.Rules.MatchFulfilledExploitability(combined) {
			s.addIssue(r.Name, r.Code, rules.IssueMessage(r.Name, srcKind, combined), calleeName, sinkIndex, pos)
		}
		return
	}
	joined := s.Model.CallEffectSinks[exploitabilityPort].Join(domain.LeafTree(carrier))
	s.Model.CallEffectSinks[exploitabilityPort] = domain.Bound(joined, domain.CallEffectBounds)
}

// recordExploitabilitySink stores an unfulfilled source-as-transform
// sink on the method's exploitability port, homed at the current call.
func (s *State) recordExploitabilitySink(sink domain.Taint, sinkKind *kind.Kind, pos token.Pos) {
	carrier := domain.Bottom
	for _, f := range sink.Frames(sinkKind) {
		carrier = carrier.Add(f)
	}
	carrier = carrier.AttachPosition(s.position(pos).Position)
	if carrier.IsBottom() {
		return
	}
	joined := s.Model.CallEffectSinks[exploitabilityPort].Join(domain.LeafTree(carrier))
	s.Model.CallEffectSinks[exploitabilityPort] = domain.Bound(joined, domain.CallEffectBounds)
}

func (s *State) addIssue(ruleName string, ruleCode int, message, calleeName string, sinkIndex int, pos token.Pos) {
	s.Model.Issues = append(s.Model.Issues, model.Issue{
		RuleName:  ruleName,
		RuleCode:  ruleCode,
		Message:   message,
		Callee:    calleeName,
		SinkIndex: sinkIndex,
		Pos:       pos,
	})
}

func intervalsOf(t domain.Taint, k *kind.Kind) []frame.Interval {
	frames := t.Frames(k)
	out := make([]frame.Interval, len(frames))
	for i, f := range frames {
		out[i] = f.Interval
	}
	return out
}

// combinedFeatures unions the features carried by src's srcKind frames
// and sink's sinkKind frames: the per-leg feature set recorded for a
// multi-source rule observation, where source and sink co-occur.
func combinedFeatures(src domain.Taint, srcKind *kind.Kind, sink domain.Taint, sinkKind *kind.Kind) feature.MayAlways {
	var out feature.MayAlways
	for _, f := range src.Frames(srcKind) {
		out = feature.MayAlways{May: out.May.Union(f.Features.May), Always: out.Always.Union(f.Features.Always)}
	}
	for _, f := range sink.Frames(sinkKind) {
		out = feature.MayAlways{May: out.May.Union(f.Features.May), Always: out.Always.Union(f.Features.Always)}
	}
	return out
}

// addAlwaysFeatures returns t with each named feature attached as an
// always-feature on every frame.
func addAlwaysFeatures(t domain.Taint, names []string) domain.Taint {
	if len(names) == 0 || t.IsBottom() {
		return t
	}
	return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		for _, n := range names {
			f.Features = f.Features.AddAlways(feature.Intern(n))
		}
		return f, true
	})
}

// visitInvoke implements the invoke category. Steps, in order: match
// the callee's declared sinks (and call-effect sinks) against the
// incoming taint, apply declared argument features, apply the callee's
// propagations (or its inline-as-setter shortcut), instantiate its
// generations at the result and argument registers (unless the
// inline-as-getter shortcut replaces the result write), and repeat
// sink matching for any closure passed as a func-typed argument, whose
// body the callee may invoke.
func (s *State) visitInvoke(call *ssa.CallCommon, site ssa.Value, results []ssa.Value, pos token.Pos) {
	if call.IsInvoke() {
		s.visitObscureInvoke(call, site)
		return
	}
	callee, ok := call.Value.(*ssa.Function)
	if !ok || s.Callees == nil {
		s.visitObscureInvoke(call, site)
		return
	}
	calleeModel := s.Callees.ModelFor(callee)
	if calleeModel == nil {
		s.visitObscureInvoke(call, site)
		return
	}

	args := call.Args
	cs := s.callContext(callee, args, pos)
	argTree := func(i int) domain.TaintTree {
		if i < 0 || i >= len(args) {
			return domain.EmptyTree()
		}
		return s.taintAt(args[i])
	}

	// Multi-source partial-rule progress accumulates across the sinks of
	// this one call, never across calls or methods, so a rule whose legs
	// fire at two different arguments of the same call completes here.
	partial := rules.NewFulfilledPartialKindState()
	var instr ssa.Instruction
	if v, ok := site.(ssa.Instruction); ok {
		instr = v
		s.PartialStates[instr] = partial
	}

	s.matchCalleeSinks(calleeModel, argTree, cs, pos, partial)
	s.matchCallEffectSinks(calleeModel, cs, pos, partial)
	s.applyArgumentFeatures(calleeModel, args)

	if setter := calleeModel.InlineAsSetter; setter != nil {
		s.applyInlineSetter(setter, args, cs)
	} else {
		s.applyPropagations(calleeModel, args, results, argTree, cs)
	}

	s.applyGenerations(calleeModel, args, results, cs)
	s.applyTaintInTaintModes(calleeModel, args, results)
	s.matchClosureCallees(args, cs, pos, partial)
}

// matchCalleeSinks runs the flow matcher for every sink port the callee
// declares, reading the caller-side taint at the port's argument and
// path. Deeper structure than the port's path is folded into the match
// with the issue-broadening feature (via Read's ancestor folding).
func (s *State) matchCalleeSinks(calleeModel *model.Model, argTree func(int) domain.TaintTree, cs propagate.CallSite, pos token.Pos, partial *rules.FulfilledPartialKindState) {
	sinkIndex := 0
	for _, portKey := range sortedPorts(calleeModel.Sinks) {
		port, err := access.Parse(portKey)
		if err != nil || port.Root.Kind != access.Argument {
			continue
		}
		path := resolveIndirectIndices(port.Path, cs.ConstantArguments)
		incoming := domain.ReadForSinkMatch(argTree(port.Root.Arg), path)
		sinkTaint := propagate.Taint(calleeModel.Sinks[portKey].Collapse(), cs, port)
		s.matchFlows(incoming, sinkTaint, pos, sinkIndex, cs.Callee, partial)
		sinkIndex++
	}
}

// matchCallEffectSinks matches the callee's call-effect sinks against
// the caller's own call-effect sources: flows that travel through a
// side channel observed at the call boundary rather than through an
// argument register. The instantiated effect sinks also join into the
// caller's inferred call-effect sinks, so the effect keeps propagating
// outward.
func (s *State) matchCallEffectSinks(calleeModel *model.Model, cs propagate.CallSite, pos token.Pos, partial *rules.FulfilledPartialKindState) {
	sinkIndex := 0
	for _, portKey := range sortedPorts(calleeModel.CallEffectSinks) {
		port, err := access.Parse(portKey)
		if err != nil {
			continue
		}
		sinkTaint := propagate.Taint(calleeModel.CallEffectSinks[portKey].Collapse(), cs, port)
		if srcTree, ok := s.Model.CallEffectSources[portKey]; ok {
			s.matchFlows(srcTree.Collapse(), sinkTaint, pos, sinkIndex, cs.Callee, partial)
		}
		joined := s.Model.CallEffectSinks[portKey].Join(domain.LeafTree(sinkTaint))
		s.Model.CallEffectSinks[portKey] = domain.Bound(joined, domain.CallEffectBounds)
		sinkIndex++
	}
}

// applyArgumentFeatures strong-writes each argument's prior taint back
// with the callee's declared per-argument features (and the via-obscure
// feature when the callee is marked obscure). The write is strong, not
// weak: joining the tagged taint onto the untagged original would
// demote every added always-feature to a may-feature.
func (s *State) applyArgumentFeatures(calleeModel *model.Model, args []ssa.Value) {
	obscure := calleeModel.Modes.Has(model.AddViaObscureFeature)
	if len(calleeModel.AddFeaturesToArguments) == 0 && !obscure {
		return
	}
	for i, arg := range args {
		names := calleeModel.AddFeaturesToArguments[i]
		if len(names) == 0 && !obscure {
			continue
		}
		prev := s.taintAt(arg)
		if prev.IsEmpty() {
			continue
		}
		tagged := prev.Collapse()
		tagged = addAlwaysFeatures(tagged, names)
		if obscure {
			tagged = tagged.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
				f.Features = f.Features.AddAlways(feature.ViaObscure)
				return f, true
			})
		}
		s.assignTaint(arg, domain.LeafTree(tagged))
	}
}

// applyInlineSetter implements the inline-as-setter shortcut: the call
// is a trivial store, so instead of running propagations the value
// port's taint is strong-written to the target port's location.
func (s *State) applyInlineSetter(setter *model.Setter, args []ssa.Value, cs propagate.CallSite) {
	if setter.Value.Root.Kind != access.Argument || setter.Target.Root.Kind != access.Argument {
		return
	}
	vi, ti := setter.Value.Root.Arg, setter.Target.Root.Arg
	if vi < 0 || vi >= len(args) || ti < 0 || ti >= len(args) {
		return
	}
	val := s.taintAt(args[vi]).Read(setter.Value.Path)
	if val.IsBottom() {
		return
	}
	cur := s.taintAt(args[ti])
	s.Env = s.Env.Assign(s.loc(args[ti]), cur.Assign(setter.Target.Path, val))
}

// applyPropagations instantiates each of the callee's declared
// propagations at this call site: read the input port's taint, apply
// the propagation's transform sequence, honor its collapse depth, and
// write the result to the output root each propagation frame names.
func (s *State) applyPropagations(calleeModel *model.Model, args, results []ssa.Value, argTree func(int) domain.TaintTree, cs propagate.CallSite) {
	strongWrite := calleeModel.Modes.Has(model.StrongWriteOnPropagation)
	noCollapse := calleeModel.Modes.Has(model.NoCollapseOnPropagation)

	for _, portKey := range sortedPorts(calleeModel.Propagations) {
		port, err := access.Parse(portKey)
		if err != nil || port.Root.Kind != access.Argument {
			continue
		}
		inPath := resolveIndirectIndices(port.Path, cs.ConstantArguments)
		inTaintTree := argTree(port.Root.Arg).Descend(inPath)
		if inTaintTree.IsEmpty() {
			continue
		}

		transforms := calleeModel.PropagationTransforms[portKey]

		for _, pf := range calleeModel.Propagations[portKey].Collapse().AllFrames() {
			if pf.Kind.Tag() != kind.Propagation {
				continue
			}
			outRoot, outArgs := s.propagationTargets(pf.Kind, args, results)
			if outRoot == "" {
				continue
			}

			for _, w := range propagationWrites(inTaintTree, pf, noCollapse) {
				outTree := s.instantiatePropagated(w.tree, cs, access.Make(access.MakeArgument(port.Root.Arg)), transforms, pf, calleeModel, port.Root.Arg, outRoot)
				if outTree.IsEmpty() {
					continue
				}
				placed := domain.EmptyTree()
				for _, p := range outTree.Paths() {
					placed = placed.Write(append(append(access.Path(nil), w.path...), p...), outTree.Get(p))
				}
				for _, target := range outArgs {
					if strongWrite {
						s.assignTaint(target, placed)
					} else {
						s.writeTaint(target, placed)
					}
				}
			}
		}
	}
}

type propagationWrite struct {
	path access.Path
	tree domain.TaintTree
}

// propagationWrites expands a propagation frame's output-path tree into
// the concrete (output path, taint tree) writes to perform: the whole
// input at the output root for the identity propagation, or one write
// per declared output path, each with its own collapse depth applied.
// A negative depth preserves the input's shape; depth k keeps k levels
// of structure and folds everything deeper, tagged with the
// propagation-broadening feature; NoCollapseOnPropagation overrides
// every depth to shape-preserving.
func propagationWrites(in domain.TaintTree, pf frame.Frame, noCollapse bool) []propagationWrite {
	broaden := func(t domain.Taint) domain.Taint {
		return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
			f.Features = f.Features.AddAlways(feature.BroadeningPropagation)
			return f, true
		})
	}

	if len(pf.OutputPaths) == 0 {
		return []propagationWrite{{tree: in}}
	}

	paths := make([]string, 0, len(pf.OutputPaths))
	for p := range pf.OutputPaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []propagationWrite
	for _, pathStr := range paths {
		parsed, err := access.Parse(pathStr)
		if err != nil {
			continue
		}
		depth := pf.OutputPaths[pathStr]
		sub := in
		if depth >= 0 && !noCollapse {
			sub = sub.LimitHeight(depth, broaden)
		}
		out = append(out, propagationWrite{path: parsed.Path, tree: sub})
	}
	return out
}

// propagationTargets resolves a propagation kind's output root to the
// concrete ssa.Values written at this call: the call results for a
// local-return propagation, the named argument otherwise. Callers must
// only pass Propagation-tagged kinds; any other variant here is a bug
// in the caller, not bad input.
func (s *State) propagationTargets(pk *kind.Kind, args, results []ssa.Value) (string, []ssa.Value) {
	invariant.Assert(pk.Tag() == kind.Propagation, "propagation output root must come from a Propagation kind, got %v", pk)
	switch pk.PropagationForm() {
	case kind.LocalReturn:
		return access.MakeReturn().String(), results
	case kind.LocalArgument:
		j := pk.Argument()
		if j < 0 || j >= len(args) {
			return "", nil
		}
		return access.MakeArgument(j).String(), []ssa.Value{args[j]}
	}
	invariant.Unreachable("unhandled propagation form %v", pk.PropagationForm())
	return "", nil
}

// instantiatePropagated applies the per-frame bookkeeping a propagation
// carries its taint through: call-site instantiation, the declared
// transform sequence, the propagation frame's own features, and the
// callee's declared argument features on both the input and output
// ports.
func (s *State) instantiatePropagated(tr domain.TaintTree, cs propagate.CallSite, inPort access.AccessPath, transforms []kind.Transform, pf frame.Frame, calleeModel *model.Model, inArg int, outRoot string) domain.TaintTree {
	out := domain.EmptyTree()
	extra := append([]string(nil), calleeModel.AttachToPropagations...)
	extra = append(extra, calleeModel.AddFeaturesToArguments[inArg]...)
	if outPort, err := access.Parse(outRoot); err == nil && outPort.Root.Kind == access.Argument {
		extra = append(extra, calleeModel.AddFeaturesToArguments[outPort.Root.Arg]...)
	}

	for _, p := range tr.Paths() {
		t := tr.Get(p)
		t = propagate.Taint(t, cs, inPort)
		t = propagate.ApplyTransforms(t, transforms)
		t = addAlwaysFeatures(t, extra)
		t = t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
			f.Features = feature.MayAlways{
				May:    f.Features.May.Union(pf.Features.May),
				Always: f.Features.Always.Union(pf.Features.Always),
			}
			return f, !calleeModel.Sanitizes(outRoot, f.Kind)
		})
		if t.IsBottom() {
			continue
		}
		out = out.Write(p, t)
	}
	return out
}

// applyGenerations taints the call's result (Return-rooted generations)
// and argument registers (Argument-rooted generations) with the taint
// the callee's model declares it produces there, weakly: a generation
// adds taint to whatever the register already carried. The
// inline-as-getter shortcut replaces the ordinary result write with a
// field read through the receiver's taint.
func (s *State) applyGenerations(calleeModel *model.Model, args, results []ssa.Value, cs propagate.CallSite) {
	if getter := calleeModel.InlineAsGetter; getter != nil {
		if getter.Root.Kind == access.Argument && getter.Root.Arg >= 0 && getter.Root.Arg < len(args) {
			val := s.taintAt(args[getter.Root.Arg]).Read(getter.Path)
			if !val.IsBottom() {
				for _, r := range results {
					s.assignTaint(r, domain.LeafTree(val))
				}
			}
		}
	}

	for _, portKey := range sortedPorts(calleeModel.Generations) {
		port, err := access.Parse(portKey)
		if err != nil {
			continue
		}
		instantiated := propagate.Tree(calleeModel.Generations[portKey], cs, port)
		instantiated = domain.FilterKinds(instantiated, func(k *kind.Kind) bool {
			return !calleeModel.Sanitizes(portKey, k)
		})
		if instantiated.IsEmpty() {
			continue
		}
		switch port.Root.Kind {
		case access.Return:
			if calleeModel.InlineAsGetter != nil {
				continue
			}
			for _, r := range results {
				s.writeTaint(r, instantiated)
			}
		case access.Argument:
			if i := port.Root.Arg; i >= 0 && i < len(args) {
				s.writeTaint(args[i], instantiated)
			}
		}
	}
}

// applyTaintInTaintModes applies the coarse taint-in-taint-out and
// taint-in-taint-this modes: every argument's taint flows to the result
// (or the receiver), used for callees whose models declare the mode
// instead of precise propagations.
func (s *State) applyTaintInTaintModes(calleeModel *model.Model, args, results []ssa.Value) {
	tito := calleeModel.Modes.Has(model.TaintInTaintOut)
	titt := calleeModel.Modes.Has(model.TaintInTaintThis)
	if !tito && !titt {
		return
	}
	joined := domain.Bottom
	for _, a := range args {
		joined = joined.Join(s.taintAt(a).Collapse())
	}
	if joined.IsBottom() {
		return
	}
	if tito {
		for _, r := range results {
			s.writeTaint(r, domain.LeafTree(joined))
		}
	}
	if titt && len(args) > 0 {
		s.writeTaint(args[0], domain.LeafTree(joined))
	}
}

// matchClosureCallees repeats sink matching for every closure passed as
// a func-typed argument: the callee may invoke the closure, so taint
// captured in its bindings can reach any sink the closure's own body
// declares. The closure's function stands in as an artificial callee of
// this call.
func (s *State) matchClosureCallees(args []ssa.Value, cs propagate.CallSite, pos token.Pos, partial *rules.FulfilledPartialKindState) {
	for _, arg := range args {
		mc, ok := arg.(*ssa.MakeClosure)
		if !ok {
			continue
		}
		closureFn, ok := mc.Fn.(*ssa.Function)
		if !ok || s.Callees == nil {
			continue
		}
		closureModel := s.Callees.ModelFor(closureFn)
		if closureModel == nil {
			continue
		}
		bound := domain.Bottom
		for _, b := range mc.Bindings {
			bound = bound.Join(s.taintAt(b).Collapse())
		}
		if bound.IsBottom() {
			continue
		}
		sinkIndex := 0
		for _, portKey := range sortedPorts(closureModel.Sinks) {
			port, err := access.Parse(portKey)
			if err != nil {
				continue
			}
			sinkTaint := propagate.Taint(closureModel.Sinks[portKey].Collapse(), cs, port)
			s.matchFlows(bound, sinkTaint, pos, sinkIndex, closureFn.String(), partial)
			sinkIndex++
		}
	}
}

// visitObscureInvoke handles a call whose callee Model is unavailable
// (an interface/obscure call, or one with no recorded Model yet). A
// standard library call with a known propagation.summary is handled
// precisely via applyStdlibSummary; everything else falls back to
// taint-in-taint-out, tagged via-obscure.
func (s *State) visitObscureInvoke(call *ssa.CallCommon, site ssa.Value) {
	if ssaCall, ok := site.(*ssa.Call); ok {
		if sm := summary.For(ssaCall); sm != nil {
			s.applyStdlibSummary(sm, ssaCall)
			return
		}
	}
	if site == nil {
		return
	}
	out := domain.EmptyTree()
	for _, a := range call.Args {
		out = out.Join(s.taintAt(a))
	}
	if call.IsInvoke() {
		out = out.Join(s.taintAt(call.Value))
	}
	tainted := out.Collapse()
	tainted = tainted.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		f.Features = f.Features.AddAlways(feature.ViaObscure)
		return f, true
	})
	s.assignTaint(site, domain.LeafTree(tainted))
}

// applyStdlibSummary propagates taint through a call with a known
// standard-library propagation summary, writing into the abstract
// domain what the summary's argument/return bitsets describe.
func (s *State) applyStdlibSummary(sm *summary.Summary, call *ssa.Call) {
	var args []ssa.Value
	if call.Call.IsInvoke() {
		args = append(args, call.Call.Value)
	}
	args = append(args, call.Call.Args...)

	argTaint := make([]domain.Taint, len(args))
	tainted := int64(0)
	for i, a := range args {
		argTaint[i] = s.taintAt(a).Collapse()
		if !argTaint[i].IsBottom() {
			tainted |= 1 << uint(i)
		}
	}
	if tainted&sm.IfTainted == 0 {
		return
	}

	in := domain.Bottom
	for _, t := range argTaint {
		in = in.Join(t)
	}

	for _, i := range sm.TaintedArgs {
		if i < 0 || i >= len(args) {
			continue
		}
		s.writeTaint(args[i], domain.LeafTree(in))
	}

	if len(sm.TaintedRets) == 0 {
		return
	}
	if call.Call.Signature().Results().Len() == 1 {
		s.assignTaint(call, domain.LeafTree(in))
		return
	}
	if call.Referrers() == nil {
		return
	}
	wantRet := make(map[int]bool, len(sm.TaintedRets))
	for _, i := range sm.TaintedRets {
		wantRet[i] = true
	}
	for _, r := range *call.Referrers() {
		e, ok := r.(*ssa.Extract)
		if !ok || !wantRet[e.Index] {
			continue
		}
		s.assignTaint(e, domain.LeafTree(in))
	}
}
