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

// Package model implements Model: the per-method summary that the
// fixed-point driver computes, joins across call sites, and stores in
// the registry.
package model

import (
	"go/token"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
)

// Modes is a bitset of per-method analysis switches attached to a Model.
type Modes uint32

const (
	// SkipAnalysis marks a method whose body should not be analyzed
	// (e.g. it is handled entirely through a model generator).
	SkipAnalysis Modes = 1 << iota
	// AddViaObscureFeature marks a method whose summary is incomplete
	// (no body available, e.g. an external or native stub), so every
	// frame flowing through it is tagged via-obscure.
	AddViaObscureFeature
	// TaintInTaintOut marks a method presumed to propagate every
	// argument's taint to the return value, absent better information.
	TaintInTaintOut
	// NoJoinVirtualOverrides disables joining this method's Model with
	// its override set at virtual call sites.
	NoJoinVirtualOverrides
	// NoCollapseOnPropagation disables the default collapse-to-root
	// behavior when instantiating a propagation's input taint, keeping
	// the full input access-path structure instead of folding it into
	// one leaf before writing to the output.
	NoCollapseOnPropagation
	// AliasMemoryLocationOnInvoke marks a method whose receiver/argument
	// memory locations should be treated as aliasing the callee's
	// corresponding locations at every call site, rather than only at
	// call sites the alias oracle independently resolves as aliasing.
	AliasMemoryLocationOnInvoke
	// StrongWriteOnPropagation marks a propagation whose output write is
	// a strong update (Assign), discarding whatever taint previously
	// occupied the output location, instead of the default weak Write.
	StrongWriteOnPropagation
	// TaintInTaintThis marks a method presumed to propagate every
	// argument's taint onto the receiver, absent better information,
	// mirroring TaintInTaintOut but for the implicit "this" output.
	TaintInTaintThis
)

// Has reports whether all the bits in want are set in m.
func (m Modes) Has(want Modes) bool { return m&want == want }

// Frozen is a bitset recording which Model fields have been
// model-generator-pinned and must not be further widened by the
// fixed-point computation once the method itself has run.
type Frozen uint32

const (
	FrozenGenerations Frozen = 1 << iota
	FrozenSinks
	FrozenPropagations
	FrozenSanitizers
)

// Has reports whether every bit in want is set in f.
func (f Frozen) Has(want Frozen) bool { return f&want == want }

// Model is one method's taint summary.
type Model struct {
	Method string

	// Generations records, per output root (Return or a call-effect
	// root), the TaintTree of frames this method itself introduces
	// there (sources declared directly on the method, or inferred by a
	// source model generator).
	Generations map[string]domain.TaintTree

	// ParameterSources records, per Argument(i) root, the TaintTree of
	// source frames attached directly to that parameter (e.g. a
	// source-tagged struct field reached through the parameter).
	ParameterSources map[string]domain.TaintTree

	// Sinks records, per Argument(i)/call-effect root, the TaintTree of
	// sink frames this method (or a call it makes) exposes there.
	Sinks map[string]domain.TaintTree

	// CallEffectSources/CallEffectSinks mirror Generations/Sinks but
	// for the call-effect roots specifically, modeling taint observed
	// through a callback invoked during the call rather than through
	// ordinary argument/return flow.
	CallEffectSources map[string]domain.TaintTree
	CallEffectSinks   map[string]domain.TaintTree

	// Propagations records, per input access path, the set of
	// Propagation-kind frames describing how taint at that input
	// reaches which outputs.
	Propagations map[string]domain.TaintTree

	// PropagationTransforms records, per input access path (the same
	// key as Propagations), the named transform sequence a propagation
	// applies to the taint flowing through it -- e.g. a local encoder or
	// hashing routine the callee is known to call on its way from
	// argument to return.
	PropagationTransforms map[string][]kind.Transform

	// Sanitizers lists the sanitizer rules that apply globally to this
	// method (every kind, every port) and those that apply only to a
	// specific port.
	GlobalSanitizers []SanitizerRule
	PortSanitizers   map[string][]SanitizerRule

	// AttachToSources/AttachToSinks/AttachToPropagations list features
	// that model generators pin onto every frame of the given
	// category, regardless of how that frame was produced.
	AttachToSources      []string
	AttachToSinks        []string
	AttachToPropagations []string

	// AddFeaturesToArguments lists features to attach (as
	// always-features) to whatever taint the caller passes at the given
	// argument index, applied at every call site of this method.
	AddFeaturesToArguments map[int][]string

	// InlineAsGetter/InlineAsSetter mark this method as a trivial field
	// accessor, letting the transfer function treat a call to it as a
	// direct field read/write instead of a generic invoke.
	InlineAsGetter *access.AccessPath
	InlineAsSetter *Setter

	Modes  Modes
	Frozen Frozen

	// ModelGenerators lists the names of the model generators that
	// contributed to this Model, for provenance in debug output.
	ModelGenerators []string

	Issues []Issue
}

// Setter describes an inline-as-setter method: calling it stores the
// taint read at Value into the location named by Target, both rooted at
// an argument of the call.
type Setter struct {
	Target access.AccessPath
	Value  access.AccessPath
}

// SanitizerRule names one sanitizing rule, by the kind(s) it removes.
type SanitizerRule struct {
	// KindNames is empty for a sanitize-all rule, or the specific named
	// kinds this sanitizer removes otherwise.
	KindNames []string
}

func (r SanitizerRule) removes(k *kind.Kind) bool {
	if len(r.KindNames) == 0 {
		return true
	}
	for b := k; b != nil; b = b.Base() {
		for _, name := range r.KindNames {
			if b.Name() == name {
				return true
			}
		}
	}
	return false
}

// Sanitizes reports whether calling m sanitizes k when k flows through
// the named output port (a Return/Argument(i)/call-effect root, per
// access.Root.String()). A global sanitizer applies to every port; a
// port sanitizer applies only to the port it names.
func (m *Model) Sanitizes(port string, k *kind.Kind) bool {
	for _, r := range m.GlobalSanitizers {
		if r.removes(k) {
			return true
		}
	}
	for _, r := range m.PortSanitizers[port] {
		if r.removes(k) {
			return true
		}
	}
	return false
}

// Issue is a single confirmed source-to-sink flow found within this
// method, ready for reporting.
type Issue struct {
	RuleName string
	RuleCode int
	Message  string
	// Callee is the textual name of the called method the sink belongs
	// to, and SinkIndex its stable index among the call's sink ports,
	// so two flows into different arguments of one call stay distinct.
	Callee    string
	SinkIndex int
	Position  access.AccessPath // the sink's callee port, for display
	Pos       token.Pos         // the call site, for reporting
}

// New returns an empty Model for the named method.
func New(method string) *Model {
	return &Model{
		Method:                 method,
		Generations:            map[string]domain.TaintTree{},
		ParameterSources:       map[string]domain.TaintTree{},
		Sinks:                  map[string]domain.TaintTree{},
		CallEffectSources:      map[string]domain.TaintTree{},
		CallEffectSinks:        map[string]domain.TaintTree{},
		Propagations:           map[string]domain.TaintTree{},
		PropagationTransforms:  map[string][]kind.Transform{},
		PortSanitizers:         map[string][]SanitizerRule{},
		AddFeaturesToArguments: map[int][]string{},
	}
}

// IsEmpty reports whether m carries no facts at all: no taint trees, no
// sanitizers, no modes, no accessor shortcuts. A callee with an empty
// Model gives a call site nothing to instantiate.
func (m *Model) IsEmpty() bool {
	return len(m.Generations) == 0 && len(m.ParameterSources) == 0 && len(m.Sinks) == 0 &&
		len(m.CallEffectSources) == 0 && len(m.CallEffectSinks) == 0 && len(m.Propagations) == 0 &&
		len(m.GlobalSanitizers) == 0 && len(m.PortSanitizers) == 0 &&
		len(m.AddFeaturesToArguments) == 0 &&
		m.InlineAsGetter == nil && m.InlineAsSetter == nil && m.Modes == 0
}

// Copy returns a Model that shares no mutable containers with m, so one
// analysis pass can accumulate into its own working Model while m stays
// the immutable previous-iteration input. The TaintTree values
// themselves are shared: trees are persistent and never mutated in
// place.
func (m *Model) Copy() *Model {
	out := New(m.Method)
	for k, v := range m.Generations {
		out.Generations[k] = v
	}
	for k, v := range m.ParameterSources {
		out.ParameterSources[k] = v
	}
	for k, v := range m.Sinks {
		out.Sinks[k] = v
	}
	for k, v := range m.CallEffectSources {
		out.CallEffectSources[k] = v
	}
	for k, v := range m.CallEffectSinks {
		out.CallEffectSinks[k] = v
	}
	for k, v := range m.Propagations {
		out.Propagations[k] = v
	}
	for k, v := range m.PropagationTransforms {
		out.PropagationTransforms[k] = append([]kind.Transform(nil), v...)
	}
	for k, v := range m.PortSanitizers {
		out.PortSanitizers[k] = append([]SanitizerRule(nil), v...)
	}
	for k, v := range m.AddFeaturesToArguments {
		out.AddFeaturesToArguments[k] = append([]string(nil), v...)
	}
	out.GlobalSanitizers = append([]SanitizerRule(nil), m.GlobalSanitizers...)
	out.AttachToSources = append([]string(nil), m.AttachToSources...)
	out.AttachToSinks = append([]string(nil), m.AttachToSinks...)
	out.AttachToPropagations = append([]string(nil), m.AttachToPropagations...)
	out.InlineAsGetter = m.InlineAsGetter
	out.InlineAsSetter = m.InlineAsSetter
	out.Modes = m.Modes
	out.Frozen = m.Frozen
	out.ModelGenerators = append([]string(nil), m.ModelGenerators...)
	out.Issues = append([]Issue(nil), m.Issues...)
	return out
}

func joinTreeMap(a, b map[string]domain.TaintTree, aFrozen, bFrozen bool) map[string]domain.TaintTree {
	if aFrozen {
		return a
	}
	if bFrozen {
		return b
	}
	out := make(map[string]domain.TaintTree, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if cur, ok := out[k]; ok {
			out[k] = cur.Join(v)
		} else {
			out[k] = v
		}
	}
	return out
}

func joinTransformMap(a, b map[string][]kind.Transform) map[string][]kind.Transform {
	out := make(map[string][]kind.Transform, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = unionTransforms(out[k], v)
	}
	return out
}

func unionTransforms(a, b []kind.Transform) []kind.Transform {
	if len(b) == 0 {
		return a
	}
	out := append([]kind.Transform(nil), a...)
	for _, t := range b {
		found := false
		for _, u := range a {
			if u == t {
				found = true
				break
			}
		}
		if !found {
			out = append(out, t)
		}
	}
	return out
}

// Join computes the least upper bound of m and other, honoring each
// side's Frozen bits: a frozen field is never widened past its
// model-generator-pinned value.
func (m *Model) Join(other *Model) *Model {
	out := &Model{
		Method:                m.Method,
		Generations:           joinTreeMap(m.Generations, other.Generations, m.Frozen.Has(FrozenGenerations), other.Frozen.Has(FrozenGenerations)),
		ParameterSources:      joinTreeMap(m.ParameterSources, other.ParameterSources, false, false),
		Sinks:                 joinTreeMap(m.Sinks, other.Sinks, m.Frozen.Has(FrozenSinks), other.Frozen.Has(FrozenSinks)),
		CallEffectSources:     joinTreeMap(m.CallEffectSources, other.CallEffectSources, false, false),
		CallEffectSinks:       joinTreeMap(m.CallEffectSinks, other.CallEffectSinks, false, false),
		Propagations:          joinTreeMap(m.Propagations, other.Propagations, m.Frozen.Has(FrozenPropagations), other.Frozen.Has(FrozenPropagations)),
		PropagationTransforms: joinTransformMap(m.PropagationTransforms, other.PropagationTransforms),
		GlobalSanitizers:      unionSanitizers(m.GlobalSanitizers, other.GlobalSanitizers),
		PortSanitizers:        joinPortSanitizers(m.PortSanitizers, other.PortSanitizers),
		AttachToSources:      unionStrings(m.AttachToSources, other.AttachToSources),
		AttachToSinks:        unionStrings(m.AttachToSinks, other.AttachToSinks),
		AttachToPropagations: unionStrings(m.AttachToPropagations, other.AttachToPropagations),
		AddFeaturesToArguments: joinArgFeatures(m.AddFeaturesToArguments, other.AddFeaturesToArguments),
		InlineAsGetter:       firstNonNil(m.InlineAsGetter, other.InlineAsGetter),
		InlineAsSetter:       firstSetter(m.InlineAsSetter, other.InlineAsSetter),
		Modes:                m.Modes | other.Modes,
		Frozen:               m.Frozen | other.Frozen,
		ModelGenerators:      unionStrings(m.ModelGenerators, other.ModelGenerators),
		Issues:               unionIssues(m.Issues, other.Issues),
	}
	return out
}

func firstNonNil(a, b *access.AccessPath) *access.AccessPath {
	if a != nil {
		return a
	}
	return b
}

func firstSetter(a, b *Setter) *Setter {
	if a != nil {
		return a
	}
	return b
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := append([]string(nil), a...)
	for _, s := range b {
		found := false
		for _, t := range a {
			if t == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

func joinArgFeatures(a, b map[int][]string) map[int][]string {
	out := make(map[int][]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = unionStrings(out[k], v)
	}
	return out
}

func unionSanitizers(a, b []SanitizerRule) []SanitizerRule {
	return append(append([]SanitizerRule(nil), a...), b...)
}

func joinPortSanitizers(a, b map[string][]SanitizerRule) map[string][]SanitizerRule {
	out := make(map[string][]SanitizerRule, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = unionSanitizers(out[k], v)
	}
	return out
}

func issuesEqual(i, j Issue) bool {
	return i.RuleName == j.RuleName && i.RuleCode == j.RuleCode && i.Message == j.Message &&
		i.Callee == j.Callee && i.SinkIndex == j.SinkIndex &&
		i.Position.Equal(j.Position) && i.Pos == j.Pos
}

func unionIssues(a, b []Issue) []Issue {
	if len(b) == 0 {
		return a
	}
	out := append([]Issue(nil), a...)
	for _, i := range b {
		found := false
		for _, j := range a {
			if issuesEqual(i, j) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, i)
		}
	}
	return out
}

// Leq reports whether m is dominated by other, field by field.
func (m *Model) Leq(other *Model) bool {
	maps := []struct{ a, b map[string]domain.TaintTree }{
		{m.Generations, other.Generations},
		{m.ParameterSources, other.ParameterSources},
		{m.Sinks, other.Sinks},
		{m.CallEffectSources, other.CallEffectSources},
		{m.CallEffectSinks, other.CallEffectSinks},
		{m.Propagations, other.Propagations},
	}
	for _, pair := range maps {
		for k, t := range pair.a {
			if !t.Leq(pair.b[k]) {
				return false
			}
		}
	}
	return true
}
