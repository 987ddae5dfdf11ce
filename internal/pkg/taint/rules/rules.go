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

// Package rules implements the flow matcher: simple source-to-sink
// rules, exploitability (source-as-transform) rules, and multi-source
// partial rules, matched against a method's sources and sinks to
// produce Issues.
package rules

import (
	"fmt"

	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
)

// Rule is a single simple source -> sink rule: fire whenever a frame of
// any kind in Sources reaches a frame of any kind in Sinks.
type Rule struct {
	Code       int
	Name       string
	Sources    []*kind.Kind
	Sinks      []*kind.Kind
	Message    string
	Transforms []string // required transform sequence between source and sink, empty == none required
}

func (r *Rule) RuleName() string { return r.Name }
func (r *Rule) RuleCode() int    { return r.Code }

func containsKind(ks []*kind.Kind, k *kind.Kind) bool {
	for _, c := range ks {
		if c == k {
			return true
		}
	}
	return false
}

// MatchesSource reports whether k is one of r's declared source kinds.
// A Transform kind matches through its base: taint that passed through
// a named transformer is still the same source, now carrying the
// transform sequence. A rule that declares required Transforms only
// matches a Transform kind whose sequence contains them in order.
func (r *Rule) MatchesSource(k *kind.Kind) bool {
	if containsKind(r.Sources, k) {
		return len(r.Transforms) == 0
	}
	if k.Tag() != kind.TransformTag || !containsKind(r.Sources, k.Base()) {
		return false
	}
	return containsTransformsInOrder(k, r.Transforms)
}

// containsTransformsInOrder reports whether k's combined transform
// sequence (global then local) contains want as a subsequence.
func containsTransformsInOrder(k *kind.Kind, want []string) bool {
	i := 0
	for _, t := range append(append([]kind.Transform(nil), k.GlobalTransforms()...), k.LocalTransforms()...) {
		if i < len(want) && t.Name == want[i] {
			i++
		}
	}
	return i == len(want)
}

// MatchesSink reports whether k is one of r's declared sink kinds.
func (r *Rule) MatchesSink(k *kind.Kind) bool { return containsKind(r.Sinks, k) }

// PartialLeg is one leg of a multi-source rule: the source kinds that
// fulfill it, identified by the leg's label. A sink declared with
// partial_label L only completes the leg labeled L.
type PartialLeg struct {
	Label   string
	Sources []*kind.Kind
}

// MultiSourceRule requires a distinct source kind per leg, each
// reaching a partial sink labeled with that leg's label, before the
// rule as a whole fires. Exactly two legs are required.
type MultiSourceRule struct {
	Code int
	Name string
	Legs []PartialLeg
	// PartialSinks names the partial sink kinds this rule listens on; a
	// sink completes a leg when it is the Partial kind (name, label)
	// for some name in PartialSinks and the leg's label.
	PartialSinks []string
	Message      string
}

func (r *MultiSourceRule) RuleName() string { return r.Name }
func (r *MultiSourceRule) RuleCode() int    { return r.Code }

// MatchesSink reports whether k is a partial sink kind this rule
// listens on: a Partial kind whose name is one of PartialSinks and
// whose label is one of the rule's legs.
func (r *MultiSourceRule) MatchesSink(k *kind.Kind) bool {
	if k.Tag() != kind.Partial {
		return false
	}
	named := false
	for _, n := range r.PartialSinks {
		if k.Name() == n {
			named = true
			break
		}
	}
	if !named {
		return false
	}
	return r.LegIndex(k.Label()) >= 0
}

// LegIndex returns the index of the leg with the given label, or -1.
func (r *MultiSourceRule) LegIndex(label string) int {
	for i, leg := range r.Legs {
		if leg.Label == label {
			return i
		}
	}
	return -1
}

// TriggeredSink synthesizes the Triggered kind for the leg that remains
// after fulfilledLeg fired: the sink the other leg's sources must now
// reach for the rule to complete.
func (r *MultiSourceRule) TriggeredSink(sinkName string, fulfilledLeg int) *kind.Kind {
	for i, leg := range r.Legs {
		if i != fulfilledLeg {
			return kind.NewTriggered(sinkName, leg.Label, r)
		}
	}
	return nil
}

// FulfilledPartialKindState tracks, per multi-source rule, which legs
// have already been observed to fire across the sinks of one call,
// deciding when a Triggered kind should be synthesized for the
// remaining legs and carrying each fulfilled leg's features so a
// completed rule's issue reports the combined set.
type FulfilledPartialKindState struct {
	// fulfilled[ruleCode] is a bitmask of which leg indices have fired.
	fulfilled map[int]uint64
	features  map[int]feature.MayAlways
}

// NewFulfilledPartialKindState returns an empty tracker.
func NewFulfilledPartialKindState() *FulfilledPartialKindState {
	return &FulfilledPartialKindState{
		fulfilled: map[int]uint64{},
		features:  map[int]feature.MayAlways{},
	}
}

// Fulfill marks leg as satisfied for rule, folding in the features
// observed on that leg's source and sink, and returns true if this is
// the first time the leg fired (so callers can avoid redundant
// Triggered kind synthesis).
func (s *FulfilledPartialKindState) Fulfill(rule *MultiSourceRule, leg int, fs feature.MayAlways) bool {
	if leg < 0 || leg >= 64 {
		return false
	}
	// Legs are distinct observations, not alternative executions: the
	// combined feature set unions both levels instead of lattice-joining
	// (which would demote an always-feature seen on only one leg).
	cur0 := s.features[rule.Code]
	s.features[rule.Code] = feature.MayAlways{
		May:    cur0.May.Union(fs.May),
		Always: cur0.Always.Union(fs.Always),
	}
	bit := uint64(1) << uint(leg)
	cur := s.fulfilled[rule.Code]
	if cur&bit != 0 {
		return false
	}
	s.fulfilled[rule.Code] = cur | bit
	return true
}

// Features returns the combined features of every leg observed so far
// for rule.
func (s *FulfilledPartialKindState) Features(rule *MultiSourceRule) feature.MayAlways {
	return s.features[rule.Code]
}

// IsSatisfied reports whether every leg of rule except the given one has
// already fired, meaning a Triggered kind for the remaining leg should
// now be synthesized to let the rule as a whole match.
func (s *FulfilledPartialKindState) IsSatisfied(rule *MultiSourceRule, exceptLeg int) bool {
	mask := s.fulfilled[rule.Code]
	for i := range rule.Legs {
		if i == exceptLeg {
			continue
		}
		if mask&(uint64(1)<<uint(i)) == 0 {
			return false
		}
	}
	return true
}

// ExploitabilityRule completes in two steps: a source reaching a sink
// only records the combination (the source applied as a transform over
// the sink); the issue fires once that combined sink meets the method's
// exploitability port, either immediately (the port already carries
// taint) or after the combination propagates outward through the
// model's call-effect-exploitability sinks.
type ExploitabilityRule struct {
	Code    int
	Name    string
	Sources []*kind.Kind
	Sinks   []*kind.Kind
	Message string
}

func (r *ExploitabilityRule) RuleName() string { return r.Name }
func (r *ExploitabilityRule) RuleCode() int    { return r.Code }

// Set is the full configured rule set consulted by the matcher.
type Set struct {
	Simple         []*Rule
	Multi          []*MultiSourceRule
	Exploitability []*ExploitabilityRule
}

// IntervalsOverlap reports whether any pair drawn from srcIntervals and
// sinkIntervals overlaps, the class-interval refinement a flow match
// must satisfy before a rule is allowed to fire: a source frame fixed to
// one concrete receiver type cannot reach a sink fixed to a different,
// disjoint one.
func IntervalsOverlap(srcIntervals, sinkIntervals []frame.Interval) bool {
	for _, si := range srcIntervals {
		for _, ki := range sinkIntervals {
			if !si.Intersect(ki).Empty() {
				return true
			}
		}
	}
	return false
}

// Match runs every configured simple rule over the given source and
// sink kind, returning the rules that fire. srcIntervals/sinkIntervals
// carry every frame's Interval observed for source/sink respectively; a
// rule only fires if some pair of them overlaps.
func (s Set) Match(source, sink *kind.Kind, srcIntervals, sinkIntervals []frame.Interval) []*Rule {
	if !IntervalsOverlap(srcIntervals, sinkIntervals) {
		return nil
	}
	var out []*Rule
	for _, r := range s.Simple {
		if r.MatchesSource(source) && r.MatchesSink(sink) {
			out = append(out, r)
		}
	}
	return out
}

// MatchMulti checks every configured multi-source rule listening on
// sink (a Partial kind): if source is one of the source kinds for the
// leg the sink's label names, that leg is marked fulfilled in state,
// folding in the combined feature set observed on this leg. A rule
// fires (and is included in the returned slice) the moment its last
// unfulfilled leg is satisfied, scoped by the caller to one call site
// via a fresh state per call. srcIntervals/sinkIntervals gate the
// match the same way Match does.
func (s Set) MatchMulti(source, sink *kind.Kind, legFeatures feature.MayAlways, state *FulfilledPartialKindState, srcIntervals, sinkIntervals []frame.Interval) []*MultiSourceRule {
	if !IntervalsOverlap(srcIntervals, sinkIntervals) {
		return nil
	}
	var out []*MultiSourceRule
	for _, r := range s.Multi {
		if !r.MatchesSink(sink) {
			continue
		}
		i := r.LegIndex(sink.Label())
		if i < 0 || !containsKind(r.Legs[i].Sources, source) {
			continue
		}
		state.Fulfill(r, i, legFeatures)
		if state.IsSatisfied(r, i) {
			out = append(out, r)
		}
	}
	return out
}

// MatchFulfilledExploitability returns every exploitability rule a
// source-as-transform sink kind fulfills outright: the sink's base kind
// is one of the rule's sinks and the embedded source-as-transform
// marker names one of the rule's sources. The source and sink here are
// carried by the same kind, so there is no separate interval to
// intersect against.
func (s Set) MatchFulfilledExploitability(sinkKind *kind.Kind) []*ExploitabilityRule {
	if sinkKind.Tag() != kind.TransformTag || !sinkKind.HasSourceAsTransform() {
		return nil
	}
	var out []*ExploitabilityRule
	for _, r := range s.Exploitability {
		if containsKind(r.Sinks, sinkKind.Base()) && markerMatchesAny(sinkKind, r.Sources) {
			out = append(out, r)
		}
	}
	return out
}

func markerMatchesAny(k *kind.Kind, sources []*kind.Kind) bool {
	all := append(append([]kind.Transform(nil), k.GlobalTransforms()...), k.LocalTransforms()...)
	for _, t := range all {
		if !t.SourceAsTransform {
			continue
		}
		for _, src := range sources {
			if t.Name == src.String() {
				return true
			}
		}
	}
	return false
}

// PartialExploitability returns every exploitability rule for which the
// given (source, sink) pair fires the first leg: the source must still
// be combined with the sink (as a source-as-transform) and reach the
// method's exploitability port before the rule completes.
func (s Set) PartialExploitability(source, sink *kind.Kind) []*ExploitabilityRule {
	var out []*ExploitabilityRule
	for _, r := range s.Exploitability {
		if containsKind(r.Sources, source) && containsKind(r.Sinks, sink) {
			out = append(out, r)
		}
	}
	return out
}

// SourceAsTransformSink builds the combined sink kind for an observed
// exploitability pair: the source kind applied as a transform over the
// sink kind, marked source-as-transform so a later fulfillment check
// can recover it.
func SourceAsTransformSink(source, sink *kind.Kind) *kind.Kind {
	return kind.NewTransform(sink, nil, []kind.Transform{{Name: source.String(), SourceAsTransform: true}})
}

// IssueMessage renders a human-readable Issue message for a fired rule.
func IssueMessage(ruleName string, sourceKind, sinkKind *kind.Kind) string {
	return fmt.Sprintf("[%s] %s flows to %s", ruleName, sourceKind, sinkKind)
}
