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

// Package frame implements Frame: the immutable unit a Taint is built
// from, combining a Kind with the provenance needed to later explain and
// instantiate it at a call site.
package frame

import (
	"fmt"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/position"
)

// CallKind distinguishes how a frame reached its current method: a frame
// can be declared directly on this method (Origin/Declaration), carried
// in from a callee (CallSite), or produced by an artificial producer.
type CallKind int

const (
	// Declaration marks a frame introduced directly at this method
	// (e.g. a parameter_source or generation listed on its own Model).
	Declaration CallKind = iota
	// OriginCall marks the single frame at the true origin of a source or
	// sink, before any call-site instantiation has been applied.
	OriginCall
	// CallSite marks a frame carried in from propagating a callee's
	// Model at a specific call instruction.
	CallSite
	// CallEffectCallSite is CallSite restricted to the CallEffect root:
	// the frame represents an effect observed through a callback or
	// side channel rather than the ordinary argument/return flow.
	CallEffectCallSite
)

func (c CallKind) String() string {
	switch c {
	case Declaration:
		return "declaration"
	case OriginCall:
		return "origin"
	case CallSite:
		return "call-site"
	case CallEffectCallSite:
		return "call-effect-call-site"
	default:
		return "<invalid call-kind>"
	}
}

// IsCallSite reports whether this call-kind denotes a frame carried in
// through at least one call-site instantiation.
func (c CallKind) IsCallSite() bool {
	return c == CallSite || c == CallEffectCallSite
}

// Distance is the number of call-site instantiations a frame has gone
// through since its origin; exceeding MaxDistance is treated as a
// broadening event.
type Distance int

// MaxDistance bounds how far a frame can be instantiated from its
// origin before being dropped, one of the analysis's bounded-resource
// cutoffs.
const MaxDistance Distance = 10

// CalleePort names the access path on the callee's side that a frame's
// provenance is attached to -- e.g. "Argument(1)" for a frame that is a
// parameter_source declared on argument 1 of the callee.
type CalleePort = access.AccessPath

// CanonicalName is a user-supplied, rule-defined label attached to a
// frame at its origin and carried through every later instantiation
// unchanged, used to group frames for multi-source rules and for
// human-readable issue reporting.
type CanonicalName struct {
	Template string
	Resolved string // empty until a via-value-of/via-type-of substitution has been performed
}

// Frame is one immutable taint fact: a Kind together with everything
// needed to explain where it came from and how to instantiate it at the
// next call site outward.
type Frame struct {
	Kind *kind.Kind

	CallKind   CallKind
	CalleePort CalleePort
	Distance   Distance

	// Callee names the immediate callee this frame was carried in
	// through; empty for declaration and origin frames. Only the
	// immediate callee is stored: the full trace is reconstructed at
	// reporting time by walking the registry method by method, so the
	// domain never holds a cyclic trace graph.
	Callee string

	// CallPosition is the call site within the current method this
	// frame was instantiated at, for issue reporting.
	CallPosition position.Position

	Interval Interval

	Features feature.MayAlways
	UserFeatures feature.Set

	Positions position.Set

	// ViaTypeOf and ViaValueOf name argument ports whose static type /
	// constant value should be rendered into a feature when this frame
	// is instantiated at a call site; both are consumed (emptied) by the
	// instantiation that resolves them.
	ViaTypeOf  []access.AccessPath
	ViaValueOf []access.AccessPath

	CanonicalNames []CanonicalName

	// OutputPaths is populated only for propagation frames (Kind.Tag()
	// == kind.Propagation): the collapse-depth-limited tree of output
	// access paths the propagation writes to, keyed by input access
	// path at the call site. A nil map means "identity": the whole
	// input is propagated to the whole output, uncollapsed.
	OutputPaths map[string]int // access-path string -> collapse depth (-1 == uncollapsed)

	Origins []Origin
}

// Origin records one concrete program point a frame's taint ultimately
// traces back to, carried unchanged through every later instantiation
// so an Issue can be explained end to end.
type Origin struct {
	Method   string
	Port     access.AccessPath
	Position position.Position
}

// Interval restricts a frame to the receiver class intervals it applies
// to: the zero-value AnyInterval means "applies regardless of receiver
// type", matching the common case for free functions and for any call
// whose concrete receiver type the driver could not determine.
type Interval struct {
	Lower, Upper int
	// Preserved is true once this frame's interval has actually been
	// narrowed from AnyInterval by some call-site's concrete receiver
	// type, distinguishing "still the identity interval" from "real but
	// happens to still be wide" for debug rendering.
	Preserved bool
}

// AnyInterval is the identity interval: matches every receiver type.
var AnyInterval = Interval{Lower: 0, Upper: -1}

// Intersect narrows i to the overlap with o; if the two do not overlap,
// the result's Upper < Lower, signaling "this frame cannot apply here"
// to the caller (propagate must drop such frames).
func (i Interval) Intersect(o Interval) Interval {
	lower := i.Lower
	if o.Lower > lower {
		lower = o.Lower
	}
	upper := i.Upper
	if i.Upper < 0 {
		upper = o.Upper
	} else if o.Upper >= 0 && o.Upper < upper {
		upper = o.Upper
	}
	return Interval{Lower: lower, Upper: upper}
}

// Empty reports whether the interval matches no class at all.
func (i Interval) Empty() bool {
	return i.Upper >= 0 && i.Upper < i.Lower
}

// New builds a bare origin frame: no callee port, distance zero,
// declaration call-kind, identity interval.
func New(k *kind.Kind) Frame {
	return Frame{
		Kind:     k,
		CallKind: Declaration,
		Interval: AnyInterval,
	}
}

func (f Frame) String() string {
	if f.Interval.Preserved {
		return fmt.Sprintf("Frame{%s, %s, d=%d, port=%s, interval=[%d,%d]}", f.Kind, f.CallKind, f.Distance, f.CalleePort, f.Interval.Lower, f.Interval.Upper)
	}
	return fmt.Sprintf("Frame{%s, %s, d=%d, port=%s}", f.Kind, f.CallKind, f.Distance, f.CalleePort)
}

// Leq implements the frame partial order: same kind is required (callers
// compare frames bucketed by kind already); the ordering is then
// CallKind-equal, CalleePort-equal, feature/position subsets, and
// interval containment; canonical names are not compared. Artificial-source frames compare
// callee-ports by prefix instead: a frame with a deeper callee-port is
// <= a frame rooted at a prefix of it, since the shallower port covers
// everything below it. Distance orders the opposite way from the other
// fields: adding frames that differ only in distance keeps the minimum
// distance, so a larger distance is the more conservative ("lesser")
// fact.
func (f Frame) Leq(o Frame) bool {
	if f.Kind != o.Kind || f.CallKind != o.CallKind || f.Distance < o.Distance {
		return false
	}
	if f.Callee != o.Callee || f.CallPosition != o.CallPosition {
		return false
	}
	if f.Kind.Tag() == kind.Artificial {
		if f.CalleePort.Root != o.CalleePort.Root || !f.CalleePort.Path.HasPrefix(o.CalleePort.Path) {
			return false
		}
	} else if !f.CalleePort.Equal(o.CalleePort) {
		return false
	}
	if !f.Features.Leq(o.Features) {
		return false
	}
	if !f.UserFeatures.Leq(o.UserFeatures) {
		return false
	}
	if !f.Positions.Leq(o.Positions) {
		return false
	}
	if f.Interval.Lower < o.Interval.Lower {
		return false
	}
	if o.Interval.Upper >= 0 && (f.Interval.Upper < 0 || f.Interval.Upper > o.Interval.Upper) {
		return false
	}
	return true
}

// Join merges two frames that share the same (Kind, CallKind,
// CalleePort) bucket, widening their features/positions and unioning
// their canonical names and origins. Artificial-source frames widen the
// callee-port to the common prefix of the two instead. Distance is
// taken as the min of the two: adding frames that differ only in
// distance keeps the minimum distance. Callers are responsible for only
// joining frames within the same bucket; Join does not check.
func (f Frame) Join(o Frame) Frame {
	out := f
	if o.Distance < out.Distance {
		out.Distance = o.Distance
	}
	if f.Kind.Tag() == kind.Artificial {
		out.CalleePort = access.AccessPath{
			Root: f.CalleePort.Root,
			Path: access.CommonPrefix(f.CalleePort.Path, o.CalleePort.Path),
		}
	}
	out.Features = f.Features.Join(o.Features)
	out.UserFeatures = f.UserFeatures.Union(o.UserFeatures)
	out.Positions = f.Positions.Join(o.Positions)
	out.CanonicalNames = unionNames(f.CanonicalNames, o.CanonicalNames)
	out.Origins = unionOrigins(f.Origins, o.Origins)
	out.ViaTypeOf = unionPaths(f.ViaTypeOf, o.ViaTypeOf)
	out.ViaValueOf = unionPaths(f.ViaValueOf, o.ViaValueOf)
	if o.Interval.Lower < out.Interval.Lower {
		out.Interval.Lower = o.Interval.Lower
	}
	if out.Interval.Upper >= 0 && (o.Interval.Upper < 0 || o.Interval.Upper > out.Interval.Upper) {
		out.Interval.Upper = o.Interval.Upper
	}
	return out
}

func unionNames(a, b []CanonicalName) []CanonicalName {
	if len(b) == 0 {
		return a
	}
	out := append([]CanonicalName(nil), a...)
	for _, n := range b {
		found := false
		for _, m := range a {
			if m == n {
				found = true
				break
			}
		}
		if !found {
			out = append(out, n)
		}
	}
	return out
}

func unionPaths(a, b []access.AccessPath) []access.AccessPath {
	if len(b) == 0 {
		return a
	}
	out := append([]access.AccessPath(nil), a...)
	for _, p := range b {
		found := false
		for _, q := range a {
			if q.Equal(p) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, p)
		}
	}
	return out
}

func unionOrigins(a, b []Origin) []Origin {
	if len(b) == 0 {
		return a
	}
	out := append([]Origin(nil), a...)
	for _, n := range b {
		found := false
		for _, m := range a {
			if m.Method == n.Method && m.Port.Equal(n.Port) && m.Position == n.Position {
				found = true
				break
			}
		}
		if !found {
			out = append(out, n)
		}
	}
	return out
}

// IsBottom reports whether f carries no kind, i.e. is the zero Frame.
func (f Frame) IsBottom() bool {
	return f.Kind == nil
}
