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

// Package domain implements Taint (a kind-partitioned set of Frames,
// forming a join-semilattice), TaintTree (an AbstractTree of Taint), and
// Environment (a map from abstract memory locations to TaintTree),
// which together are the state the forward transfer function threads
// through a method.
package domain

import (
	"sort"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/invariant"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/position"
	"github.com/go-taint/tcta/internal/pkg/taint/tree"
)

// bucketKey identifies the (CallKind, CalleePort, Callee, CallPosition,
// Interval) bucket a frame belongs to within its kind partition; frames
// in the same bucket are joined together rather than kept as separate
// elements, bounding the number of frames per kind. Interval is part of
// the key so two frames narrowed to disjoint class intervals survive
// side by side instead of force-merging into a widened union. Distance
// is deliberately NOT part of the key: frames differing only in
// distance must join to the minimum distance, so two frames that would
// otherwise land in the same bucket at different distances are merged,
// not kept side by side. Artificial-source frames key on the port's
// root only: their paths widen to the common prefix under Join.
type bucketKey struct {
	callKind     frame.CallKind
	calleePort   string
	callee       string
	callPosition position.Position
	interval     frame.Interval
}

func keyOf(f frame.Frame) bucketKey {
	port := f.CalleePort.String()
	if f.Kind.Tag() == kind.Artificial {
		port = f.CalleePort.Root.String()
	}
	return bucketKey{
		callKind:     f.CallKind,
		calleePort:   port,
		callee:       f.Callee,
		callPosition: f.CallPosition,
		interval:     f.Interval,
	}
}

// Taint is a set of Frames, partitioned by Kind and then by bucket,
// forming a join-semilattice: Join merges frame buckets pointwise,
// never discarding a kind or bucket that is only present on one side.
type Taint struct {
	// buckets maps kind -> bucket key -> the single joined frame for
	// that bucket. Frames within a bucket are combined via Frame.Join.
	buckets map[*kind.Kind]map[bucketKey]frame.Frame
}

// Bottom is the empty Taint: no frames at all.
var Bottom = Taint{}

// IsBottom reports whether t carries no frames.
func (t Taint) IsBottom() bool {
	return len(t.buckets) == 0
}

// FromFrame builds a single-frame Taint. A frame without a kind is a
// construction bug in the caller, never a representable fact.
func FromFrame(f frame.Frame) Taint {
	invariant.Assert(f.Kind != nil, "a frame added to a Taint must carry a kind")
	return Taint{buckets: map[*kind.Kind]map[bucketKey]frame.Frame{
		f.Kind: {keyOf(f): f},
	}}
}

// Add returns a copy of t with f folded in, joined into whatever frame
// already occupies f's bucket.
func (t Taint) Add(f frame.Frame) Taint {
	return t.Join(FromFrame(f))
}

// Join computes the least upper bound of t and other.
func (t Taint) Join(other Taint) Taint {
	if len(t.buckets) == 0 {
		return other
	}
	if len(other.buckets) == 0 {
		return t
	}
	out := make(map[*kind.Kind]map[bucketKey]frame.Frame, len(t.buckets))
	for k, bs := range t.buckets {
		cp := make(map[bucketKey]frame.Frame, len(bs))
		for bk, f := range bs {
			cp[bk] = f
		}
		out[k] = cp
	}
	for k, bs := range other.buckets {
		existing, ok := out[k]
		if !ok {
			cp := make(map[bucketKey]frame.Frame, len(bs))
			for bk, f := range bs {
				cp[bk] = f
			}
			out[k] = cp
			continue
		}
		for bk, f := range bs {
			if cur, ok := existing[bk]; ok {
				existing[bk] = cur.Join(f)
			} else {
				existing[bk] = f
			}
		}
	}
	return Taint{buckets: out}
}

// Leq reports whether every frame in t is dominated by some frame of
// the same kind and bucket in other.
func (t Taint) Leq(other Taint) bool {
	for k, bs := range t.buckets {
		obs, ok := other.buckets[k]
		if !ok {
			return false
		}
		for bk, f := range bs {
			of, ok := obs[bk]
			if !ok || !f.Leq(of) {
				return false
			}
		}
	}
	return true
}

// Kinds returns the kinds present in t, in a stable deterministic order
// so iteration over a Taint's kinds never depends on map order.
func (t Taint) Kinds() []*kind.Kind {
	out := make([]*kind.Kind, 0, len(t.buckets))
	for k := range t.buckets {
		out = append(out, k)
	}
	kind.SortKinds(out)
	return out
}

// Frames returns every frame of the given kind, across all buckets, in
// no particular order; callers that need determinism should sort the
// result themselves (frames do not carry a stable id of their own).
func (t Taint) Frames(k *kind.Kind) []frame.Frame {
	bs, ok := t.buckets[k]
	if !ok {
		return nil
	}
	out := make([]frame.Frame, 0, len(bs))
	for _, f := range bs {
		out = append(out, f)
	}
	return out
}

// AllFrames returns every frame in t, kinds visited in stable order.
func (t Taint) AllFrames() []frame.Frame {
	var out []frame.Frame
	for _, k := range t.Kinds() {
		out = append(out, t.Frames(k)...)
	}
	return out
}

// LeafCount approximates the leaf-limit broadening heuristic at the
// Taint level: the number of distinct (kind, bucket) frames.
func (t Taint) LeafCount() int {
	n := 0
	for _, bs := range t.buckets {
		n += len(bs)
	}
	return n
}

// MapFrames returns a copy of t with f applied to every frame; used by
// call-site instantiation to transform every frame uniformly (e.g.
// bumping Distance, intersecting Interval).
func (t Taint) MapFrames(f func(frame.Frame) (frame.Frame, bool)) Taint {
	out := Bottom
	for _, fr := range t.AllFrames() {
		nf, keep := f(fr)
		if keep {
			out = out.Add(nf)
		}
	}
	return out
}

// TransformKind rewrites every frame's kind through kindMap, which may
// return zero or more replacement kinds: zero drops the frame, several
// duplicate it. Each replacement picks up the features featuresFor
// returns for it; a frame's user features carry onto every replacement.
// Two old kinds mapping to the same new kind join (features and origins
// merge), since the result is re-bucketed through Add.
func (t Taint) TransformKind(kindMap func(*kind.Kind) []*kind.Kind, featuresFor func(*kind.Kind) feature.MayAlways) Taint {
	out := Bottom
	for _, fr := range t.AllFrames() {
		for _, nk := range kindMap(fr.Kind) {
			nf := fr
			nf.Kind = nk
			if featuresFor != nil {
				add := featuresFor(nk)
				nf.Features = feature.MayAlways{
					May:    nf.Features.May.Union(add.May),
					Always: nf.Features.Always.Union(add.Always),
				}
			}
			out = out.Add(nf)
		}
	}
	return out
}

// IntersectIntervalsWith drops every frame of t whose interval does not
// intersect the interval of any frame of the same kind in other. A
// frame whose interval was never narrowed from the identity (Preserved
// == false) is kept unconditionally: only two concretely narrowed,
// disjoint intervals prove the frames cannot coexist.
func (t Taint) IntersectIntervalsWith(other Taint) Taint {
	return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		if !f.Interval.Preserved {
			return f, true
		}
		for _, of := range other.Frames(f.Kind) {
			if !of.Interval.Preserved || !f.Interval.Intersect(of.Interval).Empty() {
				return f, true
			}
		}
		return f, false
	})
}

// AttachPosition rewrites every frame's call position to p, used when a
// taint fact computed against one program point is re-homed to the call
// site it is reported at.
func (t Taint) AttachPosition(p position.Position) Taint {
	return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		f.CallPosition = p
		f.Positions = f.Positions.Add(p)
		return f, true
	})
}

// TaintTree is an AbstractTree[Taint]: taint facts keyed by access path
// within a single memory location (e.g. within one parameter's value).
type TaintTree = tree.Tree[Taint]

// EmptyTree is the bottom TaintTree.
func EmptyTree() TaintTree { return tree.Empty[Taint]() }

// LeafTree builds a TaintTree holding t at the root path only.
func LeafTree(t Taint) TaintTree { return tree.Leaf[Taint](t) }

// FilterKinds rebuilds tr with every frame whose kind fails keep
// removed, preserving the tree's structure otherwise. Used to apply a
// sanitizer at a call site: the frames it removes drop out of both
// sink matching and any further propagation of the sanitized value.
func FilterKinds(tr TaintTree, keep func(*kind.Kind) bool) TaintTree {
	out := EmptyTree()
	for _, p := range tr.Paths() {
		filtered := tr.Get(p).MapFrames(func(f frame.Frame) (frame.Frame, bool) {
			return f, keep(f.Kind)
		})
		if filtered.IsBottom() {
			continue
		}
		out = out.Write(p, filtered)
	}
	return out
}

// Bounds names the per-category resource cap a TaintTree written into a
// Model must respect: a tree taller than Height or with more than Leaves
// distinct frames is degraded, tagged with Broadening so the loss of
// precision is visible on every frame it touches.
type Bounds struct {
	Height     int
	Leaves     int
	Broadening *feature.Feature
}

// GenerationBounds caps a method's own Generations (sources it
// introduces directly, e.g. via a model generator).
var GenerationBounds = Bounds{Height: 4, Leaves: 32, Broadening: feature.BroadeningLeafLimit}

// ParameterSourceBounds caps the field-precise source tree attached to a
// single parameter.
var ParameterSourceBounds = Bounds{Height: 4, Leaves: 32, Broadening: feature.BroadeningLeafLimit}

// PropagationBounds caps the Propagation-kind facts recorded per input
// access path.
var PropagationBounds = Bounds{Height: 3, Leaves: 16, Broadening: feature.BroadeningLeafLimit}

// CallEffectBounds caps the CallEffectSources/CallEffectSinks trees
// recorded at the call-effect roots.
var CallEffectBounds = Bounds{Height: 3, Leaves: 16, Broadening: feature.BroadeningLeafLimit}

func addBroadening(t Taint, f *feature.Feature) Taint {
	return t.MapFrames(func(fr frame.Frame) (frame.Frame, bool) {
		fr.Features = fr.Features.AddAlways(f)
		return fr, true
	})
}

// Bound applies b's height and leaf caps to tr in sequence, tagging
// whatever gets collapsed with b.Broadening so the degradation is
// visible on every frame it folds together.
func Bound(tr TaintTree, b Bounds) TaintTree {
	tag := func(t Taint) Taint { return addBroadening(t, b.Broadening) }
	tr = tr.LimitHeight(b.Height, tag)
	tr = tr.LimitLeaves(b.Leaves, tag)
	return tr
}

// CollapseForSinkMatch folds tr into a single Taint for matching against
// sink rules, tagging the result with the issue-broadening feature: a
// sink match always discards path structure, so any precision lost in
// doing so is always worth flagging, unlike the conditional height/leaf
// caps Bound applies.
func CollapseForSinkMatch(tr TaintTree) Taint {
	return addBroadening(tr.Collapse(), feature.BroadeningIssue)
}

// ReadForSinkMatch reads the taint visible at path for sink matching,
// tagging the result with the issue-broadening feature when structure
// below path was folded into the match.
func ReadForSinkMatch(tr TaintTree, path access.Path) Taint {
	out := tr.Read(path)
	if tr.HasStructureBelow(path) {
		out = addBroadening(out, feature.BroadeningIssue)
	}
	return out
}

// MemoryLocation is an opaque, comparable handle identifying one
// abstract memory cell. The driver binds this to the canonical value of
// an alias.Partitions partition; the core package never inspects it
// beyond using it as a map key.
type MemoryLocation interface{}

// Environment maps memory locations to their TaintTree, the full
// abstract state threaded through the forward transfer function for one
// method.
type Environment struct {
	trees map[MemoryLocation]TaintTree
}

// NewEnvironment returns the bottom environment: no locations known.
func NewEnvironment() Environment {
	return Environment{trees: map[MemoryLocation]TaintTree{}}
}

// Get returns the TaintTree for loc, or the empty tree if loc is unknown.
func (e Environment) Get(loc MemoryLocation) TaintTree {
	if t, ok := e.trees[loc]; ok {
		return t
	}
	return EmptyTree()
}

// Write returns a copy of e with loc's tree joined with t.
func (e Environment) Write(loc MemoryLocation, t TaintTree) Environment {
	out := e.clone()
	out.trees[loc] = out.Get(loc).Join(t)
	return out
}

// Assign returns a copy of e with loc's tree replaced (strong update)
// by t, discarding whatever was previously known about loc.
func (e Environment) Assign(loc MemoryLocation, t TaintTree) Environment {
	out := e.clone()
	out.trees[loc] = t
	return out
}

func (e Environment) clone() Environment {
	out := make(map[MemoryLocation]TaintTree, len(e.trees))
	for k, v := range e.trees {
		out[k] = v
	}
	return Environment{trees: out}
}

// Join computes the least upper bound of e and other across every
// memory location known to either.
func (e Environment) Join(other Environment) Environment {
	out := e.clone()
	for loc, t := range other.trees {
		if cur, ok := out.trees[loc]; ok {
			out.trees[loc] = cur.Join(t)
		} else {
			out.trees[loc] = t
		}
	}
	return out
}

// Leq reports whether every location's tree in e is dominated by the
// corresponding tree in other.
func (e Environment) Leq(other Environment) bool {
	for loc, t := range e.trees {
		if !t.Leq(other.Get(loc)) {
			return false
		}
	}
	return true
}

// Locations returns every memory location with non-bottom information,
// in a stable order determined by an external key function (locations
// themselves are not comparable for ordering, only for equality).
func (e Environment) Locations(key func(MemoryLocation) string) []MemoryLocation {
	out := make([]MemoryLocation, 0, len(e.trees))
	for loc, t := range e.trees {
		if !t.IsEmpty() {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
