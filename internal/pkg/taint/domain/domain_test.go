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

package domain

import (
	"testing"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/position"
)

func TestTaintAddJoinsSameBucket(t *testing.T) {
	k := kind.NewNamed("domain-test-source")
	f1 := frame.New(k)
	f1.Distance = 3

	f2 := frame.New(k)
	f2.Distance = 1

	tt := Bottom.Add(f1).Add(f2)
	frames := tt.Frames(k)
	if len(frames) != 1 {
		t.Fatalf("expected f1 and f2 to join into a single bucket, got %d frames", len(frames))
	}
	if frames[0].Distance != 1 {
		t.Errorf("joined frame distance = %d, want the minimum (1)", frames[0].Distance)
	}
}

func TestTaintKeepsDisjointIntervalFramesSeparate(t *testing.T) {
	k := kind.NewNamed("domain-test-intervals")

	f1 := frame.New(k)
	f1.Interval = frame.Interval{Lower: 0, Upper: 1, Preserved: true}
	f2 := frame.New(k)
	f2.Interval = frame.Interval{Lower: 5, Upper: 6, Preserved: true}

	tt := Bottom.Add(f1).Add(f2)
	frames := tt.Frames(k)
	if len(frames) != 2 {
		t.Fatalf("frames narrowed to disjoint intervals must not merge, got %d frames", len(frames))
	}
	for _, f := range frames {
		if f.Interval.Upper-f.Interval.Lower != 1 {
			t.Errorf("a surviving frame's interval was widened: %+v", f.Interval)
		}
	}
}

func TestArtificialFramesWidenPortToCommonPrefix(t *testing.T) {
	k := kind.NewArtificial("Argument(this)")

	f1 := frame.New(k)
	f1.CalleePort = access.Make(access.MakeArgument(0), access.MakeField("a"), access.MakeField("b"))
	f2 := frame.New(k)
	f2.CalleePort = access.Make(access.MakeArgument(0), access.MakeField("a"), access.MakeField("c"))

	tt := Bottom.Add(f1).Add(f2)
	frames := tt.Frames(k)
	if len(frames) != 1 {
		t.Fatalf("artificial frames on the same root should join, got %d frames", len(frames))
	}
	want := access.Make(access.MakeArgument(0), access.MakeField("a"))
	if !frames[0].CalleePort.Equal(want) {
		t.Errorf("joined artificial port = %s, want the common prefix %s", frames[0].CalleePort, want)
	}
}

func TestTaintLeqAndBottom(t *testing.T) {
	k := kind.NewNamed("domain-test-leq")
	f := frame.New(k)
	tt := FromFrame(f)

	if !Bottom.Leq(tt) {
		t.Error("Bottom should be <= any Taint")
	}
	if !tt.Leq(tt) {
		t.Error("Leq should be reflexive")
	}
	if tt.Leq(Bottom) {
		t.Error("a non-bottom Taint should not be <= Bottom")
	}
}

func TestTaintKindsSortedDeterministically(t *testing.T) {
	a := kind.NewNamed("domain-sort-a")
	b := kind.NewNamed("domain-sort-b")
	c := kind.NewNamed("domain-sort-c")

	tt := Bottom.Add(frame.New(c)).Add(frame.New(a)).Add(frame.New(b))
	ks1 := tt.Kinds()

	tt2 := Bottom.Add(frame.New(b)).Add(frame.New(c)).Add(frame.New(a))
	ks2 := tt2.Kinds()

	if len(ks1) != 3 || len(ks2) != 3 {
		t.Fatalf("expected 3 kinds, got %d and %d", len(ks1), len(ks2))
	}
	for i := range ks1 {
		if ks1[i] != ks2[i] {
			t.Errorf("Kinds() order is not deterministic at index %d", i)
		}
	}
}

func TestTaintTreeWriteReadAndEnvironment(t *testing.T) {
	k := kind.NewNamed("domain-tree-test")
	tt := FromFrame(frame.New(k))

	tree := EmptyTree().Write(access.Path{access.MakeField("f")}, tt)
	got := tree.Read(access.Path{access.MakeField("f")})
	if got.IsBottom() {
		t.Fatal("expected non-bottom taint at the written path")
	}

	env := NewEnvironment()
	loc := "loc1"
	env = env.Write(loc, tree)

	readBack := env.Get(loc).Read(access.Path{access.MakeField("f")})
	if readBack.IsBottom() {
		t.Error("Environment.Get/Write round-trip lost the written taint")
	}

	missing := env.Get("unknown-loc")
	if !missing.IsEmpty() {
		t.Error("an unknown memory location should read back as the empty tree")
	}
}

func TestEnvironmentAssignIsStrong(t *testing.T) {
	k1 := kind.NewNamed("domain-assign-1")
	k2 := kind.NewNamed("domain-assign-2")

	env := NewEnvironment()
	loc := "loc"
	env = env.Write(loc, LeafTree(FromFrame(frame.New(k1))))
	env = env.Assign(loc, LeafTree(FromFrame(frame.New(k2))))

	tt := env.Get(loc).Read(nil)
	if len(tt.Frames(k1)) != 0 {
		t.Error("Assign should discard what a prior Write recorded at the location")
	}
	if len(tt.Frames(k2)) != 1 {
		t.Error("Assign should install the new taint")
	}
}

func TestEnvironmentJoin(t *testing.T) {
	k := kind.NewNamed("domain-env-join")
	e1 := NewEnvironment().Write("loc", LeafTree(FromFrame(frame.New(k))))
	e2 := NewEnvironment().Write("other", LeafTree(FromFrame(frame.New(k))))

	joined := e1.Join(e2)
	if joined.Get("loc").IsEmpty() || joined.Get("other").IsEmpty() {
		t.Error("Join should carry every location from both environments")
	}
}

func TestMapFramesDropsFiltered(t *testing.T) {
	keep := kind.NewNamed("domain-map-keep")
	drop := kind.NewNamed("domain-map-drop")

	tt := Bottom.Add(frame.New(keep)).Add(frame.New(drop))
	mapped := tt.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		if f.Kind == drop {
			return frame.Frame{}, false
		}
		return f, true
	})

	if len(mapped.Frames(drop)) != 0 {
		t.Error("MapFrames should drop frames the mapping function rejects")
	}
	if len(mapped.Frames(keep)) != 1 {
		t.Error("MapFrames should keep frames the mapping function accepts")
	}
}

func TestTransformKindCarriesUserFeaturesOntoReplacements(t *testing.T) {
	old := kind.NewNamed("domain-transform-old")
	newA := kind.NewNamed("domain-transform-new-a")
	newB := kind.NewNamed("domain-transform-new-b")
	userFeat := feature.Intern("domain-transform-user")

	f := frame.New(old)
	f.UserFeatures = feature.NewSet(userFeat)

	out := FromFrame(f).TransformKind(
		func(k *kind.Kind) []*kind.Kind { return []*kind.Kind{newA, newB} },
		func(k *kind.Kind) feature.MayAlways {
			if k == newA {
				return feature.MayAlways{}.AddAlways(feature.Intern("only-a"))
			}
			return feature.MayAlways{}
		},
	)

	if len(out.Frames(old)) != 0 {
		t.Error("the old kind should be gone after TransformKind")
	}
	for _, k := range []*kind.Kind{newA, newB} {
		frames := out.Frames(k)
		if len(frames) != 1 {
			t.Fatalf("expected one frame of %v, got %d", k, len(frames))
		}
		if !frames[0].UserFeatures.Contains(userFeat) {
			t.Errorf("user features must carry onto every replacement kind, missing on %v", k)
		}
	}
	if !out.Frames(newA)[0].Features.Always.Contains(feature.Intern("only-a")) {
		t.Error("per-kind features should be added to the matching replacement")
	}
	if out.Frames(newB)[0].Features.Always.Contains(feature.Intern("only-a")) {
		t.Error("per-kind features must not leak onto other replacements")
	}
}

func TestTransformKindDropsFrameWithNoReplacement(t *testing.T) {
	k := kind.NewNamed("domain-transform-dropped")
	out := FromFrame(frame.New(k)).TransformKind(
		func(*kind.Kind) []*kind.Kind { return nil },
		nil,
	)
	if !out.IsBottom() {
		t.Error("a frame whose kind maps to no replacement kinds should be dropped")
	}
}

func TestIntersectIntervalsWithSelfIsIdentity(t *testing.T) {
	k := kind.NewNamed("domain-interval-self")
	f := frame.New(k)
	f.Interval = frame.Interval{Lower: 2, Upper: 5, Preserved: true}
	tt := FromFrame(f)

	got := tt.IntersectIntervalsWith(tt)
	if !got.Leq(tt) || !tt.Leq(got) {
		t.Error("intersecting a Taint's intervals with itself should be the identity")
	}
}

func TestIntersectIntervalsKeepsUnpreservedFrames(t *testing.T) {
	k := kind.NewNamed("domain-interval-unpreserved")
	f := frame.New(k) // AnyInterval, Preserved == false

	other := frame.New(k)
	other.Interval = frame.Interval{Lower: 100, Upper: 200, Preserved: true}

	got := FromFrame(f).IntersectIntervalsWith(FromFrame(other))
	if got.IsBottom() {
		t.Error("a frame whose interval was never narrowed must survive interval intersection")
	}
}

func TestIntersectIntervalsDropsDisjointPreserved(t *testing.T) {
	k := kind.NewNamed("domain-interval-disjoint")
	f := frame.New(k)
	f.Interval = frame.Interval{Lower: 0, Upper: 1, Preserved: true}

	other := frame.New(k)
	other.Interval = frame.Interval{Lower: 10, Upper: 20, Preserved: true}

	got := FromFrame(f).IntersectIntervalsWith(FromFrame(other))
	if !got.IsBottom() {
		t.Error("two concretely narrowed, disjoint intervals cannot coexist")
	}
}

func TestAttachPositionRewritesFrames(t *testing.T) {
	k := kind.NewNamed("domain-attach-pos")
	p := position.Position{Filename: "f.go", Line: 12, Column: 3}

	got := FromFrame(frame.New(k)).AttachPosition(p)
	frames := got.Frames(k)
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	if frames[0].CallPosition != p {
		t.Errorf("CallPosition = %v, want %v", frames[0].CallPosition, p)
	}
}

func TestReadForSinkMatchTagsFoldedStructure(t *testing.T) {
	k := kind.NewNamed("domain-sinkmatch")
	deep := access.Path{access.MakeField("a"), access.MakeField("b")}

	tr := EmptyTree().Write(deep, FromFrame(frame.New(k)))

	folded := ReadForSinkMatch(tr, access.Path{access.MakeField("a")})
	for _, f := range folded.Frames(k) {
		if !f.Features.Always.Contains(feature.BroadeningIssue) {
			t.Error("folding structure below the matched path should tag the issue-broadening feature")
		}
	}

	exact := ReadForSinkMatch(tr, deep)
	for _, f := range exact.Frames(k) {
		if f.Features.Always.Contains(feature.BroadeningIssue) {
			t.Error("an exact read with nothing below it should not be tagged as broadened")
		}
	}
}

func TestFilterKindsPreservesStructureAndDropsRejected(t *testing.T) {
	keep := kind.NewNamed("domain-filter-keep")
	drop := kind.NewNamed("domain-filter-drop")
	field := access.Path{access.MakeField("F")}

	tr := EmptyTree().
		Write(nil, FromFrame(frame.New(drop))).
		Write(field, FromFrame(frame.New(keep)))

	out := FilterKinds(tr, func(k *kind.Kind) bool { return k == keep })

	if len(out.Read(nil).Frames(drop)) != 0 {
		t.Error("FilterKinds should remove frames of a rejected kind from the root")
	}
	if len(out.Read(field).Frames(keep)) != 1 {
		t.Error("FilterKinds should keep frames of an accepted kind at their original path")
	}
}
