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

package propagate

import (
	"testing"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
)

func simpleSite() CallSite {
	return CallSite{
		Method:           "caller",
		Position:         frame.Origin{Method: "caller"},
		ReceiverInterval: frame.AnyInterval,
	}
}

func TestFrameBumpsDistanceAndUpgradesCallKind(t *testing.T) {
	k := kind.NewNamed("propagate-test-kind")
	f := frame.New(k)

	out, ok := Frame(f, simpleSite(), access.Make(access.MakeArgument(0)))
	if !ok {
		t.Fatal("expected instantiation to succeed")
	}
	if out.Distance != 1 {
		t.Errorf("Distance = %d, want 1", out.Distance)
	}
	if out.CallKind != frame.CallSite {
		t.Errorf("CallKind = %v, want CallSite", out.CallKind)
	}
}

func TestDistanceCutoffDropsFrame(t *testing.T) {
	k := kind.NewNamed("propagate-test-cutoff")
	f := frame.New(k)
	f.Distance = frame.MaxDistance

	_, ok := Frame(f, simpleSite(), access.Make(access.MakeArgument(0)))
	if ok {
		t.Error("a frame whose distance would exceed MaxDistance must be dropped")
	}
}

func TestTaintPropagateAllDroppedYieldsBottom(t *testing.T) {
	// Propagating a Taint whose every frame is already at the distance
	// cap yields bottom: every frame is dropped, none survive.
	k := kind.NewNamed("propagate-test-all-dropped")
	f := frame.New(k)
	f.Distance = frame.MaxDistance

	in := domain.FromFrame(f)
	out := Taint(in, simpleSite(), access.Make(access.MakeArgument(0)))
	if !out.IsBottom() {
		t.Error("propagating a Taint whose every frame is cut off should yield bottom")
	}
}

func TestIntervalIntersectionDropsNonOverlapping(t *testing.T) {
	k := kind.NewNamed("propagate-test-interval")
	f := frame.New(k)
	f.Interval = frame.Interval{Lower: 0, Upper: 2}

	site := simpleSite()
	site.ReceiverInterval = frame.Interval{Lower: 5, Upper: 10}

	_, ok := Frame(f, site, access.Make(access.MakeArgument(0)))
	if ok {
		t.Error("a frame whose interval does not overlap the call site's should be dropped")
	}
}

func TestUserFeaturesPromoteToAlwaysOnInstantiation(t *testing.T) {
	k := kind.NewNamed("propagate-test-userfeatures")
	f := frame.New(k)
	user := feature.Intern("propagate-test-user-feature")
	f.UserFeatures = feature.NewSet(user)

	out, ok := Frame(f, simpleSite(), access.Make(access.MakeArgument(0)))
	if !ok {
		t.Fatal("expected instantiation to succeed")
	}
	if !out.Features.Always.Contains(user) {
		t.Error("a callee's user feature should become an always-feature at the call site")
	}
}

func TestCollapseOutputPathsDegradesOverCap(t *testing.T) {
	f := frame.New(kind.NewLocalReturn())
	f.OutputPaths = map[string]int{"a": -1, "b": 0, "c": 2}

	out := CollapseOutputPaths(f, 2)
	if out.OutputPaths != nil {
		t.Error("exceeding the cap should degrade OutputPaths to the identity mapping (nil)")
	}
	if !out.Features.Always.Contains(feature.BroadeningCollapseDepth) {
		t.Error("exceeding the cap should attach the collapse-depth broadening feature")
	}

	untouched := CollapseOutputPaths(f, 10)
	if untouched.OutputPaths == nil {
		t.Error("under the cap, OutputPaths should be left untouched")
	}
}
