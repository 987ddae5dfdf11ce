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

package registry

import (
	"testing"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
)

func TestGetUnknownReturnsEmptyModel(t *testing.T) {
	r := New()
	m := r.Get("unknown-method")
	if len(m.Generations) != 0 {
		t.Error("an unrecorded method should produce a fresh, empty Model")
	}
}

func TestJoinReportsChange(t *testing.T) {
	r := New()
	k := kind.NewNamed("registry-test-kind")
	root := access.MakeReturn().String()

	m1 := model.New("f")
	m1.Generations[root] = domain.LeafTree(domain.FromFrame(frame.New(k)))

	if changed := r.Join("f", m1); !changed {
		t.Error("the first Join for a method should always report a change")
	}
	if changed := r.Join("f", m1); changed {
		t.Error("re-joining an identical Model should report no change")
	}
}

func TestSetOverwritesUnconditionally(t *testing.T) {
	r := New()
	m1 := model.New("f")
	m1.Modes |= model.SkipAnalysis
	r.Set("f", m1)

	m2 := model.New("f")
	r.Set("f", m2)

	got := r.Get("f")
	if got.Modes.Has(model.SkipAnalysis) {
		t.Error("Set should overwrite the previous Model entirely, not join with it")
	}
}

func TestMethodsSortedDeterministically(t *testing.T) {
	r := New()
	r.Set("zeta", model.New("zeta"))
	r.Set("alpha", model.New("alpha"))
	r.Set("mu", model.New("mu"))

	got := r.Methods()
	want := []string{"alpha", "mu", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Methods() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Methods()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
