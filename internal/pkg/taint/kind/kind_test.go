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

package kind

import "testing"

type fakeRule struct {
	name string
	code int
}

func (f fakeRule) RuleName() string { return f.name }
func (f fakeRule) RuleCode() int    { return f.code }

func TestInternIdentity(t *testing.T) {
	a := NewNamed("kind-identity-test-A")
	b := NewNamed("kind-identity-test-A")
	if a != b {
		t.Error("NewNamed should return the same pointer for the same name")
	}
	c := NewNamed("kind-identity-test-B")
	if a == c {
		t.Error("NewNamed should return distinct pointers for distinct names")
	}
}

func TestPartialAndTriggered(t *testing.T) {
	p1 := NewPartial("MultiSource", "legA")
	p2 := NewPartial("MultiSource", "legA")
	if p1 != p2 {
		t.Error("NewPartial should intern on (name, label)")
	}
	rule := fakeRule{name: "R", code: 7}
	trig := NewTriggered("MultiSource", "legB", rule)
	if trig.Tag() != Triggered {
		t.Errorf("Tag() = %v, want Triggered", trig.Tag())
	}
	if trig.TriggeredBy().RuleCode() != 7 {
		t.Error("TriggeredBy should retain the fulfilling rule")
	}
}

func TestTransformKindComposesAndDetectsSourceAsTransform(t *testing.T) {
	base := NewNamed("BaseSink")
	global := []Transform{{Name: "g1"}}
	local := []Transform{{Name: "l1", SourceAsTransform: true}}

	tk := NewTransform(base, global, local)
	if tk.Tag() != TransformTag {
		t.Fatalf("Tag() = %v, want TransformTag", tk.Tag())
	}
	if tk.Base() != base {
		t.Error("Base() should return the underlying kind")
	}
	if !tk.HasSourceAsTransform() {
		t.Error("expected HasSourceAsTransform to be true: a local transform carries the marker")
	}

	tk2 := NewTransform(base, global, local)
	if tk != tk2 {
		t.Error("NewTransform should intern identical (base, global, local) combinations")
	}

	noMarker := NewTransform(base, global, []Transform{{Name: "l2"}})
	if noMarker.HasSourceAsTransform() {
		t.Error("expected HasSourceAsTransform to be false with no source-as-transform entries")
	}
}

func TestPropagationKinds(t *testing.T) {
	ret := NewLocalReturn()
	if ret.PropagationForm() != LocalReturn {
		t.Error("NewLocalReturn should produce a LocalReturn-form kind")
	}
	arg1 := NewLocalArgument(1)
	arg1b := NewLocalArgument(1)
	arg2 := NewLocalArgument(2)
	if arg1 != arg1b {
		t.Error("NewLocalArgument should intern on the argument index")
	}
	if arg1 == arg2 {
		t.Error("NewLocalArgument(1) and NewLocalArgument(2) must be distinct")
	}
	if arg1.Argument() != 1 {
		t.Errorf("Argument() = %d, want 1", arg1.Argument())
	}
}

func TestSortKindsStableOrder(t *testing.T) {
	a := NewNamed("sort-test-a")
	b := NewNamed("sort-test-b")
	c := NewNamed("sort-test-c")

	ks := []*Kind{c, a, b}
	SortKinds(ks)
	for i := 1; i < len(ks); i++ {
		if !Less(ks[i-1], ks[i]) && ks[i-1] != ks[i] {
			t.Errorf("SortKinds did not produce ascending ID order at index %d", i)
		}
	}

	// Sorting again must be deterministic (same relative order every time).
	ks2 := []*Kind{b, c, a}
	SortKinds(ks2)
	for i := range ks {
		if ks[i] != ks2[i] {
			t.Errorf("SortKinds is not deterministic: position %d differs", i)
		}
	}
}
