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

package feature

import "testing"

func TestInternIdentity(t *testing.T) {
	a := Intern("via-cast:T")
	b := Intern("via-cast:T")
	if a != b {
		t.Error("Intern should return the same pointer for the same name")
	}
	c := Intern("via-cast:U")
	if a == c {
		t.Error("Intern should return distinct pointers for distinct names")
	}
}

func TestViaCastBuildsDistinctFeatures(t *testing.T) {
	a := ViaCast("pkg.T")
	b := ViaCast("pkg.T")
	c := ViaCast("pkg.U")
	if a != b {
		t.Error("ViaCast should be stable for the same type name")
	}
	if a == c {
		t.Error("ViaCast should differ for different type names")
	}
}

func TestSetUnionAndLeq(t *testing.T) {
	f1, f2, f3 := Intern("f1"), Intern("f2"), Intern("f3")
	s1 := NewSet(f1, f2)
	s2 := NewSet(f2, f3)
	u := s1.Union(s2)
	if !u.Contains(f1) || !u.Contains(f2) || !u.Contains(f3) {
		t.Errorf("Union missing members: %v", u)
	}
	if !s1.Leq(u) || !s2.Leq(u) {
		t.Error("each side of a union should be <= the union")
	}
	if u.Leq(s1) {
		t.Error("the union should not be <= a strict subset")
	}
}

func TestMayAlwaysJoin(t *testing.T) {
	f1, f2 := Intern("may-always-f1"), Intern("may-always-f2")

	left := Empty.AddAlways(f1).AddMay(f2)
	right := Empty.AddMay(f1).AddMay(f2)

	joined := left.Join(right)

	// Always is the intersection: f1 was Always on the left but only
	// May on the right, so it must degrade to May in the join.
	if joined.Always.Contains(f1) {
		t.Error("f1 should not survive in Always: it wasn't Always on both sides")
	}
	if !joined.May.Contains(f1) {
		t.Error("f1 should still be present in May")
	}
	if !joined.May.Contains(f2) {
		t.Error("f2 should be present in May on both sides")
	}
}

func TestMayAlwaysLeqAndBottom(t *testing.T) {
	if !Empty.IsBottom() {
		t.Error("Empty should be bottom")
	}
	f := Intern("leq-f")
	m := Empty.AddMay(f)
	if !Empty.Leq(m) {
		t.Error("bottom should be <= any MayAlways")
	}
	if m.Leq(Empty) {
		t.Error("a non-bottom MayAlways should not be <= bottom")
	}
}

func TestPromoteUserFeatures(t *testing.T) {
	f := Intern("user-f")
	user := NewSet(f)
	promoted := PromoteUserFeatures(user)
	if !promoted.Always.Contains(f) {
		t.Error("PromoteUserFeatures must promote every user feature to Always")
	}
	if !promoted.May.Contains(f) {
		t.Error("Always implies May")
	}
}
