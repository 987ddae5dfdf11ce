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

// Package tree implements AbstractTree[V]: a path-keyed tree of
// join-semilattice values with subsumption, where a value written at an
// interior node is implicitly part of the value read at every path below
// it. This is the generic core that Frame/Taint trees and Environments
// are both built from.
package tree

import (
	"sort"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
)

// Lattice is the constraint a tree's value type must satisfy: a
// commutative, idempotent join, a corresponding partial order, and a
// recognizable bottom element.
type Lattice[V any] interface {
	Join(other V) V
	Leq(other V) bool
	IsBottom() bool
}

// node is one point of the tree: the value held exactly at this path,
// plus children keyed by the next path element. A nil children map means
// a leaf.
type node[V Lattice[V]] struct {
	value    V
	children map[access.PathElement]*node[V]
}

func newNode[V Lattice[V]]() *node[V] {
	return &node[V]{}
}

func (n *node[V]) isEmpty() bool {
	return n.value.IsBottom() && len(n.children) == 0
}

func (n *node[V]) clone() *node[V] {
	out := &node[V]{value: n.value}
	if len(n.children) > 0 {
		out.children = make(map[access.PathElement]*node[V], len(n.children))
		for k, c := range n.children {
			out.children[k] = c.clone()
		}
	}
	return out
}

// Tree is an AbstractTree[V]: a possibly-empty collection of (path,
// value) facts, where the value at a path implicitly applies to every
// path extending it (a taint source at Argument(0) taints
// Argument(0).field too, unless more precise information overrides it).
type Tree[V Lattice[V]] struct {
	root *node[V]
}

// Empty returns the bottom tree: no information anywhere.
func Empty[V Lattice[V]]() Tree[V] {
	return Tree[V]{root: newNode[V]()}
}

// IsEmpty reports whether the tree carries no information at all.
func (t Tree[V]) IsEmpty() bool {
	return t.root == nil || t.root.isEmpty()
}

// Leaf builds a tree holding v at the root path, nothing else.
func Leaf[V Lattice[V]](v V) Tree[V] {
	return Tree[V]{root: &node[V]{value: v}}
}

func childAt[V Lattice[V]](n *node[V], elem access.PathElement, create bool) *node[V] {
	if n.children == nil {
		if !create {
			return nil
		}
		n.children = map[access.PathElement]*node[V]{}
	}
	c, ok := n.children[elem]
	if !ok {
		if !create {
			return nil
		}
		c = newNode[V]()
		n.children[elem] = c
	}
	return c
}

// Write assigns v at path, joining it with whatever was already present
// there (a weak update: information only accumulates, matching how
// taint facts are never retracted, only widened). The final step
// applies the tree's index semantics: writing through an AnyIndex
// ("[*]") step also weakly writes v to every existing literal-index
// sibling at that node, and a brand-new literal-index child inherits
// the current AnyIndex sibling's value as its background before v is
// joined in.
func (t Tree[V]) Write(path access.Path, v V) Tree[V] {
	root := t.root
	if root == nil {
		root = newNode[V]()
	} else {
		root = root.clone()
	}
	if len(path) == 0 {
		root.value = root.value.Join(v)
		return Tree[V]{root: root}
	}
	n := root
	for _, elem := range path[:len(path)-1] {
		n = childAt(n, elem, true)
	}
	writeChild(n, path[len(path)-1], v)
	return Tree[V]{root: root}
}

// writeChild performs one weak write of v to parent's elem child.
func writeChild[V Lattice[V]](parent *node[V], elem access.PathElement, v V) {
	if elem.Kind == access.AnyIndex {
		child := childAt(parent, elem, true)
		child.value = child.value.Join(v)
		for sib, c := range parent.children {
			if sib != elem && sib.Kind == access.Index {
				c.value = c.value.Join(v)
			}
		}
		return
	}
	_, existed := parent.children[elem]
	child := childAt(parent, elem, true)
	if !existed && elem.Kind == access.Index {
		if bg, ok := parent.children[access.MakeAnyIndex()]; ok {
			child.value = child.value.Join(bg.value)
		}
	}
	child.value = child.value.Join(v)
}

// Assign performs a strong update at path: the prior subtree at path is
// discarded (not joined), then v is written there. Used for must-alias
// writes where an index/field store replaces rather than accumulates.
// A strong write through AnyIndex still only weakly writes to
// literal-index siblings: it behaves as a weak write to siblings but
// replaces [*]'s own subtree.
func (t Tree[V]) Assign(path access.Path, v V) Tree[V] {
	root := t.root
	if root == nil {
		root = newNode[V]()
	} else {
		root = root.clone()
	}
	if len(path) == 0 {
		root.value = v
		root.children = nil
		return Tree[V]{root: root}
	}
	n := root
	for _, elem := range path[:len(path)-1] {
		n = childAt(n, elem, true)
	}
	assignChild(n, path[len(path)-1], v)
	return Tree[V]{root: root}
}

func assignChild[V Lattice[V]](parent *node[V], elem access.PathElement, v V) {
	if elem.Kind == access.AnyIndex {
		child := childAt(parent, elem, true)
		child.value = v
		child.children = nil
		for sib, c := range parent.children {
			if sib != elem && sib.Kind == access.Index {
				c.value = c.value.Join(v)
			}
		}
		return
	}
	_, existed := parent.children[elem]
	child := childAt(parent, elem, true)
	child.value = v
	child.children = nil
	if !existed && elem.Kind == access.Index {
		if bg, ok := parent.children[access.MakeAnyIndex()]; ok {
			child.value = child.value.Join(bg.value)
		}
	}
}

// collectInto folds n's value, and every descendant's value, into acc.
func collectInto[V Lattice[V]](n *node[V], acc V) V {
	if n == nil {
		return acc
	}
	acc = acc.Join(n.value)
	for _, c := range n.children {
		acc = collectInto(c, acc)
	}
	return acc
}

// Read returns the join of every value reachable at or below path,
// including values held at interior ancestors of path (since an
// ancestor's value implicitly applies to all of its descendants). An
// AnyIndex step in path matches every Index/AnyIndex/Element child at
// that level (subsumption in the read direction).
func (t Tree[V]) Read(path access.Path) V {
	var zero V
	if t.root == nil {
		return zero
	}
	return t.readFrom(t.root, path, zero, true)
}

// readFrom walks down path from n, folding in every ancestor value along
// the way: when includeSelf is true, n.value is folded into acc before
// descending.
func (t Tree[V]) readFrom(n *node[V], path access.Path, acc V, includeSelf bool) V {
	if includeSelf {
		acc = acc.Join(n.value)
	}
	if len(path) == 0 {
		return collectInto(n, acc)
	}
	step := path[0]
	rest := path[1:]
	if step.Kind == access.AnyIndex {
		for elem, c := range n.children {
			if elem.Kind == access.Index || elem.Kind == access.AnyIndex || elem.Kind == access.Element {
				acc = t.readFrom(c, rest, acc, true)
			}
		}
		return acc
	}
	for elem, c := range n.children {
		if elem.Subsumes(step) || elem == step {
			acc = t.readFrom(c, rest, acc, true)
		}
	}
	return acc
}

// Get returns only the value held exactly at path (no ancestor or
// descendant folding), used when an operation needs to distinguish
// "nothing here" from "tainted only through an ancestor".
func (t Tree[V]) Get(path access.Path) V {
	var zero V
	if t.root == nil {
		return zero
	}
	n := t.root
	for _, elem := range path {
		n = childAt(n, elem, false)
		if n == nil {
			return zero
		}
	}
	return n.value
}

// Descend returns the subtree rooted at path, keeping its structure:
// the values of path's ancestors (which implicitly apply at path) fold
// into the result's root, and path's descendants stay in place.
func (t Tree[V]) Descend(path access.Path) Tree[V] {
	var zero V
	if t.root == nil {
		return t
	}
	acc := zero
	n := t.root
	for _, elem := range path {
		acc = acc.Join(n.value)
		n = childAt(n, elem, false)
		if n == nil {
			return Tree[V]{root: &node[V]{value: acc}}
		}
	}
	out := n.clone()
	out.value = out.value.Join(acc)
	return Tree[V]{root: out}
}

// HasStructureBelow reports whether any strict descendant of path holds
// a value: reading at path would then fold deeper structure into the
// result.
func (t Tree[V]) HasStructureBelow(path access.Path) bool {
	if t.root == nil {
		return false
	}
	n := t.root
	for _, elem := range path {
		n = childAt(n, elem, false)
		if n == nil {
			return false
		}
	}
	for _, c := range n.children {
		var zero V
		if !collectInto(c, zero).IsBottom() {
			return true
		}
	}
	return false
}

// Join computes the least upper bound of t and other.
func (t Tree[V]) Join(other Tree[V]) Tree[V] {
	if t.root == nil {
		return other
	}
	if other.root == nil {
		return t
	}
	return Tree[V]{root: joinNode(t.root, other.root)}
}

func joinNode[V Lattice[V]](a, b *node[V]) *node[V] {
	out := &node[V]{value: a.value.Join(b.value)}
	if len(a.children) == 0 && len(b.children) == 0 {
		return out
	}
	out.children = map[access.PathElement]*node[V]{}
	for elem, c := range a.children {
		out.children[elem] = c.clone()
	}
	for elem, c := range b.children {
		if existing, ok := out.children[elem]; ok {
			out.children[elem] = joinNode(existing, c)
		} else {
			out.children[elem] = c.clone()
		}
	}
	return out
}

// Leq reports whether t is less-than-or-equal to other: every fact in t
// is subsumed by a fact in other, considering ancestor folding on both
// sides (a conservative, sound approximation of the full structural
// comparison: it compares the folded read at every path present in t).
func (t Tree[V]) Leq(other Tree[V]) bool {
	if t.root == nil {
		return true
	}
	return leqNode(t.root, nil, other, access.Path{})
}

func leqNode[V Lattice[V]](n *node[V], path access.Path, other Tree[V], cur access.Path) bool {
	if !n.value.IsBottom() {
		if !n.value.Leq(other.Read(cur)) {
			return false
		}
	}
	for elem, c := range n.children {
		if !leqNode(c, path, other, append(append(access.Path(nil), cur...), elem)) {
			return false
		}
	}
	return true
}

// LeafCount returns the number of nodes in the tree carrying a
// non-bottom value -- the leaf-limit heuristic counts materialized
// values, not total nodes; a childless bottom node counts zero.
func (t Tree[V]) LeafCount() int {
	if t.root == nil {
		return 0
	}
	return countLeaves(t.root)
}

func countLeaves[V Lattice[V]](n *node[V]) int {
	if len(n.children) == 0 {
		if n.value.IsBottom() {
			return 0
		}
		return 1
	}
	count := 0
	if !n.value.IsBottom() {
		count++
	}
	for _, c := range n.children {
		count += countLeaves(c)
	}
	return count
}

// Collapse folds the entire tree into a single value at the root,
// discarding all path structure. Used when a tree must be degraded to a
// single taint fact, e.g. for a collapse-depth or leaf-limit cutoff.
func (t Tree[V]) Collapse() V {
	var zero V
	if t.root == nil {
		return zero
	}
	return collectInto(t.root, zero)
}

// LimitHeight collapses every subtree found below the given height (0
// == collapse everything to the root) into its ancestor at that height.
// tag, if non-nil, is applied to each folded value before it is stored,
// so a caller can mark the result as having lost precision; tag is
// skipped for subtrees that were already within the height limit.
func (t Tree[V]) LimitHeight(height int, tag func(V) V) Tree[V] {
	if t.root == nil || height < 0 {
		return t
	}
	return Tree[V]{root: limitHeightNode(t.root, height, tag)}
}

func limitHeightNode[V Lattice[V]](n *node[V], height int, tag func(V) V) *node[V] {
	if height <= 0 {
		var zero V
		v := collectInto(n, zero)
		if tag != nil && len(n.children) > 0 {
			v = tag(v)
		}
		return &node[V]{value: v}
	}
	out := &node[V]{value: n.value}
	if len(n.children) > 0 {
		out.children = make(map[access.PathElement]*node[V], len(n.children))
		for elem, c := range n.children {
			out.children[elem] = limitHeightNode(c, height-1, tag)
		}
	}
	return out
}

// LimitLeaves enforces the leaf cap by taking the shallowest cut that
// brings the count back within max: the deepest height whose collapse
// satisfies the cap, so as much structure as possible survives. tag, if
// non-nil, is applied to each collapsed value so a caller can mark it
// as broadened.
func (t Tree[V]) LimitLeaves(max int, tag func(V) V) Tree[V] {
	if t.LeafCount() <= max {
		return t
	}
	for h := t.depth() - 1; h > 0; h-- {
		cut := t.LimitHeight(h, tag)
		if cut.LeafCount() <= max {
			return cut
		}
	}
	v := t.Collapse()
	if tag != nil {
		v = tag(v)
	}
	return Leaf[V](v)
}

func (t Tree[V]) depth() int {
	if t.root == nil {
		return 0
	}
	return nodeDepth(t.root)
}

func nodeDepth[V Lattice[V]](n *node[V]) int {
	deepest := 0
	for _, c := range n.children {
		if d := nodeDepth(c); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Prune removes every subtree rooted at a path for which keep returns
// false, folding its value up into the nearest kept ancestor so no
// information is silently lost. tag, if non-nil, is applied to a
// folded-up value before it rejoins the kept ancestor.
func (t Tree[V]) Prune(keep func(access.Path) bool, tag func(V) V) Tree[V] {
	if t.root == nil {
		return t
	}
	var zero V
	root, overflow := pruneNode(t.root, access.Path{}, keep, zero)
	if root == nil {
		root = newNode[V]()
	}
	if tag != nil && !overflow.IsBottom() {
		overflow = tag(overflow)
	}
	root.value = root.value.Join(overflow)
	return Tree[V]{root: root}
}

func pruneNode[V Lattice[V]](n *node[V], cur access.Path, keep func(access.Path) bool, carry V) (*node[V], V) {
	if !keep(cur) {
		return nil, carry.Join(collectInto(n, carry))
	}
	out := &node[V]{value: n.value}
	if len(n.children) > 0 {
		out.children = map[access.PathElement]*node[V]{}
		for elem, c := range n.children {
			child, overflow := pruneNode(c, append(append(access.Path(nil), cur...), elem), keep, carry)
			if child != nil {
				out.children[elem] = child
			}
			out.value = out.value.Join(overflow)
		}
	}
	var zero V
	return out, zero
}

// CollapseInvalidPaths removes any path step that isValid rejects,
// folding the rejected subtree's value into its parent (tagged with tag
// if non-nil) -- used when go/types information proves a field or index
// access path cannot exist on the concrete type being modeled.
func (t Tree[V]) CollapseInvalidPaths(isValid func(access.Path) bool, tag func(V) V) Tree[V] {
	return t.Prune(isValid, tag)
}

// Paths enumerates every path in the tree holding a non-bottom value,
// in a stable, deterministic order. Used by tests, by debug rendering,
// and wherever a tree is rebuilt path by path (e.g. propagate.Tree,
// domain.FilterKinds), so that rebuild never depends on map iteration
// order.
func (t Tree[V]) Paths() []access.Path {
	if t.root == nil {
		return nil
	}
	var out []access.Path
	var walk func(n *node[V], cur access.Path)
	walk = func(n *node[V], cur access.Path) {
		if !n.value.IsBottom() {
			out = append(out, append(access.Path(nil), cur...))
		}
		keys := make([]access.PathElement, 0, len(n.children))
		for elem := range n.children {
			keys = append(keys, elem)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, elem := range keys {
			walk(n.children[elem], append(append(access.Path(nil), cur...), elem))
		}
	}
	walk(t.root, access.Path{})
	return out
}
