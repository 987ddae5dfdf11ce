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

// Package alias computes the may-alias partitioning that backs the
// transfer function's MemoryLocation contract: a flow-insensitive
// union-find over every analyzed function's ssa.Values, unifying the
// pairs that denote the same storage -- a phi with each of its edges,
// a conversion with its operand, a pointer load with the pointer it
// reads. Two values resolve to the same abstract location exactly when
// the pass unified them; a value the pass never saw is its own
// singleton location, which is sound because distinct SSA names within
// one function are distinct cells unless something connected them.
package alias

import (
	"go/token"
	"reflect"
	"sync"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/go-taint/tcta/internal/pkg/taint/domain"
)

// Analyzer computes the Partitions for every function buildssa gives a
// body, so the driver can hand the transfer function one shared oracle.
var Analyzer = &analysis.Analyzer{
	Name:       "alias",
	Doc:        "computes a may-alias partitioning of each function's SSA values",
	Run:        run,
	Requires:   []*analysis.Analyzer{buildssa.Analyzer},
	ResultType: reflect.TypeOf(new(Partitions)),
}

func run(pass *analysis.Pass) (interface{}, error) {
	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	p := NewPartitions()
	for _, fn := range ssaInput.SrcFuncs {
		p.AddFunction(fn)
	}
	return p, nil
}

// Partitions is a union-find over ssa.Values. It is safe for concurrent
// lookups: the driver may analyze independent methods in parallel
// against one shared partitioning.
type Partitions struct {
	mu     sync.Mutex
	parent map[ssa.Value]ssa.Value
}

// NewPartitions returns an empty partitioning: every value its own
// location.
func NewPartitions() *Partitions {
	return &Partitions{parent: map[ssa.Value]ssa.Value{}}
}

// AddFunction unifies the value pairs of fn's body that share storage.
func (p *Partitions) AddFunction(fn *ssa.Function) {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ssa.Phi:
				for _, e := range v.Edges {
					p.unify(v, e)
				}
			case *ssa.Convert:
				p.unify(v, v.X)
			case *ssa.ChangeType:
				p.unify(v, v.X)
			case *ssa.ChangeInterface:
				p.unify(v, v.X)
			case *ssa.MakeInterface:
				p.unify(v, v.X)
			case *ssa.Slice:
				p.unify(v, v.X)
			case *ssa.UnOp:
				// A load reads the pointer's cell: taint stored through
				// the pointer is visible at the loaded value.
				if v.Op == token.MUL {
					p.unify(v, v.X)
				}
			}
		}
	}
}

func (p *Partitions) unify(a, b ssa.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ra, rb := p.findLocked(a), p.findLocked(b)
	if ra == rb {
		return
	}
	if _, ok := p.parent[ra]; !ok {
		p.parent[ra] = ra
	}
	p.parent[rb] = ra
}

func (p *Partitions) findLocked(v ssa.Value) ssa.Value {
	root := v
	for {
		parent, ok := p.parent[root]
		if !ok || parent == root {
			break
		}
		root = parent
	}
	for v != root {
		next := p.parent[v]
		p.parent[v] = root
		v = next
	}
	return root
}

// Representative returns the canonical value of v's partition; ok is
// false when the pass never unified v with anything, in which case v is
// its own singleton location.
func (p *Partitions) Representative(v ssa.Value) (ssa.Value, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.parent[v]; !ok {
		return nil, false
	}
	return p.findLocked(v), true
}

// Oracle adapts Partitions to the transfer function's AliasOracle
// boundary contract.
type Oracle struct {
	parts *Partitions
}

// New wraps parts; a nil Partitions degrades Location to per-value
// identity, the same fallback the transfer applies to a nil oracle.
func New(parts *Partitions) *Oracle {
	return &Oracle{parts: parts}
}

// Location resolves v to its partition's canonical value, or v itself
// when the pass never unified it.
func (o *Oracle) Location(v ssa.Value) domain.MemoryLocation {
	if o == nil || o.parts == nil {
		return v
	}
	if rep, ok := o.parts.Representative(v); ok {
		return rep
	}
	return v
}
