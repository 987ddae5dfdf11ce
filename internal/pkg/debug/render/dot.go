// Copyright 2019 Google LLC
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

package render

import (
	"fmt"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// DOT renders a function's SSA as GraphViz source: one cluster per
// basic block, one node per instruction, and an edge from every
// instruction-defined operand to the instruction consuming it -- the
// value-flow view the taint transfer walks.
func DOT(f *ssa.Function) string {
	var b strings.Builder
	b.WriteString("digraph {\n")

	for bi, blk := range f.Blocks {
		fmt.Fprintf(&b, "\tsubgraph cluster_%d {\n", bi)
		fmt.Fprintf(&b, "\t\tlabel=%q;\n", blk.Comment)
		for _, instr := range blk.Instrs {
			fmt.Fprintf(&b, "\t\t%q [shape=%s];\n", instrLabel(instr), nodeShape(instr))
		}
		b.WriteString("\t}\n")
	}

	for _, blk := range f.Blocks {
		for _, instr := range blk.Instrs {
			for _, rand := range instr.Operands(nil) {
				if rand == nil || *rand == nil {
					continue
				}
				def, ok := (*rand).(ssa.Instruction)
				if !ok {
					continue
				}
				fmt.Fprintf(&b, "\t%q -> %q;\n", instrLabel(def), instrLabel(instr))
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// instrLabel names an instruction node: the defined register and its
// defining expression for value instructions, the raw instruction text
// otherwise.
func instrLabel(instr ssa.Instruction) string {
	if v, ok := instr.(ssa.Value); ok {
		return fmt.Sprintf("%s = %s", v.Name(), v.String())
	}
	return instr.String()
}

// nodeShape picks a shape per instruction role: boxes for calls (where
// models are instantiated), diamonds for control transfers, ellipses
// for everything else.
func nodeShape(instr ssa.Instruction) string {
	switch instr.(type) {
	case *ssa.Call, *ssa.Go, *ssa.Defer:
		return "box"
	case *ssa.If, *ssa.Jump, *ssa.Return, *ssa.Panic:
		return "diamond"
	default:
		return "ellipse"
	}
}
