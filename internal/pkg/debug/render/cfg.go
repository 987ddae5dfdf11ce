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

// CFG renders a function's control flow graph as GraphViz source: one
// node per basic block, one edge per successor.
func CFG(f *ssa.Function) string {
	var b strings.Builder
	b.WriteString("digraph {\n")
	for _, blk := range f.Blocks {
		fmt.Fprintf(&b, "\t%q;\n", blockLabel(blk))
		for _, succ := range blk.Succs {
			fmt.Fprintf(&b, "\t%q -> %q;\n", blockLabel(blk), blockLabel(succ))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func blockLabel(b *ssa.BasicBlock) string {
	return fmt.Sprintf("%d %s", b.Index, b.Comment)
}
