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

// SSA renders a function's SSA one block per section, one instruction
// per line, each tagged with its concrete instruction type -- the
// dispatch key of the taint transfer function.
func SSA(f *ssa.Function) string {
	var b strings.Builder
	for bi, blk := range f.Blocks {
		fmt.Fprintf(&b, "%d: %s\n", bi, blk.Comment)
		for i, instr := range blk.Instrs {
			fmt.Fprintf(&b, "\t%d(%-20T): %s\n", i, instr, instrLabel(instr))
		}
	}
	return b.String()
}
