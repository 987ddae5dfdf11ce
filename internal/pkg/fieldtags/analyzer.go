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

// Package fieldtags defines an analyzer that identifies struct fields identified
// as sources via a field tag.
package fieldtags

import (
	"go/ast"
	"go/types"
	"reflect"
	"strconv"

	"github.com/go-taint/tcta/internal/pkg/config"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// builtinTagKey is the struct tag key recognized as a source marker even
// when the configuration declares no FieldTags of its own.
const builtinTagKey = "tcta"

// ResultType maps each struct field identified as a source, by its
// declaring types.Object, to whether it was tagged. Fields are compared
// by object identity rather than by name, mirroring fieldpropagator's
// ResultType.
type ResultType map[types.Object]bool

var Analyzer = &analysis.Analyzer{
	Name:  "fieldtags",
	Doc:   "This analyzer identifies Source fields based on their tags. Tags are expected to satisfy the `go vet -structtag` format.",
	Flags: config.FlagSet,
	Run:   run,
	Requires: []*analysis.Analyzer{
		inspect.Analyzer,
	},
	ResultType: reflect.TypeOf(new(ResultType)).Elem(),
}

func run(pass *analysis.Pass) (interface{}, error) {
	conf, err := config.ReadConfig()
	if err != nil {
		return nil, err
	}

	keys := []string{builtinTagKey}
	for _, ft := range conf.FieldTags {
		keys = append(keys, ft.Key)
	}

	inspectResult := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	taggedFields := ResultType{}

	nodeFilter := []ast.Node{
		(*ast.Field)(nil),
	}

	inspectResult.Preorder(nodeFilter, func(n ast.Node) {
		f := n.(*ast.Field)
		if f.Tag == nil || len(f.Names) == 0 {
			return
		}
		raw, err := strconv.Unquote(f.Tag.Value)
		if err != nil {
			return
		}
		tag := reflect.StructTag(raw)

		for _, key := range keys {
			val, ok := tag.Lookup(key)
			if !ok || !conf.IsSourceFieldTag(key, val) {
				continue
			}
			for _, name := range f.Names {
				obj := pass.TypesInfo.Defs[name]
				if obj == nil {
					continue
				}
				taggedFields[obj] = true
				pass.Reportf(name.Pos(), "tagged field: %s", name.Name)
			}
			break
		}
	})
	return taggedFields, nil
}

// IsSource determines whether v refers to a struct field previously
// identified as a source.
func (t ResultType) IsSource(v *types.Var) bool {
	return v != nil && t[v]
}
