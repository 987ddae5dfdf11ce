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

package source

import (
	"reflect"

	"github.com/go-taint/tcta/internal/pkg/config"
	"github.com/go-taint/tcta/internal/pkg/fieldpropagator"
	"github.com/go-taint/tcta/internal/pkg/fieldtags"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"
)

// ResultType maps each analyzed function to the Sources found in its body.
type ResultType = map[*ssa.Function][]*Source

var Analyzer = &analysis.Analyzer{
	Name:  "source",
	Doc:   "This analyzer identifies ssa.Values as dataflow sources.",
	Flags: config.FlagSet,
	Run:   run,
	Requires: []*analysis.Analyzer{
		buildssa.Analyzer,
		fieldtags.Analyzer,
		fieldpropagator.Analyzer,
	},
	ResultType: reflect.TypeOf(new(ResultType)).Elem(),
}

func run(pass *analysis.Pass) (interface{}, error) {
	conf, err := config.ReadConfig()
	if err != nil {
		return nil, err
	}

	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	taggedFields := pass.ResultOf[fieldtags.Analyzer].(fieldtags.ResultType)
	propagators := pass.ResultOf[fieldpropagator.Analyzer].(fieldpropagator.ResultType)

	sourceMap := identify(conf, ssaInput, taggedFields, propagators)
	return sourceMap, nil
}
