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

// Package tcta exports the tcta Analyzer.
package tcta

import (
	"github.com/go-taint/tcta/internal/pkg/config"
	"github.com/go-taint/tcta/internal/pkg/tctanalysis"
)

// Analyzer reports instances of source data reaching a sink, tracked
// inter-procedurally across the whole program.
var Analyzer = tctanalysis.Analyzer

// SetConfigBytes is a wrapper around the config package's SetConfigBytes function.
var SetConfigBytes = config.SetBytes
