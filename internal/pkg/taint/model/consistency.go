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

package model

import (
	"fmt"
	"log"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
)

// ConsistencyError describes one model fragment that contradicts the
// method it is attached to: a sink on an argument the method does not
// have, a Return-rooted fact on a method with no results, a propagation
// input not rooted at an argument. The fragment is dropped and analysis
// continues; model inconsistencies are never fatal.
type ConsistencyError struct {
	Method string
	Detail string
}

func (e ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent model for %s: %s", e.Method, e.Detail)
}

// OnConsistencyError is invoked once per dropped fragment. The default
// logs and continues; tests swap it to observe what was dropped.
var OnConsistencyError = func(err ConsistencyError) { log.Print(err) }

// Inconsistent reports one dropped fragment through the
// OnConsistencyError hook.
func Inconsistent(method, format string, args ...interface{}) {
	OnConsistencyError(ConsistencyError{Method: method, Detail: fmt.Sprintf(format, args...)})
}

// ValidateForSignature drops every fragment of m that cannot apply to a
// method with the given parameter count and result presence: facts on
// argument indices beyond the arity, Return-rooted facts on a method
// with no results, and propagation inputs not rooted at an argument.
// Each drop is reported through OnConsistencyError.
func (m *Model) ValidateForSignature(params int, hasResults bool) {
	sections := []struct {
		name  string
		trees map[string]domain.TaintTree
	}{
		{"generation", m.Generations},
		{"parameter_source", m.ParameterSources},
		{"sink", m.Sinks},
	}
	for _, section := range sections {
		for portKey := range section.trees {
			port, err := access.Parse(portKey)
			if err != nil {
				Inconsistent(m.Method, "%s port %q does not parse: %v", section.name, portKey, err)
				delete(section.trees, portKey)
				continue
			}
			switch port.Root.Kind {
			case access.Argument:
				if port.Root.Arg >= params {
					Inconsistent(m.Method, "%s port %s exceeds the method's %d parameter(s)", section.name, portKey, params)
					delete(section.trees, portKey)
				}
			case access.Return:
				if !hasResults {
					Inconsistent(m.Method, "%s port %s on a method with no results", section.name, portKey)
					delete(section.trees, portKey)
				}
			}
		}
	}

	for portKey := range m.Propagations {
		port, err := access.Parse(portKey)
		if err != nil || port.Root.Kind != access.Argument {
			Inconsistent(m.Method, "propagation input %q must be rooted at an argument", portKey)
			delete(m.Propagations, portKey)
			delete(m.PropagationTransforms, portKey)
			continue
		}
		if port.Root.Arg >= params {
			Inconsistent(m.Method, "propagation input %s exceeds the method's %d parameter(s)", portKey, params)
			delete(m.Propagations, portKey)
			delete(m.PropagationTransforms, portKey)
		}
	}
}
