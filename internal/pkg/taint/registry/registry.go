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

// Package registry implements the shared method-to-Model store the
// fixed-point driver reads and writes between iterations. It is a
// free-standing store rather than go/analysis facts: Models are joined
// repeatedly within one pass run, not exported once per object.
package registry

import (
	"sort"
	"sync"

	"github.com/go-taint/tcta/internal/pkg/taint/model"
)

// Registry accumulates Models across the fixed-point computation. It is
// safe for concurrent use; the driver may run independent strongly
// connected components of the call graph in parallel.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*model.Model
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{models: map[string]*model.Model{}}
}

// Get returns the current Model for method, or a fresh empty Model if
// none has been recorded yet.
func (r *Registry) Get(method string) *model.Model {
	r.mu.RLock()
	m, ok := r.models[method]
	r.mu.RUnlock()
	if ok {
		return m
	}
	return model.New(method)
}

// Join merges m into method's current Model, returning true if the
// merge changed anything (the fixed-point driver uses this to decide
// whether method's callers must be re-queued).
func (r *Registry) Join(method string, m *model.Model) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.models[method]
	if !ok {
		r.models[method] = m
		return true
	}
	joined := cur.Join(m)
	r.models[method] = joined
	if cur.Leq(joined) && joined.Leq(cur) && len(joined.Issues) == len(cur.Issues) {
		return false
	}
	return true
}

// Set overwrites method's Model unconditionally, used to seed
// model-generator-pinned Models before the fixed-point computation
// begins.
func (r *Registry) Set(method string, m *model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[method] = m
}

// Methods returns every method name with a recorded Model, sorted for
// deterministic iteration.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for k := range r.models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// All returns a snapshot copy of every recorded Model, keyed by method.
func (r *Registry) All() map[string]*model.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*model.Model, len(r.models))
	for k, v := range r.models {
		out[k] = v
	}
	return out
}
