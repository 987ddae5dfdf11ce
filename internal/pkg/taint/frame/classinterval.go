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

package frame

import (
	"go/types"
	"sync"
)

// classIntervals assigns every distinct concrete receiver type observed
// so far a singleton Interval, in first-seen order, the same way
// kind.intern hands out stable identifiers for Kinds. Two calls on the
// same concrete receiver type always narrow to the same interval, so a
// frame whose interval was fixed at one call site is dropped outright if
// it is later instantiated at a call site with a different concrete
// receiver type.
var (
	classMu   sync.Mutex
	classSeen []types.Type
)

// TypeInterval returns the singleton interval identifying t. A nil type
// (free function, or a receiver the driver could not resolve) returns
// AnyInterval: the identity, matching every receiver.
func TypeInterval(t types.Type) Interval {
	if t == nil {
		return AnyInterval
	}
	classMu.Lock()
	defer classMu.Unlock()
	for i, s := range classSeen {
		if types.Identical(s, t) {
			return Interval{Lower: i, Upper: i, Preserved: true}
		}
	}
	i := len(classSeen)
	classSeen = append(classSeen, t)
	return Interval{Lower: i, Upper: i, Preserved: true}
}
