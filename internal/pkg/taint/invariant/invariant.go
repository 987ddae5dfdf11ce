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

// Package invariant holds the fatal assertion helpers used where a
// violation indicates a precondition bug in the caller, not bad input:
// they panic, and the driver recovers at its per-method boundary so one
// broken method cannot abort a whole-program run. Bad input -- a
// malformed model fragment, an unresolvable callee -- never asserts; it
// is dropped or logged instead.
package invariant

import "fmt"

// Assert panics unless cond holds.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("invariant violated: "+format, args...))
	}
}

// Unreachable panics unconditionally: the calling code path must not be
// reachable when every caller honors its preconditions.
func Unreachable(format string, args ...interface{}) {
	panic(fmt.Sprintf("unreachable: "+format, args...))
}
