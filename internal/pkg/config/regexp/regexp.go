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

// Package regexp wraps regexp.Regexp with JSON/YAML unmarshalling, so
// that config matchers can be declared as plain strings in a config
// document and still compiled once at load time.
package regexp

import (
	"encoding/json"
	"regexp"
)

// Regexp is a regexp.Regexp that unmarshals from a quoted pattern
// string, compiling the pattern exactly once.
type Regexp struct {
	*regexp.Regexp
}

// New compiles pattern into a Regexp.
func New(pattern string) (*Regexp, error) {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regexp{compiled}, nil
}

// UnmarshalJSON compiles data, a JSON string, into the wrapped pattern.
func (r *Regexp) UnmarshalJSON(data []byte) error {
	var pattern string
	if err := json.Unmarshal(data, &pattern); err != nil {
		return err
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.Regexp = compiled
	return nil
}

// MatchString reports whether s matches the pattern. An unset Regexp
// (the zero value, never successfully unmarshalled) matches nothing.
func (r *Regexp) MatchString(s string) bool {
	if r == nil || r.Regexp == nil {
		return false
	}
	return r.Regexp.MatchString(s)
}
