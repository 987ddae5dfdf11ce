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

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-taint/tcta/internal/pkg/config/regexp"
)

// A stringMatcher matches a single name: a literal string, a compiled
// regexp, or the vacuous matcher standing in for an omitted field.
type stringMatcher interface {
	MatchString(string) bool
}

// literalMatcher matches exactly its own value.
type literalMatcher string

func (m literalMatcher) MatchString(s string) bool { return string(m) == s }

// vacuousMatcher matches anything; an omitted config field constrains
// nothing.
type vacuousMatcher struct{}

func (vacuousMatcher) MatchString(string) bool { return true }

func orVacuous(m stringMatcher) stringMatcher {
	if m == nil {
		return vacuousMatcher{}
	}
	return m
}

// rawFields decodes one matcher document into its raw fields, keyed by
// the lowercased field name (matching encoding/json's case-insensitive
// field resolution), and rejects fields outside the allowed set.
func rawFields(data []byte, allowed ...string) (map[string]json.RawMessage, error) {
	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		lk := strings.ToLower(k)
		known := false
		for _, a := range allowed {
			if lk == a {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown field %q in matcher configuration", k)
		}
		if _, dup := out[lk]; dup {
			return nil, fmt.Errorf("duplicate field %q in matcher configuration", k)
		}
		out[lk] = v
	}
	return out, nil
}

// fieldMatcher resolves one conceptual field that may be declared
// either as a literal (literalKey) or as a regexp (reKey), but not
// both; declaring neither yields the vacuous matcher.
func fieldMatcher(raw map[string]json.RawMessage, literalKey, reKey string) (stringMatcher, error) {
	litRaw, hasLit := raw[literalKey]
	reRaw, hasRE := raw[reKey]
	if hasLit && hasRE {
		return nil, fmt.Errorf("at most one of %s and %s may be set", literalKey, reKey)
	}
	if hasLit {
		var s string
		if err := json.Unmarshal(litRaw, &s); err != nil {
			return nil, err
		}
		return literalMatcher(s), nil
	}
	if hasRE {
		var s string
		if err := json.Unmarshal(reRaw, &s); err != nil {
			return nil, err
		}
		r, err := regexp.New(s)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return vacuousMatcher{}, nil
}

// A funcMatcher identifies functions by package, receiver, and method
// name, each either literal or regexp.
type funcMatcher struct {
	pkg      stringMatcher
	receiver stringMatcher
	method   stringMatcher
}

func (fm *funcMatcher) UnmarshalJSON(data []byte) error {
	raw, err := rawFields(data, "package", "packagere", "receiver", "receiverre", "method", "methodre")
	if err != nil {
		return err
	}
	if fm.pkg, err = fieldMatcher(raw, "package", "packagere"); err != nil {
		return err
	}
	if fm.receiver, err = fieldMatcher(raw, "receiver", "receiverre"); err != nil {
		return err
	}
	fm.method, err = fieldMatcher(raw, "method", "methodre")
	return err
}

func (fm funcMatcher) MatchPkg(path string) bool {
	return orVacuous(fm.pkg).MatchString(path)
}

func (fm funcMatcher) MatchType(path, typeName string) bool {
	return fm.MatchPkg(path) && orVacuous(fm.receiver).MatchString(typeName)
}

// funcMatchers do not match fields.
func (fm funcMatcher) MatchField(path, typeName, fieldName string) bool {
	return false
}

func (fm funcMatcher) MatchFunction(path, receiver, name string) bool {
	return fm.MatchType(path, receiver) && orVacuous(fm.method).MatchString(name)
}

// A sourceMatcher defines what types are or contain sources. Within a
// given type, specific field access can be designated as the actual
// source data via the field matcher.
type sourceMatcher struct {
	pkg   stringMatcher
	typ   stringMatcher
	field stringMatcher
}

func (sm *sourceMatcher) UnmarshalJSON(data []byte) error {
	raw, err := rawFields(data, "package", "packagere", "type", "typere", "field", "fieldre")
	if err != nil {
		return err
	}
	if sm.pkg, err = fieldMatcher(raw, "package", "packagere"); err != nil {
		return err
	}
	if sm.typ, err = fieldMatcher(raw, "type", "typere"); err != nil {
		return err
	}
	sm.field, err = fieldMatcher(raw, "field", "fieldre")
	return err
}

func (sm sourceMatcher) MatchPkg(path string) bool {
	return orVacuous(sm.pkg).MatchString(path)
}

func (sm sourceMatcher) MatchType(path, typeName string) bool {
	return sm.MatchPkg(path) && orVacuous(sm.typ).MatchString(typeName)
}

func (sm sourceMatcher) MatchField(path, typeName, fieldName string) bool {
	return sm.MatchType(path, typeName) && orVacuous(sm.field).MatchString(fieldName)
}

// sourceMatchers do not match functions.
func (sm sourceMatcher) MatchFunction(path, receiver, name string) bool {
	return false
}

// A fieldTagMatcher designates a struct tag key/value pair as a source
// marker. Both key and value are required.
type fieldTagMatcher struct {
	Key   string
	Value string
}

func (ft *fieldTagMatcher) UnmarshalJSON(data []byte) error {
	raw, err := rawFields(data, "key", "value")
	if err != nil {
		return err
	}
	keyRaw, hasKey := raw["key"]
	valRaw, hasVal := raw["value"]
	if !hasKey || !hasVal {
		return fmt.Errorf("a field tag matcher requires both a key and a value")
	}
	if err := json.Unmarshal(keyRaw, &ft.Key); err != nil {
		return err
	}
	return json.Unmarshal(valRaw, &ft.Value)
}

// A transformMatcher names functions whose call is recorded as a
// transform on any taint propagated through them, labeled with Name
// (or the matched function's own name when Name is omitted).
type transformMatcher struct {
	fn   funcMatcher
	name string
}

func (tm *transformMatcher) UnmarshalJSON(data []byte) error {
	raw, err := rawFields(data, "package", "packagere", "receiver", "receiverre", "method", "methodre", "name")
	if err != nil {
		return err
	}
	if nameRaw, ok := raw["name"]; ok {
		if err := json.Unmarshal(nameRaw, &tm.name); err != nil {
			return err
		}
		delete(raw, "name")
	}
	if tm.fn.pkg, err = fieldMatcher(raw, "package", "packagere"); err != nil {
		return err
	}
	if tm.fn.receiver, err = fieldMatcher(raw, "receiver", "receiverre"); err != nil {
		return err
	}
	tm.fn.method, err = fieldMatcher(raw, "method", "methodre")
	return err
}

func (tm transformMatcher) MatchFunction(path, receiver, name string) bool {
	return tm.fn.MatchFunction(path, receiver, name)
}

// A literalSourceMatcher designates exact string literal values as
// sources of the named kind.
type literalSourceMatcher struct {
	value stringMatcher
	kind  string
}

func (lm *literalSourceMatcher) UnmarshalJSON(data []byte) error {
	raw, err := rawFields(data, "value", "valuere", "kind")
	if err != nil {
		return err
	}
	if kindRaw, ok := raw["kind"]; ok {
		if err := json.Unmarshal(kindRaw, &lm.kind); err != nil {
			return err
		}
		delete(raw, "kind")
	}
	lm.value, err = fieldMatcher(raw, "value", "valuere")
	return err
}
