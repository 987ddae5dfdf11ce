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
	"flag"
	"fmt"
	"go/types"
	"io/ioutil"
	"log"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/go-taint/tcta/internal/pkg/config/regexp"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/rules"
	"github.com/go-taint/tcta/internal/pkg/utils"
	"golang.org/x/tools/go/ssa"
)

// FlagSet should be used by analyzers to reuse -config flag.
var FlagSet flag.FlagSet
var configFile string

// DumpDir, when non-empty, names a directory tcta writes one SSA/DOT
// dump per analyzed function into, for inspecting what the driver
// actually saw. Empty (the default) disables dumping entirely.
var DumpDir string

func init() {
	FlagSet.StringVar(&configFile, "config", "config.json", "path to analysis configuration file")
	FlagSet.StringVar(&DumpDir, "dumpssa", "", "if set, write each analyzed function's SSA and CFG dot graph under this directory")
}

type Matcher interface {
	MatchPkg(path string) bool
	MatchType(path, typeName string) bool
	MatchField(path, typeName, fieldName string) bool
	MatchFunction(path, receiver, name string) bool
}

// Config contains matchers and analysis scope information. It is
// unmarshalled with sigs.k8s.io/yaml, so either a YAML or a JSON
// document parses into it.
type Config struct {
	Sources    []sourceMatcher
	Sinks      []funcMatcher
	Sanitizers []funcMatcher
	FieldTags  []fieldTagMatcher
	Exclude    []funcMatcher

	Rules            []RuleSpec
	MultiSourceRules []MultiSourceRuleSpec
	// ExploitabilityRules complete in two steps: a source reaching a
	// sink only records the combination, and the issue fires once the
	// combined sink meets an exploitability port.
	ExploitabilityRules []RuleSpec
	ModelGenerators     []ModelGeneratorSpec

	// ModelFiles lists paths of model files to preload into the
	// analysis: per-method summaries declared up front instead of
	// inferred from a body.
	ModelFiles []string

	// Transforms names functions known to transform a tainted value in a
	// way worth recording on its propagation (e.g. an encoder or hashing
	// routine), matched the same way Sanitizers are.
	Transforms []transformMatcher

	// Literals matches string literal values that should be treated as
	// sources the moment they are materialized (e.g. a known credential
	// prefix).
	Literals []literalSourceMatcher

	// ViaCastTypes restricts which type assertions get a via-cast
	// feature; empty tags every asserted type.
	ViaCastTypes []regexp.Regexp

	// ReportMessage is parsed and stored, but reported issues do not use
	// it: their message always comes from rules.IssueMessage.
	ReportMessage string

	// AllowPanicOnTaintedValues disables reporting a tainted value
	// reaching a panic as a sink-reachable flow.
	AllowPanicOnTaintedValues bool
}

// RuleSpec configures one simple source -> sink rule.
type RuleSpec struct {
	Code    int
	Name    string
	Sources []string
	Sinks   []string
	Message string
}

// MultiSourceRuleSpec configures one multi-source partial rule: a map
// from leg label to the source kinds fulfilling that leg (exactly two
// labels are required), plus the partial sink kinds the rule listens
// on.
type MultiSourceRuleSpec struct {
	Code         int
	Name         string
	MultiSources map[string][]string
	PartialSinks []string
	Message      string
}

// ModelGeneratorSpec is one entry of the ModelGenerators section. The
// section is parsed and stored, but the analyzer does not read it: the
// detection passes that produce models run whatever it lists.
type ModelGeneratorSpec struct {
	Name string
}

// RuleSet builds a rules.Set from the configured Rules, interning a
// kind.Kind for every named source/sink kind. A multi-source rule with
// a leg count other than two is a configuration inconsistency: it is
// logged and dropped, never fatal.
func (c Config) RuleSet() rules.Set {
	var set rules.Set
	for _, rs := range c.Rules {
		r := &rules.Rule{Code: rs.Code, Name: rs.Name, Message: rs.Message}
		for _, s := range rs.Sources {
			r.Sources = append(r.Sources, kind.NewNamed(s))
		}
		for _, s := range rs.Sinks {
			r.Sinks = append(r.Sinks, kind.NewNamed(s))
		}
		set.Simple = append(set.Simple, r)
	}
	for _, rs := range c.ExploitabilityRules {
		r := &rules.ExploitabilityRule{Code: rs.Code, Name: rs.Name, Message: rs.Message}
		for _, s := range rs.Sources {
			r.Sources = append(r.Sources, kind.NewNamed(s))
		}
		for _, s := range rs.Sinks {
			r.Sinks = append(r.Sinks, kind.NewNamed(s))
		}
		set.Exploitability = append(set.Exploitability, r)
	}
	for _, rs := range c.MultiSourceRules {
		if len(rs.MultiSources) != 2 {
			log.Printf("dropping multi-source rule %q: %d labels declared, exactly 2 required", rs.Name, len(rs.MultiSources))
			continue
		}
		r := &rules.MultiSourceRule{Code: rs.Code, Name: rs.Name, Message: rs.Message}
		r.PartialSinks = append(r.PartialSinks, rs.PartialSinks...)
		labels := make([]string, 0, len(rs.MultiSources))
		for label := range rs.MultiSources {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			leg := rules.PartialLeg{Label: label}
			for _, s := range rs.MultiSources[label] {
				leg.Sources = append(leg.Sources, kind.NewNamed(s))
			}
			r.Legs = append(r.Legs, leg)
		}
		set.Multi = append(set.Multi, r)
	}
	return set
}

// IsSourceFieldTag determines whether the struct tag key/value pair is a
// configured (or built-in) source marker.
func (c Config) IsSourceFieldTag(key, val string) bool {
	if key == "tcta" && val == "source" {
		return true
	}
	for _, ft := range c.FieldTags {
		if ft.Key != key {
			continue
		}
		for _, v := range strings.Split(val, ",") {
			if v == ft.Value {
				return true
			}
		}
	}
	return false
}

// IsExcluded determines if a function matches one of the exclusion patterns.
func (c Config) IsExcluded(path string, recv string, name string) bool {
	for _, pm := range c.Exclude {
		if pm.MatchFunction(path, recv, name) {
			return true
		}
	}
	return false
}

func (c Config) IsSink(path, recv, name string) bool {
	for _, p := range c.Sinks {
		if p.MatchFunction(path, recv, name) {
			return true
		}
	}
	return false
}

func (c Config) IsSanitizer(path, recv, name string) bool {
	for _, p := range c.Sanitizers {
		if p.MatchFunction(path, recv, name) {
			return true
		}
	}
	return false
}

// DecomposeType returns the package path and type name of a Named Type.
// Returns empty strings if the type is not *types.Named
func DecomposeType(t types.Type) (path, name string) {
	n, ok := t.(*types.Named)
	if !ok {
		return
	}

	return n.Obj().Pkg().Path(), n.Obj().Name()
}

// IsSourceType determines whether the named type at path is a source.
func (c Config) IsSourceType(path string, name string) bool {
	for _, p := range c.Sources {
		if p.MatchType(path, name) {
			return true
		}
	}
	return false
}

// IsSource is a convenience wrapper around IsSourceType for callers
// holding a types.Type directly instead of its decomposed path/name.
func (c Config) IsSource(t types.Type) bool {
	return c.IsSourceType(DecomposeType(t))
}

func (c Config) IsSourceField(typ types.Type, fld *types.Var) bool {
	n, ok := typ.(*types.Named)
	if !ok || types.IsInterface(n) {
		return false
	}

	path, typeName, fieldName := n.Obj().Pkg().Path(), n.Obj().Name(), fld.Name()
	for _, p := range c.Sources {
		if p.MatchField(path, typeName, fieldName) {
			return true
		}
	}
	return false
}

func (c Config) IsSourceFieldAddr(fa *ssa.FieldAddr) bool {
	// fa.X.Type() refers to the surrounding struct's type.
	path, typeName, fieldName := utils.DecomposeField(utils.Dereference(fa.X.Type()), fa.Field)
	for _, p := range c.Sources {
		if p.MatchField(path, typeName, fieldName) {
			return true
		}
	}
	return false
}

// TransformName returns the transform label for a function, if any
// configured transform matches it.
func (c Config) TransformName(path, recv, name string) (string, bool) {
	for _, tm := range c.Transforms {
		if tm.MatchFunction(path, recv, name) {
			label := tm.name
			if label == "" {
				label = name
			}
			return label, true
		}
	}
	return "", false
}

// LiteralSourceKind returns the source kind name for a string literal,
// if any configured literal matcher matches its value.
func (c Config) LiteralSourceKind(value string) (string, bool) {
	for _, lm := range c.Literals {
		if orVacuous(lm.value).MatchString(value) {
			return lm.kind, true
		}
	}
	return "", false
}

// IsViaCastType reports whether taint asserted to the named type should
// carry a via-cast feature. An empty allow-list admits every type.
func (c Config) IsViaCastType(typeName string) bool {
	if len(c.ViaCastTypes) == 0 {
		return true
	}
	for _, re := range c.ViaCastTypes {
		if re.MatchString(typeName) {
			return true
		}
	}
	return false
}

func unqualifiedName(v *types.Var) string {
	packageQualifiedName := v.Type().String()
	dotPos := strings.LastIndexByte(packageQualifiedName, '.')
	if dotPos == -1 {
		return packageQualifiedName
	}
	return packageQualifiedName[dotPos+1:]
}

var readFileOnce sync.Once
var readConfigCached *Config
var readConfigCachedErr error

// ReadConfig loads and caches the Config named by the -config flag, the
// first time it is called; subsequent calls return the cached value.
// Tests that rewrite the flag mid-process reset readFileOnce to force a
// reload.
func ReadConfig() (*Config, error) {
	readFileOnce.Do(func() {
		c := new(Config)
		bytes, err := ioutil.ReadFile(configFile)
		if err != nil {
			readConfigCachedErr = fmt.Errorf("error reading analysis config: %v", err)
			return
		}

		if err := yaml.Unmarshal(bytes, c); err != nil {
			readConfigCachedErr = err
			return
		}
		readConfigCached = c
	})
	return readConfigCached, readConfigCachedErr
}

// SetConfig overrides the cached Config directly, bypassing the -config
// flag entirely. Used by callers (and tests) that construct a Config in
// memory instead of loading one from disk.
func SetConfig(c *Config) {
	readFileOnce = sync.Once{}
	readFileOnce.Do(func() {
		readConfigCached = c
		readConfigCachedErr = nil
	})
}

// SetBytes parses raw YAML (or JSON, which is valid YAML) into the
// cached Config, bypassing the -config flag.
func SetBytes(bytes []byte) error {
	c := new(Config)
	if err := UnmarshalBytes(bytes, c); err != nil {
		return err
	}
	SetConfig(c)
	return nil
}

// UnmarshalBytes parses raw YAML (or JSON) into c without touching the
// cached Config, for callers that build configs in isolation.
func UnmarshalBytes(raw []byte, c *Config) error {
	return yaml.Unmarshal(raw, c)
}

// DecomposeFunction returns the path, receiver, and name strings of a ssa.Function.
// For functions that have no receiver, returns an empty string for recv.
// If f is nil, returns empty strings for all return values.
func DecomposeFunction(f *ssa.Function) (path, recv, name string) {
	if f == nil {
		return
	}

	path = f.Pkg.Pkg.Path()
	name = f.Name()
	recvVar := f.Signature.Recv()
	if recvVar != nil {
		recv = unqualifiedName(recvVar)
	}
	return
}
