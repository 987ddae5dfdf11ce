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

// Package modelfile decodes persisted per-method taint models from
// their JSON/YAML document form into model.Model values, so summaries
// for methods outside the analyzed program (or pinned by hand) can be
// seeded into the registry before the fixed point runs. An
// inconsistent fragment -- an unparsable port, a sink on a malformed
// access path, a propagation rooted at Return -- is logged and dropped;
// loading never fails on a single bad entry.
package modelfile

import (
	"fmt"
	"io/ioutil"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
)

// TaintConfig is the serialized form of one frame's worth of taint
// declared at a port.
type TaintConfig struct {
	Kind           string   `json:"kind"`
	PartialLabel   string   `json:"partial_label,omitempty"`
	CalleePort     string   `json:"callee_port,omitempty"`
	Callee         string   `json:"callee,omitempty"`
	Distance       int      `json:"distance,omitempty"`
	Origins        []string `json:"origins,omitempty"`
	MayFeatures    []string `json:"may_features,omitempty"`
	AlwaysFeatures []string `json:"always_features,omitempty"`
	Features       []string `json:"features,omitempty"`
	ViaTypeOf      []string `json:"via_type_of,omitempty"`
	ViaValueOf     []string `json:"via_value_of,omitempty"`
	CanonicalName  string   `json:"canonical_name,omitempty"`
}

// PortTaint is one (port, taint) entry of a model section.
type PortTaint struct {
	Port  string        `json:"port"`
	Taint []TaintConfig `json:"taint"`
}

// PropagationSpec declares one input-to-output propagation, optionally
// restricted to an output path with a collapse depth and carrying a
// transform sequence.
type PropagationSpec struct {
	Input string `json:"input"`
	// Output is the output root, "Return" or "Argument(i)".
	Output string `json:"output"`
	// OutputPath optionally narrows the write to a path below the
	// output root; CollapseDepth bounds how much input structure
	// survives (negative preserves shape).
	OutputPath    string   `json:"output_path,omitempty"`
	CollapseDepth *int     `json:"collapse_depth,omitempty"`
	Transforms    []string `json:"transforms,omitempty"`
}

// SanitizerSpec declares a sanitizer: global when Port is empty,
// port-scoped otherwise; sanitizing every kind when Kinds is empty.
type SanitizerSpec struct {
	Port  string   `json:"port,omitempty"`
	Kinds []string `json:"kinds,omitempty"`
}

// ArgumentFeaturesSpec attaches features to whatever taint callers pass
// at one argument.
type ArgumentFeaturesSpec struct {
	Argument int      `json:"argument"`
	Features []string `json:"features"`
}

// SetterSpec is the serialized inline-as-setter shortcut.
type SetterSpec struct {
	Target string `json:"target"`
	Value  string `json:"value"`
}

// Entry is the serialized form of one method's model.
type Entry struct {
	Method string   `json:"method"`
	Modes  []string `json:"modes,omitempty"`
	Freeze []string `json:"freeze,omitempty"`

	Generations      []PortTaint `json:"generations,omitempty"`
	ParameterSources []PortTaint `json:"parameter_sources,omitempty"`
	Sinks            []PortTaint `json:"sinks,omitempty"`
	EffectSources    []PortTaint `json:"effect_sources,omitempty"`
	EffectSinks      []PortTaint `json:"effect_sinks,omitempty"`

	Propagation []PropagationSpec `json:"propagation,omitempty"`
	Sanitizers  []SanitizerSpec   `json:"sanitizers,omitempty"`

	AttachToSources        []string               `json:"attach_to_sources,omitempty"`
	AttachToSinks          []string               `json:"attach_to_sinks,omitempty"`
	AttachToPropagations   []string               `json:"attach_to_propagations,omitempty"`
	AddFeaturesToArguments []ArgumentFeaturesSpec `json:"add_features_to_arguments,omitempty"`

	InlineAsGetter string      `json:"inline_as_getter,omitempty"`
	InlineAsSetter *SetterSpec `json:"inline_as_setter,omitempty"`

	ModelGenerators []string `json:"model_generators,omitempty"`
}

var modeNames = map[string]model.Modes{
	"skip-analysis":                   model.SkipAnalysis,
	"add-via-obscure-feature":         model.AddViaObscureFeature,
	"taint-in-taint-out":              model.TaintInTaintOut,
	"taint-in-taint-this":             model.TaintInTaintThis,
	"no-join-virtual-overrides":       model.NoJoinVirtualOverrides,
	"no-collapse-on-propagation":      model.NoCollapseOnPropagation,
	"alias-memory-location-on-invoke": model.AliasMemoryLocationOnInvoke,
	"strong-write-on-propagation":     model.StrongWriteOnPropagation,
}

var freezeNames = map[string]model.Frozen{
	"generations":  model.FrozenGenerations,
	"sinks":        model.FrozenSinks,
	"propagations": model.FrozenPropagations,
	"sanitizers":   model.FrozenSanitizers,
}

// Load reads and decodes the model file at path. The document is a
// YAML (or JSON) list of Entry values.
func Load(path string) ([]*model.Model, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading model file: %v", err)
	}
	return Decode(raw)
}

// Decode turns a serialized model document into Models, dropping (and
// logging) inconsistent fragments.
func Decode(raw []byte) ([]*model.Model, error) {
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	out := make([]*model.Model, 0, len(entries))
	for _, e := range entries {
		if e.Method == "" {
			model.Inconsistent("<unnamed>", "model entry with no method name dropped")
			continue
		}
		out = append(out, decodeEntry(e))
	}
	return out, nil
}

func decodeEntry(e Entry) *model.Model {
	m := model.New(e.Method)

	for _, name := range e.Modes {
		bit, ok := modeNames[name]
		if !ok {
			model.Inconsistent(e.Method, "unknown mode %q dropped", name)
			continue
		}
		m.Modes |= bit
	}
	for _, name := range e.Freeze {
		bit, ok := freezeNames[name]
		if !ok {
			model.Inconsistent(e.Method, "unknown freeze field %q dropped", name)
			continue
		}
		m.Frozen |= bit
	}

	decodeSection(e.Method, "generations", e.Generations, m.Generations, domain.GenerationBounds, frame.Declaration)
	decodeSection(e.Method, "parameter_sources", e.ParameterSources, m.ParameterSources, domain.ParameterSourceBounds, frame.Declaration)
	decodeSection(e.Method, "sinks", e.Sinks, m.Sinks, domain.ParameterSourceBounds, frame.Declaration)
	decodeSection(e.Method, "effect_sources", e.EffectSources, m.CallEffectSources, domain.CallEffectBounds, frame.Declaration)
	decodeSection(e.Method, "effect_sinks", e.EffectSinks, m.CallEffectSinks, domain.CallEffectBounds, frame.Declaration)

	for _, p := range e.Propagation {
		decodePropagation(e.Method, p, m)
	}

	for _, s := range e.Sanitizers {
		rule := model.SanitizerRule{KindNames: s.Kinds}
		if s.Port == "" {
			m.GlobalSanitizers = append(m.GlobalSanitizers, rule)
			continue
		}
		if _, err := access.Parse(s.Port); err != nil {
			model.Inconsistent(e.Method, "sanitizer port %q dropped: %v", s.Port, err)
			continue
		}
		m.PortSanitizers[s.Port] = append(m.PortSanitizers[s.Port], rule)
	}

	m.AttachToSources = e.AttachToSources
	m.AttachToSinks = e.AttachToSinks
	m.AttachToPropagations = e.AttachToPropagations
	for _, af := range e.AddFeaturesToArguments {
		if af.Argument < 0 {
			model.Inconsistent(e.Method, "add_features_to_arguments with negative index dropped")
			continue
		}
		m.AddFeaturesToArguments[af.Argument] = append(m.AddFeaturesToArguments[af.Argument], af.Features...)
	}

	if e.InlineAsGetter != "" {
		if ap, err := access.Parse(e.InlineAsGetter); err == nil && ap.Root.Kind == access.Argument {
			m.InlineAsGetter = &ap
		} else {
			model.Inconsistent(e.Method, "inline_as_getter %q dropped", e.InlineAsGetter)
		}
	}
	if e.InlineAsSetter != nil {
		target, terr := access.Parse(e.InlineAsSetter.Target)
		value, verr := access.Parse(e.InlineAsSetter.Value)
		if terr == nil && verr == nil && target.Root.Kind == access.Argument && value.Root.Kind == access.Argument {
			m.InlineAsSetter = &model.Setter{Target: target, Value: value}
		} else {
			model.Inconsistent(e.Method, "inline_as_setter dropped (target %q, value %q)", e.InlineAsSetter.Target, e.InlineAsSetter.Value)
		}
	}

	m.ModelGenerators = e.ModelGenerators
	return m
}

func decodeSection(method, section string, entries []PortTaint, into map[string]domain.TaintTree, bounds domain.Bounds, callKind frame.CallKind) {
	for _, pt := range entries {
		port, err := access.Parse(pt.Port)
		if err != nil {
			model.Inconsistent(method, "%s port %q dropped: %v", section, pt.Port, err)
			continue
		}
		t := domain.Bottom
		for _, tc := range pt.Taint {
			f, err := decodeFrame(tc, callKind)
			if err != nil {
				model.Inconsistent(method, "%s taint on %q dropped: %v", section, pt.Port, err)
				continue
			}
			t = t.Add(f)
		}
		if t.IsBottom() {
			continue
		}
		rootKey := access.AccessPath{Root: port.Root}.String()
		tree := into[rootKey].Write(port.Path, t)
		into[rootKey] = domain.Bound(tree, bounds)
	}
}

func decodeFrame(tc TaintConfig, callKind frame.CallKind) (frame.Frame, error) {
	var zero frame.Frame
	if tc.Kind == "" {
		return zero, fmt.Errorf("taint config with no kind")
	}
	var k *kind.Kind
	if tc.PartialLabel != "" {
		k = kind.NewPartial(tc.Kind, tc.PartialLabel)
	} else {
		k = kind.NewNamed(tc.Kind)
	}
	f := frame.New(k)
	f.CallKind = callKind
	f.Callee = tc.Callee
	if tc.Distance < 0 {
		return zero, fmt.Errorf("negative distance")
	}
	f.Distance = frame.Distance(tc.Distance)
	if tc.CalleePort != "" && tc.CalleePort != "Leaf" {
		port, err := access.Parse(tc.CalleePort)
		if err != nil {
			return zero, fmt.Errorf("bad callee_port %q: %v", tc.CalleePort, err)
		}
		f.CalleePort = port
	}
	for _, name := range tc.MayFeatures {
		f.Features = f.Features.AddMay(feature.Intern(name))
	}
	for _, name := range tc.AlwaysFeatures {
		f.Features = f.Features.AddAlways(feature.Intern(name))
	}
	if len(tc.Features) > 0 {
		fs := make([]*feature.Feature, len(tc.Features))
		for i, name := range tc.Features {
			fs[i] = feature.Intern(name)
		}
		f.UserFeatures = feature.NewSet(fs...)
	}
	for _, origin := range tc.Origins {
		f.Origins = append(f.Origins, frame.Origin{Method: origin})
	}
	for _, port := range tc.ViaTypeOf {
		ap, err := access.Parse(port)
		if err != nil {
			return zero, fmt.Errorf("bad via_type_of port %q: %v", port, err)
		}
		f.ViaTypeOf = append(f.ViaTypeOf, ap)
	}
	for _, port := range tc.ViaValueOf {
		ap, err := access.Parse(port)
		if err != nil {
			return zero, fmt.Errorf("bad via_value_of port %q: %v", port, err)
		}
		f.ViaValueOf = append(f.ViaValueOf, ap)
	}
	if tc.CanonicalName != "" {
		// A template placeholder is instantiated from a via-type-of or
		// via-value-of port; a template with no such source can never
		// resolve and is a model inconsistency.
		if strings.Contains(tc.CanonicalName, "%") && len(tc.ViaTypeOf) == 0 && len(tc.ViaValueOf) == 0 {
			return zero, fmt.Errorf("canonical name template %q has no via-type-of or via-value-of source to instantiate it", tc.CanonicalName)
		}
		f.CanonicalNames = []frame.CanonicalName{{Template: tc.CanonicalName}}
	}
	return f, nil
}

func decodePropagation(method string, p PropagationSpec, m *model.Model) {
	input, err := access.Parse(p.Input)
	if err != nil || input.Root.Kind != access.Argument {
		model.Inconsistent(method, "propagation input %q dropped: must be rooted at an argument", p.Input)
		return
	}
	output, err := access.Parse(p.Output)
	if err != nil {
		model.Inconsistent(method, "propagation output %q dropped: %v", p.Output, err)
		return
	}

	var pk *kind.Kind
	switch output.Root.Kind {
	case access.Return:
		pk = kind.NewLocalReturn()
	case access.Argument:
		pk = kind.NewLocalArgument(output.Root.Arg)
	default:
		model.Inconsistent(method, "propagation output %q dropped: must be Return or Argument", p.Output)
		return
	}

	f := frame.New(pk)
	if p.OutputPath != "" || p.CollapseDepth != nil {
		pathKey := p.Output
		if p.OutputPath != "" {
			pathKey = p.OutputPath
		}
		depth := -1
		if p.CollapseDepth != nil {
			depth = *p.CollapseDepth
		}
		f.OutputPaths = map[string]int{pathKey: depth}
	}

	inKey := p.Input
	cur := m.Propagations[inKey]
	m.Propagations[inKey] = cur.Join(domain.LeafTree(domain.FromFrame(f)))

	if len(p.Transforms) > 0 {
		ts := make([]kind.Transform, len(p.Transforms))
		for i, name := range p.Transforms {
			ts[i] = kind.Transform{Name: name}
		}
		m.PropagationTransforms[inKey] = append(m.PropagationTransforms[inKey], ts...)
	}
}
