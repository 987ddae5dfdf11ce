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

// Package propagate implements call-site instantiation (turning a
// callee's Model into caller-side Taint at a specific call instruction)
// and the transform engine used to apply a Propagation frame's
// transform sequence to the taint flowing through it.
package propagate

import (
	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/feature"
	"github.com/go-taint/tcta/internal/pkg/taint/frame"
	"github.com/go-taint/tcta/internal/pkg/taint/kind"
)

// CallSite carries the caller-side context needed to instantiate a
// callee frame: where the call happened, and facts only known at the
// call site (an inferred receiver interval, via-type-of/via-value-of
// substitutions already resolved to concrete strings by the driver).
type CallSite struct {
	Method           string
	Callee           string
	Position         frame.Origin
	ReceiverInterval frame.Interval
	ResolvedValues   map[string]string // canonical-name template var -> resolved value, e.g. "value" -> "\"literal\""

	// ArgumentTypes holds the static type of each argument at the call,
	// indexed by argument position, for resolving via-type-of ports.
	ArgumentTypes []string
	// ConstantArguments holds the constant value of each argument that
	// is a compile-time constant ("" otherwise), for resolving
	// via-value-of ports and indirect path indices.
	ConstantArguments []string
}

// droppedDistance reports whether bumping distance has exceeded the cap:
// a frame whose distance would exceed MaxDistance is dropped rather than
// kept imprecisely.
func droppedDistance(d frame.Distance) bool {
	return d > frame.MaxDistance
}

// maxOutputPathEntries bounds how many distinct output access paths a
// single instantiated propagation frame may carry before CollapseOutputPaths
// degrades it to the identity mapping.
const maxOutputPathEntries = 8

// Frame instantiates a single callee-declared frame at a call site: bump
// distance, promote the callee's user features to always-features,
// intersect intervals, resolve canonical names, and bound the
// instantiated frame's output-path map. Returns ok=false if the frame
// must be dropped (interval became empty, or distance exceeded the cap).
func Frame(f frame.Frame, site CallSite, port access.AccessPath) (frame.Frame, bool) {
	out := f
	out.CallKind = upgradeCallKind(f.CallKind)
	out.CalleePort = port
	out.Distance = f.Distance + 1
	if droppedDistance(out.Distance) {
		var zero frame.Frame
		return zero, false
	}
	out.Interval = f.Interval.Intersect(site.ReceiverInterval)
	if site.ReceiverInterval.Preserved {
		out.Interval.Preserved = true
	}
	if out.Interval.Empty() {
		var zero frame.Frame
		return zero, false
	}
	promoted := feature.PromoteUserFeatures(f.UserFeatures)
	out.Features = feature.MayAlways{
		May:    f.Features.May.Union(promoted.May),
		Always: f.Features.Always.Union(promoted.Always),
	}
	out.Features = resolveViaPorts(out.Features, f.ViaTypeOf, site.ArgumentTypes, "via-type-of:")
	out.Features = resolveViaPorts(out.Features, f.ViaValueOf, site.ConstantArguments, "via-value-of:")
	out.ViaTypeOf = nil
	out.ViaValueOf = nil
	out.Callee = site.Callee
	out.CallPosition = site.Position.Position
	out.Positions = f.Positions.Add(site.Position.Position)
	out.CanonicalNames = resolveNames(f.CanonicalNames, site.ResolvedValues)
	out.Origins = append(append([]frame.Origin(nil), f.Origins...), site.Position)
	out = CollapseOutputPaths(out, maxOutputPathEntries)
	return out, true
}

// resolveViaPorts renders each Argument(i) port against the call-site
// value table (argument types, or constant argument values) into an
// always-feature; a port whose value is unknown at this call site is
// dropped silently.
func resolveViaPorts(fs feature.MayAlways, ports []access.AccessPath, values []string, prefix string) feature.MayAlways {
	for _, p := range ports {
		if p.Root.Kind != access.Argument {
			continue
		}
		i := p.Root.Arg
		if i < 0 || i >= len(values) || values[i] == "" {
			continue
		}
		fs = fs.AddAlways(feature.Intern(prefix + values[i]))
	}
	return fs
}

func upgradeCallKind(c frame.CallKind) frame.CallKind {
	switch c {
	case frame.Declaration, frame.OriginCall:
		return frame.CallSite
	default:
		return c
	}
}

func resolveNames(names []frame.CanonicalName, resolved map[string]string) []frame.CanonicalName {
	if len(resolved) == 0 {
		return names
	}
	out := make([]frame.CanonicalName, len(names))
	for i, n := range names {
		if n.Resolved == "" {
			if v, ok := resolved[n.Template]; ok {
				n.Resolved = v
			}
		}
		out[i] = n
	}
	return out
}

// Taint instantiates every frame in t at the given call site, dropping
// frames whose instantiation fails (cap exceeded, empty interval).
func Taint(t domain.Taint, site CallSite, port access.AccessPath) domain.Taint {
	return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		return Frame(f, site, port)
	})
}

// Tree instantiates every frame in every node of tr at the given call
// site. Used to carry a callee's whole TaintTree (e.g. a
// parameter_source tree) across into the caller's environment at the
// argument's memory location.
func Tree(tr domain.TaintTree, site CallSite, port access.AccessPath) domain.TaintTree {
	out := domain.EmptyTree()
	for _, p := range tr.Paths() {
		t := tr.Get(p)
		out = out.Write(p, Taint(t, site, port))
	}
	return out
}

// ApplyTransforms wraps every frame of t with the given local transform
// sequence, re-wrapping its base kind as needed, so a value known to
// have passed through a named transform function (e.g. an encoder or a
// hashing routine) on its way through a propagation carries that fact
// forward to the next call site.
func ApplyTransforms(t domain.Taint, transforms []kind.Transform) domain.Taint {
	if len(transforms) == 0 {
		return t
	}
	return t.MapFrames(func(f frame.Frame) (frame.Frame, bool) {
		nf := f
		nf.Kind = kind.NewTransform(f.Kind, nil, transforms)
		return nf, true
	})
}

// CollapseOutputPaths degrades a propagation frame's OutputPaths map to
// the identity mapping (nil) once its size exceeds maxEntries, tagging
// the frame with the collapse-depth broadening feature.
func CollapseOutputPaths(f frame.Frame, maxEntries int) frame.Frame {
	if len(f.OutputPaths) <= maxEntries {
		return f
	}
	out := f
	out.OutputPaths = nil
	out.Features = out.Features.AddAlways(feature.BroadeningCollapseDepth)
	return out
}
