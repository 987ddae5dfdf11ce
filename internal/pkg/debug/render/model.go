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

package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-taint/tcta/internal/pkg/taint/access"
	"github.com/go-taint/tcta/internal/pkg/taint/domain"
	"github.com/go-taint/tcta/internal/pkg/taint/model"
)

// Model renders a method's final taint Model as plain text: one
// section per non-empty field, one line per (port, path, kind).
func Model(m *model.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "method %s\n", m.Method)
	renderTreeMap(&b, "generations", m.Generations)
	renderTreeMap(&b, "sinks", m.Sinks)
	renderTreeMap(&b, "propagations", m.Propagations)
	if len(m.Issues) > 0 {
		b.WriteString("issues:\n")
		for _, iss := range m.Issues {
			fmt.Fprintf(&b, "  [%s] %s\n", iss.RuleName, iss.Message)
		}
	}
	return b.String()
}

func renderTreeMap(b *strings.Builder, section string, trees map[string]domain.TaintTree) {
	if len(trees) == 0 {
		return
	}
	ports := make([]string, 0, len(trees))
	for port := range trees {
		ports = append(ports, port)
	}
	sort.Strings(ports)

	fmt.Fprintf(b, "%s:\n", section)
	for _, port := range ports {
		tr := trees[port]
		for _, p := range tr.Paths() {
			t := tr.Get(p)
			for _, k := range t.Kinds() {
				fmt.Fprintf(b, "  %s%s: %s\n", port, pathString(p), k.String())
			}
		}
	}
}

func pathString(p access.Path) string {
	var b strings.Builder
	for _, e := range p {
		b.WriteString(e.String())
	}
	return b.String()
}
