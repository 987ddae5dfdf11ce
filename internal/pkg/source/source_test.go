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

package source

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/go-taint/tcta/internal/pkg/config"
	"github.com/go-taint/tcta/internal/pkg/fieldpropagator"
)

func buildSSA(t *testing.T, src string) (*ssa.Package, *types.Info) {
	t.Helper()

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	pkg := types.NewPackage("sourcetest", "")
	ssaPkg, info, err := ssautil.BuildPackage(&types.Config{Importer: importer.Default()}, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}
	return ssaPkg, info
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := new(config.Config)
	raw := []byte(`
Sources:
  - PackageRE: "sourcetest"
    TypeRE: "^Secret$"
    FieldRE: ".*"
Sanitizers:
  - PackageRE: "sourcetest"
    ReceiverRE: "^$"
    MethodRE: "^scrub$"
`)
	if err := setConfigYAML(c, raw); err != nil {
		t.Fatal(err)
	}
	return c
}

func identifyIn(t *testing.T, src string) map[string][]*Source {
	t.Helper()
	ssaPkg, _ := buildSSA(t, src)
	conf := testConfig(t)

	byName := map[string][]*Source{}
	for name, member := range ssaPkg.Members {
		fn, ok := member.(*ssa.Function)
		if !ok {
			continue
		}
		var sources []*Source
		sources = append(sources, sourcesFromParams(fn, conf, nil)...)
		sources = append(sources, sourcesFromClosures(fn, conf, nil)...)
		sources = append(sources, sourcesFromBlocks(fn, conf, nil, fieldpropagator.ResultType{})...)
		if len(sources) > 0 {
			byName[name] = sources
		}
	}
	return byName
}

const fixture = `package sourcetest

type Secret struct {
	Data string
	ID   int
}

func scrub(s string) string { return s }

func takesSecret(s Secret) {
	_ = s
}

func makesSecret() *Secret {
	return &Secret{}
}

func plain(x int) int {
	return x + 1
}
`

func TestParamsOfSourceTypeAreIdentified(t *testing.T) {
	got := identifyIn(t, fixture)
	if len(got["takesSecret"]) == 0 {
		t.Error("expected the Secret-typed parameter of takesSecret to be identified as a source")
	}
	if len(got["plain"]) != 0 {
		t.Errorf("expected no sources in plain, got %d", len(got["plain"]))
	}
}

func TestAllocOfSourceTypeIsIdentified(t *testing.T) {
	got := identifyIn(t, fixture)
	if len(got["makesSecret"]) == 0 {
		t.Error("expected the Secret allocation in makesSecret to be identified as a source")
	}
}

func TestSanitizedValueIsNotASource(t *testing.T) {
	got := identifyIn(t, `package sourcetest

type Secret struct {
	Data string
}

func scrub(s string) string { return s }

func sanitized(s Secret) string {
	out := scrub(s.Data)
	return out
}
`)
	// The parameter itself is a source; the scrubbed result must not
	// add a second one from the call's value.
	for _, src := range got["sanitized"] {
		if _, ok := src.Node.(*ssa.Call); ok {
			t.Error("a value produced by a configured sanitizer must not be identified as a source")
		}
	}
}

// setConfigYAML round-trips raw through the package's own YAML decoding
// so the test exercises the same matcher compilation the analyzer uses.
func setConfigYAML(c *config.Config, raw []byte) error {
	return config.UnmarshalBytes(raw, c)
}
