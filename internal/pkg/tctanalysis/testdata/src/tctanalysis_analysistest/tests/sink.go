// Package tests exercises the assembled analyzer end to end: a
// configured source type flowing to a configured sink function, with
// and without passing through a configured sanitizer first.
package tests

import (
	"fmt"

	"tctanalysis_analysistest/core"
)

// Direct reports the flow straight through, with no sanitizer in the
// way.
func Direct(s core.Source) {
	fmt.Println(s.Data) // want `\[configured-source-sink\] ConfiguredSource flows to ConfiguredSink`
}

// Sanitized passes the source's data through the configured sanitizer
// first, so no issue should be reported here.
func Sanitized(s core.Source) {
	fmt.Println(core.Scrub(s.Data))
}
