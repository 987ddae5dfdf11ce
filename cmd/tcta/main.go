package main

import (
	"github.com/go-taint/tcta/pkg/tcta"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(tcta.Analyzer)
}
