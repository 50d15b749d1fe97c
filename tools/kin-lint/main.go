// kin-lint is a custom static analyzer for kinship storage and error patterns.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/kinship/tools/kin-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
