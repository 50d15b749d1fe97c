// Package analyzers provides all custom static analyzers for kinship.
package analyzers

import (
	"golang.org/x/tools/go/analysis"

	"github.com/ersonp/kinship/tools/kin-lint/analyzers/errcompare"
	"github.com/ersonp/kinship/tools/kin-lint/analyzers/loopcall"
)

// All returns all analyzers to run.
func All() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		errcompare.Analyzer,
		loopcall.Analyzer,
	}
}
