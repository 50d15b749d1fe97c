// Package loopcall detects per-row storage and embedding calls inside loops.
package loopcall

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer detects single-row calls inside loops that have a batch form.
var Analyzer = &analysis.Analyzer{
	Name:     "loopcall",
	Doc:      "detects single-row storage or embedding calls inside loops that have a batch form",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// batchForms maps single-row methods to the call that should replace them.
var batchForms = map[string]string{
	// Embedder
	"Embed": "EmbedBatch",
	// VectorDB
	"Save": "SaveBatch",
	// PersonDirectory and TypeCatalog
	"FindPerson":           "FindPeopleByIDs",
	"FindRelationshipType": "FindTypesByIDs",
	// EdgeReader
	"FindEdge": "ListEdges",
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.RangeStmt)(nil),
		(*ast.ForStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		var body *ast.BlockStmt
		switch stmt := n.(type) {
		case *ast.RangeStmt:
			body = stmt.Body
		case *ast.ForStmt:
			body = stmt.Body
		}
		if body == nil {
			return
		}

		ast.Inspect(body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			method := sel.Sel.Name
			if batch, ok := batchForms[method]; ok {
				pass.Reportf(call.Pos(),
					"potential N+1: %s called inside loop - use %s",
					method, batch)
			}

			return true
		})
	})

	return nil, nil
}
