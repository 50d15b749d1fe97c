// Package errcompare detects == and != comparisons against sentinel errors.
//
// Services wrap sentinels with fmt.Errorf("...: %w", ...), so a direct
// comparison misses every wrapped error.
package errcompare

import (
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports sentinel error comparisons that should use errors.Is.
var Analyzer = &analysis.Analyzer{
	Name:     "errcompare",
	Doc:      "detects == and != comparisons against sentinel errors",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var errorType = types.Universe.Lookup("error").Type().Underlying().(*types.Interface)

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.BinaryExpr)(nil)}, func(n ast.Node) {
		expr := n.(*ast.BinaryExpr)
		if expr.Op != token.EQL && expr.Op != token.NEQ {
			return
		}

		for _, operand := range []ast.Expr{expr.X, expr.Y} {
			if name, ok := sentinel(pass, operand); ok {
				pass.Reportf(expr.Pos(), "compare with errors.Is: %s may be wrapped", name)
				return
			}
		}
	})

	return nil, nil
}

// sentinel reports whether e names a package-level Err* variable of an
// error type.
func sentinel(pass *analysis.Pass, e ast.Expr) (string, bool) {
	var ident *ast.Ident
	switch v := e.(type) {
	case *ast.Ident:
		ident = v
	case *ast.SelectorExpr:
		ident = v.Sel
	default:
		return "", false
	}

	obj, ok := pass.TypesInfo.Uses[ident].(*types.Var)
	if !ok || obj.Pkg() == nil || obj.Parent() != obj.Pkg().Scope() {
		return "", false
	}
	if !strings.HasPrefix(obj.Name(), "Err") {
		return "", false
	}
	if !types.Implements(obj.Type(), errorType) {
		return "", false
	}
	return obj.Name(), true
}
