// Package pushpop defines an analyzer that checks coroutine handles pushed on
// an execution context stack are popped on every exit path.
//
// Pushes must be matched by a deferred pop in the same function, either a
// direct call or a call made from a deferred closure:
//
//	stack.Push(h)
//	defer stack.Pop()
//
// A pop which is not deferred is skipped when the function returns early or
// panics, which leaves the handle on the stack and corrupts every subsequent
// lookup of the current coroutine. The analyzer also reports calls to
// Stack.Enter which discard the exit function.
package pushpop

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

const doc = `check that execution context stack pushes have a deferred pop

Every call to (*Stack).Push or PushCoroutineStack must be matched by a
deferred (*Stack).Pop or PopCoroutineStack in the same function, so the
coroutine handle is removed from the stack on every exit path. The exit
function returned by (*Stack).Enter must not be discarded.`

// Analyzer is the pushpop analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "pushpop",
	Doc:      doc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// PackagePath is the import path of the package defining the execution
// context stack. It can be changed with the -pkg flag.
var PackagePath = "github.com/dispatchrun/corostack"

func init() {
	Analyzer.Flags.StringVar(&PackagePath, "pkg", PackagePath, "import path of the execution context stack package")
}

type callKind int

const (
	other callKind = iota
	push
	pop
	enter
)

func run(pass *analysis.Pass) (any, error) {
	// The package implementing the stack is where the pairing is built
	// from unpaired halves.
	if pass.Pkg.Path() == PackagePath {
		return nil, nil
	}

	in := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	filter := []ast.Node{(*ast.FuncDecl)(nil), (*ast.FuncLit)(nil)}

	in.Preorder(filter, func(n ast.Node) {
		var body *ast.BlockStmt
		switch f := n.(type) {
		case *ast.FuncDecl:
			body = f.Body
		case *ast.FuncLit:
			body = f.Body
		}
		if body != nil {
			checkBody(pass, body)
		}
	})
	return nil, nil
}

func checkBody(pass *analysis.Pass, body *ast.BlockStmt) {
	var pushes []*ast.CallExpr
	var deferredPops int

	ast.Inspect(body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.FuncLit:
			// Checked separately.
			return false

		case *ast.DeferStmt:
			if kindOf(pass, s.Call) == pop || (isFuncLit(s.Call.Fun) && containsPop(pass, s.Call.Fun)) {
				deferredPops++
			}
			// defer s.Enter(h)() is the intended use of Enter, only
			// inspect the arguments.
			for _, arg := range s.Call.Args {
				ast.Inspect(arg, func(n ast.Node) bool { return visitCall(pass, n, &pushes) })
			}
			return false

		case *ast.ExprStmt:
			if call, ok := s.X.(*ast.CallExpr); ok && kindOf(pass, call) == enter {
				pass.Reportf(call.Pos(), "exit function returned by Enter is discarded")
			}
		}
		return visitCall(pass, n, &pushes)
	})

	for _, call := range pushes[min(deferredPops, len(pushes)):] {
		pass.Reportf(call.Pos(), "coroutine handle pushed without a deferred pop")
	}
}

func visitCall(pass *analysis.Pass, n ast.Node, pushes *[]*ast.CallExpr) bool {
	switch c := n.(type) {
	case *ast.FuncLit:
		return false
	case *ast.CallExpr:
		if kindOf(pass, c) == push {
			*pushes = append(*pushes, c)
		}
	}
	return true
}

func isFuncLit(e ast.Expr) bool {
	_, ok := e.(*ast.FuncLit)
	return ok
}

func containsPop(pass *analysis.Pass, n ast.Node) (found bool) {
	ast.Inspect(n, func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok && kindOf(pass, call) == pop {
			found = true
		}
		return !found
	})
	return found
}

func kindOf(pass *analysis.Pass, call *ast.CallExpr) callKind {
	fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != PackagePath {
		return other
	}

	sig := fn.Type().(*types.Signature)
	if recv := sig.Recv(); recv != nil {
		t := recv.Type()
		if p, ok := t.(*types.Pointer); ok {
			t = p.Elem()
		}
		named, ok := t.(*types.Named)
		if !ok || named.Obj().Name() != "Stack" {
			return other
		}
		switch fn.Name() {
		case "Push":
			return push
		case "Pop":
			return pop
		case "Enter":
			return enter
		}
		return other
	}

	switch fn.Name() {
	case "PushCoroutineStack":
		return push
	case "PopCoroutineStack":
		return pop
	}
	return other
}
