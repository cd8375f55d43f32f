package server

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
)

type registeredRoute struct {
	method  string
	path    string
	handler string
}

// serviceFields are the Server fields that own registry semantics.
var serviceFields = []string{"functions", "code", "collector"}

func TestMutationRoutesUseServiceBoundary(t *testing.T) {
	routes := parseRegisteredRoutes(t)
	handlers := parseServerHandlers(t)

	var mutations []registeredRoute
	for _, route := range routes {
		if isMutationMethod(route.method) {
			mutations = append(mutations, route)
		}
	}
	if len(mutations) == 0 {
		t.Fatal("no mutation routes discovered")
	}

	for _, route := range mutations {
		fn, ok := handlers[route.handler]
		if !ok {
			t.Fatalf("handler %q for %s %s not found", route.handler, route.method, route.path)
		}
		calls := inspectFieldCalls(fn)
		if len(calls["store"]) > 0 {
			t.Fatalf("handler %q (%s %s) calls s.store directly: %v", route.handler, route.method, route.path, calls["store"])
		}
		if !callsAnyService(calls) {
			t.Fatalf("handler %q (%s %s) does not call a service boundary", route.handler, route.method, route.path)
		}
	}
}

func TestFunctionReadRoutesUseService(t *testing.T) {
	routes := parseRegisteredRoutes(t)
	handlers := parseServerHandlers(t)

	checked := 0
	for _, route := range routes {
		if route.method != "GET" || !strings.HasPrefix(route.path, "/v1/functions") {
			continue
		}
		calls := inspectFieldCalls(handlers[route.handler])
		if len(calls["functions"]) == 0 || len(calls["store"]) > 0 {
			t.Fatalf("handler %q (%s %s) must read through s.functions, got %v", route.handler, route.method, route.path, calls)
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no function read routes discovered")
	}
}

func parseRegisteredRoutes(t *testing.T) []registeredRoute {
	t.Helper()

	routesPath := filepath.Join(serverPackageDir(t), "routes.go")
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, routesPath, nil, 0)
	if err != nil {
		t.Fatalf("parse routes.go: %v", err)
	}

	var routes []registeredRoute
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "HandleFunc" || len(call.Args) != 2 {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		pattern, err := strconv.Unquote(lit.Value)
		if err != nil {
			t.Fatalf("unquote route pattern %q: %v", lit.Value, err)
		}
		method, path, ok := strings.Cut(pattern, " ")
		if !ok {
			return true
		}
		handler, ok := call.Args[1].(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if recv, ok := handler.X.(*ast.Ident); !ok || recv.Name != "s" {
			return true
		}

		routes = append(routes, registeredRoute{
			method:  strings.TrimSpace(method),
			path:    strings.TrimSpace(path),
			handler: handler.Sel.Name,
		})
		return true
	})
	return routes
}

func parseServerHandlers(t *testing.T) map[string]*ast.FuncDecl {
	t.Helper()

	files, err := filepath.Glob(filepath.Join(serverPackageDir(t), "handlers*.go"))
	if err != nil {
		t.Fatalf("glob handler files: %v", err)
	}

	out := make(map[string]*ast.FuncDecl)
	fset := token.NewFileSet()
	for _, path := range files {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || !strings.HasPrefix(fn.Name.Name, "handle") || !isServerReceiver(fn.Recv) {
				continue
			}
			out[fn.Name.Name] = fn
		}
	}
	if len(out) == 0 {
		t.Fatal("no handlers found")
	}
	return out
}

// inspectFieldCalls maps each s.<field> to the methods called on it.
func inspectFieldCalls(fn *ast.FuncDecl) map[string][]string {
	calls := map[string][]string{}
	if fn == nil {
		return calls
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		method, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		field, ok := method.X.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if recv, ok := field.X.(*ast.Ident); ok && recv.Name == "s" {
			calls[field.Sel.Name] = append(calls[field.Sel.Name], method.Sel.Name)
		}
		return true
	})
	for name, methods := range calls {
		slices.Sort(methods)
		calls[name] = slices.Compact(methods)
	}
	return calls
}

func callsAnyService(calls map[string][]string) bool {
	for _, field := range serviceFields {
		if len(calls[field]) > 0 {
			return true
		}
	}
	return false
}

func isMutationMethod(method string) bool {
	switch method {
	case "POST", "PATCH", "PUT", "DELETE":
		return true
	default:
		return false
	}
}

func isServerReceiver(recv *ast.FieldList) bool {
	if recv == nil || len(recv.List) != 1 {
		return false
	}
	star, ok := recv.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	ident, ok := star.X.(*ast.Ident)
	return ok && ident.Name == "Server"
}

func serverPackageDir(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(file)
}
