// Package sandbox executes generated calculator programs inside a Go
// interpreter: a static pre-check gates what the program may reference,
// then each record is evaluated under its own deadline so a misbehaving
// program can only cost bounded time.
package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"paylab/internal/experiment"
)

// baseAllowedImports are the stdlib packages a generated program may import.
// Anything touching the filesystem, network, processes or unsafe memory is
// rejected before the interpreter ever sees the code.
var baseAllowedImports = map[string]bool{
	"fmt":     true,
	"math":    true,
	"sort":    true,
	"strconv": true,
	"strings": true,
}

// forbiddenRoots are identifiers that must not appear as package selectors
// even if a program smuggles them past the import check (dot imports,
// aliased names).
var forbiddenRoots = map[string]bool{
	"os":      true,
	"exec":    true,
	"net":     true,
	"http":    true,
	"syscall": true,
	"unsafe":  true,
	"runtime": true,
	"reflect": true,
	"plugin":  true,
}

// personFieldNames are the struct fields of the published Person type, in
// declaration order. Record invocation renders composite literals with these
// names, so a program declaring its own Person must match them.
var personFieldNames = []string{
	"Gender",
	"Ethnicity",
	"AgeRange",
	"EducationLevel",
	"ExperienceLevel",
	"IndustrySector",
	"EmploymentType",
	"ParentalStatus",
	"DisabilityStatus",
	"CareerGap",
}

// Precheck statically validates a composed program before execution.
// extraImports widens the allowlist from configuration. Failures are
// ValidationError; the program is never evaluated after one.
func Precheck(source string, extraImports []string) error {
	allowed := make(map[string]bool, len(baseAllowedImports)+len(extraImports))
	for pkg := range baseAllowedImports {
		allowed[pkg] = true
	}
	for _, pkg := range extraImports {
		allowed[pkg] = true
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", source, 0)
	if err != nil {
		return &experiment.ValidationError{Reason: fmt.Sprintf("program does not parse: %v", err)}
	}

	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return &experiment.ValidationError{Reason: "malformed import path " + imp.Path.Value}
		}
		if imp.Name != nil && imp.Name.Name == "." {
			return &experiment.ValidationError{Reason: "dot import of " + path + " not allowed"}
		}
		if !allowed[path] {
			return &experiment.ValidationError{Reason: "import " + path + " not allowed"}
		}
	}

	if err := checkForbiddenSelectors(file); err != nil {
		return err
	}
	return checkPersonDecl(file)
}

func checkForbiddenSelectors(file *ast.File) error {
	var bad string
	ast.Inspect(file, func(n ast.Node) bool {
		if bad != "" {
			return false
		}
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok && forbiddenRoots[ident.Name] {
			bad = ident.Name + "." + sel.Sel.Name
			return false
		}
		return true
	})
	if bad != "" {
		return &experiment.ValidationError{Reason: "reference to " + bad + " not allowed"}
	}
	return nil
}

// checkPersonDecl verifies that a program-declared Person type has exactly
// the published string fields. Record invocation renders Person literals
// field by field, so a divergent declaration would fail on every record;
// this surfaces it once, as a validation failure.
func checkPersonDecl(file *ast.File) error {
	st := findPersonStruct(file)
	if st == nil {
		return nil
	}
	var names []string
	for _, field := range st.Fields.List {
		ident, ok := field.Type.(*ast.Ident)
		if !ok || ident.Name != "string" {
			return &experiment.ValidationError{Reason: "Person fields must all be string"}
		}
		for _, name := range field.Names {
			names = append(names, name.Name)
		}
	}
	if strings.Join(names, ",") != strings.Join(personFieldNames, ",") {
		return &experiment.ValidationError{
			Reason: "declared Person fields do not match the published type",
		}
	}
	return nil
}

func findPersonStruct(file *ast.File) *ast.StructType {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || ts.Name.Name != "Person" {
				continue
			}
			if st, ok := ts.Type.(*ast.StructType); ok {
				return st
			}
		}
	}
	return nil
}
