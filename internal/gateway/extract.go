package gateway

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"paylab/internal/experiment"
)

// FunctionMatch is the tagged result of structural extraction: either
// exactly one conforming calculator definition was found, or a reason why
// not. Extraction never relies on unchecked assumptions about the text.
type FunctionMatch struct {
	Matched        bool
	FuncName       string
	Source         string // normalized program text, package clause included
	DeclaresPerson bool
	Reason         string
}

// ExtractCalculator finds the single function definition conforming to the
// published compensation-calculator signature in generated text:
//
//	func Compensation(p Person) float64
//
// Markdown fences are stripped and a package clause is added when missing.
// Zero or multiple conforming definitions, or unparseable source, yield a
// ParseError.
func ExtractCalculator(content string) (*FunctionMatch, error) {
	source := normalizeSource(stripCodeFence(content))

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", source, 0)
	if err != nil {
		return nil, &experiment.ParseError{Reason: fmt.Sprintf("generated code does not parse: %v", err)}
	}

	match := &FunctionMatch{Source: source}
	var conforming []string
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil && conformsToCalculator(d) {
				conforming = append(conforming, d.Name.Name)
			}
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				for _, spec := range d.Specs {
					if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == "Person" {
						match.DeclaresPerson = true
					}
				}
			}
		}
	}

	switch len(conforming) {
	case 0:
		match.Reason = "no function matching func " + experiment.CalculatorFuncName + "(p Person) float64"
		return match, &experiment.ParseError{Reason: match.Reason}
	case 1:
		match.Matched = true
		match.FuncName = conforming[0]
		return match, nil
	default:
		match.Reason = fmt.Sprintf("%d conforming function definitions found, want exactly one", len(conforming))
		return match, &experiment.ParseError{Reason: match.Reason}
	}
}

// conformsToCalculator checks the published signature: the exported
// calculator name, a single Person-typed value parameter and a single
// float64 result.
func conformsToCalculator(fn *ast.FuncDecl) bool {
	if fn.Name.Name != experiment.CalculatorFuncName {
		return false
	}
	params := fn.Type.Params
	if params == nil || len(params.List) != 1 || len(params.List[0].Names) > 1 {
		return false
	}
	if ident, ok := params.List[0].Type.(*ast.Ident); !ok || ident.Name != "Person" {
		return false
	}
	results := fn.Type.Results
	if results == nil || len(results.List) != 1 || len(results.List[0].Names) != 0 {
		return false
	}
	ident, ok := results.List[0].Type.(*ast.Ident)
	return ok && ident.Name == "float64"
}

// stripCodeFence extracts code from a response that may wrap it in markdown
// fences. Returns the inner text of the first fenced block, or the input
// unchanged when no fence is present.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	rest := trimmed[start+3:]
	// Drop the language tag line (```go, ```csv, or bare ```).
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// normalizeSource ensures the text is a parseable compilation unit.
func normalizeSource(code string) string {
	for _, line := range strings.Split(code, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "package ") {
			return code
		}
	}
	return "package main\n\n" + code
}
