package synth

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"regexp"
	"strings"

	"testforge/internal/locator"
)

// ===== SCRIPT VALIDATION =====

// Selector-bearing rod calls. The first string literal argument is the
// selector; ElementR and MustElementR carry the matched text in the second.
var (
	lookupArgRE    = regexp.MustCompile(`(?:Must)?Element(?:s|R|X)?\(\s*"([^"]*)"`)
	elementRTextRE = regexp.MustCompile(`(?:Must)?ElementR\(\s*"[^"]*"\s*,\s*"([^"]*)"`)
	nameAttrRE     = regexp.MustCompile(`^\w*\[name=['"]?([^'"\]]+)['"]?\]$`)
)

// waitMethods are the rod calls that satisfy the explicit-wait requirement.
var waitMethods = map[string]bool{
	"Timeout":         true,
	"WaitLoad":        true,
	"MustWaitLoad":    true,
	"WaitVisible":     true,
	"MustWaitVisible": true,
	"WaitStable":      true,
	"MustWaitStable":  true,
	"WaitIdle":        true,
	"MustWaitIdle":    true,
}

// lookupMethods are the rod calls that locate elements on the page.
var lookupMethods = map[string]bool{
	"Element":      true,
	"MustElement":  true,
	"ElementR":     true,
	"MustElementR": true,
	"ElementX":     true,
	"MustElementX": true,
	"Elements":     true,
	"MustElements": true,
}

// bareTags are selector strings that address elements by tag name alone.
// Tag selectors are legitimate rod usage but never appear in an inventory,
// so coverage checking skips them rather than flagging every template line.
var bareTags = map[string]bool{
	"button":   true,
	"input":    true,
	"form":     true,
	"select":   true,
	"textarea": true,
	"a":        true,
	"body":     true,
	"html":     true,
}

// Validate checks a cleaned script for syntax, structure, and locator
// coverage against the page inventory. It always returns a verdict; a
// script that fails to parse yields StatusInvalid with the syntax error
// attached, never an error from Validate itself.
func Validate(code string, inv *locator.Inventory) Validation {
	v := Validation{}

	fset := token.NewFileSet()
	file, parseErr := parser.ParseFile(fset, "script.go", code, 0)
	if parseErr != nil {
		v.Syntax = toSyntaxError(parseErr)
		v.Errors = append(v.Errors, v.Syntax.Error())
	}

	if file != nil {
		v.Warnings = append(v.Warnings, checkStructureAST(file)...)
	} else {
		v.Warnings = append(v.Warnings, checkStructureText(code)...)
	}

	// Coverage runs on the raw text so it still reports selectors from
	// scripts the parser rejected.
	locators, coverage := checkCoverage(code, inv)
	v.Locators = locators
	v.Warnings = append(v.Warnings, coverage...)

	switch {
	case len(v.Errors) > 0:
		v.Status = StatusInvalid
	case len(v.Warnings) > 0:
		v.Status = StatusValidWithWarnings
	default:
		v.Status = StatusValid
	}
	return v
}

// toSyntaxError extracts the first positioned error from the parser output.
func toSyntaxError(err error) *SyntaxError {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &SyntaxError{Line: list[0].Pos.Line, Detail: list[0].Msg}
	}
	return &SyntaxError{Detail: err.Error()}
}

// checkStructureAST verifies the script's skeleton: the rod import, a
// session construction, at least one explicit wait, and at least one
// element lookup.
func checkStructureAST(file *ast.File) []string {
	var warnings []string

	hasRodImport := false
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if strings.HasPrefix(path, "github.com/go-rod/rod") {
			hasRodImport = true
			break
		}
	}
	if !hasRodImport {
		warnings = append(warnings, "missing rod import")
	}

	hasSession := false
	hasWait := false
	hasLookup := false
	ast.Inspect(file, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		name := sel.Sel.Name
		if ident, ok := sel.X.(*ast.Ident); ok {
			if (ident.Name == "rod" && name == "New") || (ident.Name == "launcher" && name == "New") {
				hasSession = true
			}
		}
		if name == "MustConnect" || name == "Connect" {
			hasSession = true
		}
		if waitMethods[name] {
			hasWait = true
		}
		if lookupMethods[name] {
			hasLookup = true
		}
		return true
	})

	if !hasSession {
		warnings = append(warnings, "missing session construction")
	}
	if !hasWait {
		warnings = append(warnings, "missing explicit wait")
	}
	if !hasLookup {
		warnings = append(warnings, "missing locator lookup")
	}
	return warnings
}

// checkStructureText is the fallback structure probe for scripts the
// parser rejected. String matching is coarser than the AST walk but
// still distinguishes a truncated script from one missing whole stages.
func checkStructureText(code string) []string {
	var warnings []string
	if !strings.Contains(code, "github.com/go-rod/rod") {
		warnings = append(warnings, "missing rod import")
	}
	if !strings.Contains(code, "rod.New") && !strings.Contains(code, "launcher.New") {
		warnings = append(warnings, "missing session construction")
	}
	hasWait := false
	for method := range waitMethods {
		if strings.Contains(code, "."+method+"(") {
			hasWait = true
			break
		}
	}
	if !hasWait {
		warnings = append(warnings, "missing explicit wait")
	}
	hasLookup := false
	for method := range lookupMethods {
		if strings.Contains(code, "."+method+"(") {
			hasLookup = true
			break
		}
	}
	if !hasLookup {
		warnings = append(warnings, "missing locator lookup")
	}
	return warnings
}

// checkCoverage extracts every selector literal from the script and checks
// each against the inventory. It returns the ordered, deduplicated list of
// selectors used plus one warning per selector the page does not contain.
func checkCoverage(code string, inv *locator.Inventory) ([]string, []string) {
	var used []string
	var warnings []string
	seen := map[string]bool{}

	known := map[string]bool{}
	if inv != nil {
		known = inv.Values()
	}

	record := func(raw string) {
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		used = append(used, raw)

		normalized, checkable := normalizeSelector(raw)
		if !checkable {
			return
		}
		if !known[normalized] {
			warnings = append(warnings, fmt.Sprintf("selector not found in markup: %s", raw))
		}
	}

	for _, m := range lookupArgRE.FindAllStringSubmatch(code, -1) {
		record(m[1])
	}
	for _, m := range elementRTextRE.FindAllStringSubmatch(code, -1) {
		record(m[1])
	}
	return used, warnings
}

// normalizeSelector reduces a CSS selector literal to the bare value the
// inventory records. The second return is false for selectors that cannot
// be checked against an inventory, such as bare tag names and XPath.
func normalizeSelector(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "//") || strings.HasPrefix(s, "(") {
		return "", false
	}
	if m := nameAttrRE.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	// Compound selectors mix combinators and attributes the inventory
	// cannot mirror; only simple ids, classes, and bare values remain
	// checkable.
	if strings.ContainsAny(s, " >+~[]():") {
		return "", false
	}
	if strings.HasPrefix(s, "#") || strings.HasPrefix(s, ".") {
		return s[1:], true
	}
	if bareTags[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}
