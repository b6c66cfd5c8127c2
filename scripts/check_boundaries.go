package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// modulePath is the go.mod module name every in-repo import starts with.
const modulePath = "livepoll"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerPolicy lists the module-relative packages a layer may import.
// Standard library imports are always allowed. noThirdParty also rejects
// external modules.
type layerPolicy struct {
	allowed      []string
	noThirdParty bool
}

var layerPolicies = map[string]layerPolicy{
	"domain":      {allowed: []string{"domain"}, noThirdParty: true},
	"ports":       {allowed: []string{"domain", "@contracts"}, noThirdParty: true},
	"application": {allowed: []string{"application", "domain", "ports", "@contracts"}, noThirdParty: true},
	"transport":   {allowed: []string{"transport"}, noThirdParty: true},
	"adapters":    {allowed: []string{"adapters", "application", "domain", "ports", "transport", "@contracts"}},
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations := collectViolations(root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

// collectViolations walks contexts/<context>/<module>/<layer>/... and checks
// the imports of every non-test file against its layer policy.
func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		idx := indexOf(parts, "contexts")
		if idx < 0 || len(parts) < idx+4 {
			return nil
		}
		modulePrefix := strings.Join([]string{modulePath, "contexts", parts[idx+1], parts[idx+2]}, "/")
		layer := parts[idx+3]

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			violations = append(violations, violation{File: normalized, Line: 1, Rule: "file must parse"})
			return nil
		}
		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, "\"")
			line := fset.Position(imp.Pos()).Line
			for _, rule := range checkImport(layer, importPath, modulePrefix) {
				violations = append(violations, violation{
					File:   normalized,
					Line:   line,
					Import: importPath,
					Rule:   rule,
				})
			}
		}
		return nil
	})

	return violations
}

// checkImport returns the rules importPath breaks for a file in layer.
// Files at the module root (module.go, doc.go) are the module's composition
// root and only get the cross-module rule.
func checkImport(layer string, importPath string, modulePrefix string) []string {
	var rules []string
	if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, modulePrefix) {
		rules = append(rules, "cross-module imports are forbidden")
	}

	policy, ok := layerPolicies[layer]
	if !ok {
		return rules
	}
	switch {
	case isStdlib(importPath):
	case isRuntimeInfrastructure(importPath):
		rules = append(rules, layer+" must not import runtime infrastructure")
	case hasPrefix(importPath, modulePath):
		if !policy.allows(importPath, modulePrefix) {
			rules = append(rules, layer+" import is outside explicit allowlist")
		}
	case policy.noThirdParty:
		rules = append(rules, layer+" must not import third-party modules")
	}
	return rules
}

func (p layerPolicy) allows(importPath string, modulePrefix string) bool {
	for _, entry := range p.allowed {
		prefix := modulePrefix + "/" + entry
		if strings.HasPrefix(entry, "@") {
			prefix = modulePath + "/" + strings.TrimPrefix(entry, "@")
		}
		if hasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func isRuntimeInfrastructure(importPath string) bool {
	return hasPrefix(importPath, modulePath+"/internal") || hasPrefix(importPath, modulePath+"/cmd")
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func indexOf(parts []string, target string) int {
	for i, part := range parts {
		if part == target {
			return i
		}
	}
	return -1
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
