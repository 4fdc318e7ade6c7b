package main

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Value types and hashing from go-ethereum are part of the domain vocabulary.
const (
	ethereumCommon = "github.com/ethereum/go-ethereum/common"
	ethereumCrypto = "github.com/ethereum/go-ethereum/crypto"
)

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// rules checks the imports of one file. Each rule knows its own layer.
type rules struct {
	module       string
	contextRoot  string // <module>/contexts/<context>/<service>, empty outside contexts/
	layer        string
	contractsDir bool
}

func main() {
	module, err := modulePath("go.mod")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read module path: %v\n", err)
		os.Exit(2)
	}

	var violations []violation
	for _, root := range []string{"contexts", "contracts"} {
		violations = append(violations, collectViolations(module, root)...)
	}
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

func modulePath(goMod string) (string, error) {
	f, err := os.Open(goMod)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), "\""), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s has no module directive", goMod)
}

func collectViolations(module string, root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")

		r := rules{module: module}
		switch {
		case parts[0] == "contracts":
			r.contractsDir = true
		case parts[0] == "contexts" && len(parts) >= 4:
			r.contextRoot = fmt.Sprintf("%s/contexts/%s/%s", module, parts[1], parts[2])
			r.layer = parts[3]
		default:
			return nil
		}
		violations = append(violations, r.validateFile(path, normalized)...)
		return nil
	})

	return violations
}

func (r rules) validateFile(path string, normalizedPath string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line
		for _, rule := range r.check(importPath) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   line,
				Import: importPath,
				Rule:   rule,
			})
		}
	}
	return violations
}

func (r rules) check(importPath string) []string {
	var broken []string
	runtime := hasPrefix(importPath, r.module+"/internal") || hasPrefix(importPath, r.module+"/cmd")

	if r.contractsDir {
		if hasPrefix(importPath, r.module+"/contexts") || runtime {
			broken = append(broken, "contracts must not depend on contexts or runtime code")
		}
		return broken
	}

	if hasPrefix(importPath, r.module+"/contexts") && !hasPrefix(importPath, r.contextRoot) {
		broken = append(broken, "cross-module imports are forbidden")
	}

	var allowed []string
	switch r.layer {
	case "domain":
		allowed = []string{r.contextRoot + "/domain", r.module + "/contracts", ethereumCommon, ethereumCrypto}
	case "application":
		allowed = []string{
			r.contextRoot + "/application",
			r.contextRoot + "/domain",
			r.contextRoot + "/ports",
			r.module + "/contracts",
			ethereumCommon,
		}
	default:
		return broken
	}

	if strings.Contains(importPath, "/adapters/") {
		broken = append(broken, r.layer+" must not import adapters")
	}
	if runtime {
		broken = append(broken, r.layer+" must not import runtime infrastructure")
	}
	if !r.isStdlib(importPath) && !isAllowed(importPath, allowed) {
		broken = append(broken, r.layer+" import is outside explicit allowlist")
	}
	return broken
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func (r rules) isStdlib(importPath string) bool {
	if hasPrefix(importPath, r.module) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
