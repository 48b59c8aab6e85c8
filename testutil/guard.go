// Package testutil provides helpers for enforcing package layering in tests.
package testutil

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Module is the import path prefix of this repository.
const Module = "custodycore"

// AssertNoTransitiveImports loads pattern with its full dependency graph and
// fails if any package reachable from it satisfies forbidden. Test-only
// imports are not part of the graph.
func AssertNoTransitiveImports(t testing.TB, pattern string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if len(pkgs) == 0 {
		t.Fatalf("pattern %q matched no packages", pattern)
	}
	for _, p := range pkgs {
		for _, e := range p.Errors {
			t.Fatalf("load %s: %v", p.PkgPath, e)
		}
	}
	failIfViolations(t, reason, transitiveViolations(pkgs, forbidden))
}

// InternalImportForbidden matches this module's internal/ tree.
func InternalImportForbidden(path string) bool {
	return path == Module+"/internal" || strings.HasPrefix(path, Module+"/internal/")
}

// TransportImportForbidden matches the HTTP framework and the HTTP adapter.
func TransportImportForbidden(path string) bool {
	return strings.HasPrefix(path, "github.com/gin-gonic/") || strings.HasSuffix(path, "/adapters/httpapi")
}

// DeliveryImportForbidden matches document delivery packages and their
// broker clients.
func DeliveryImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/internal/documents") ||
		strings.HasPrefix(path, "github.com/eclipse/paho.mqtt.golang") ||
		path == "net/smtp"
}

// AnyOf combines predicates.
func AnyOf(preds ...func(string) bool) func(string) bool {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

// transitiveViolations walks the import graph below roots and reports each
// forbidden package once, with the first chain that reaches it.
func transitiveViolations(roots []*packages.Package, forbidden func(string) bool) []string {
	seen := make(map[string]struct{})
	var viols []string
	var walk func(p *packages.Package, chain []string)
	walk = func(p *packages.Package, chain []string) {
		if _, ok := seen[p.PkgPath]; ok {
			return
		}
		seen[p.PkgPath] = struct{}{}
		chain = append(chain, p.PkgPath)
		if len(chain) > 1 && forbidden(p.PkgPath) {
			viols = append(viols, strings.Join(chain, " -> "))
			return
		}
		paths := make([]string, 0, len(p.Imports))
		for path := range p.Imports {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			walk(p.Imports[path], append([]string(nil), chain...))
		}
	}
	for _, root := range roots {
		walk(root, nil)
	}
	return viols
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden imports detected (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
