package testutil

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal", InternalImportForbidden, "custodycore/internal/core", true},
		{"internal root", InternalImportForbidden, "custodycore/internal", true},
		{"stdlib internal", InternalImportForbidden, "crypto/internal/fips140", false},
		{"pkg", InternalImportForbidden, "custodycore/pkg/domain", false},
		{"gin", TransportImportForbidden, "github.com/gin-gonic/gin", true},
		{"httpapi", TransportImportForbidden, "custodycore/internal/adapters/httpapi", true},
		{"net/http", TransportImportForbidden, "net/http", false},
		{"documents", DeliveryImportForbidden, "custodycore/internal/documents", true},
		{"paho", DeliveryImportForbidden, "github.com/eclipse/paho.mqtt.golang", true},
		{"smtp", DeliveryImportForbidden, "net/smtp", true},
		{"blob", DeliveryImportForbidden, "custodycore/internal/blob", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s: pred(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
	combined := AnyOf(InternalImportForbidden, TransportImportForbidden)
	if !combined("github.com/gin-gonic/gin") || combined("fmt") {
		t.Fatalf("AnyOf combined predicates incorrectly")
	}
}

// graph builds packages linked by edges "from>to".
func graph(edges ...string) map[string]*packages.Package {
	pkgs := make(map[string]*packages.Package)
	get := func(path string) *packages.Package {
		p, ok := pkgs[path]
		if !ok {
			p = &packages.Package{PkgPath: path, Imports: make(map[string]*packages.Package)}
			pkgs[path] = p
		}
		return p
	}
	for _, e := range edges {
		from, to, _ := strings.Cut(e, ">")
		get(from).Imports[to] = get(to)
	}
	return pkgs
}

func TestTransitiveViolationsFollowIndirectImports(t *testing.T) {
	g := graph(
		"custodycore/internal/core>custodycore/internal/shim",
		"custodycore/internal/shim>github.com/gin-gonic/gin",
		"custodycore/internal/core>fmt",
		"github.com/gin-gonic/gin>net/http",
	)
	viols := transitiveViolations([]*packages.Package{g["custodycore/internal/core"]}, TransportImportForbidden)
	want := "custodycore/internal/core -> custodycore/internal/shim -> github.com/gin-gonic/gin"
	if len(viols) != 1 || viols[0] != want {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestTransitiveViolationsIgnoreRootAndClean(t *testing.T) {
	g := graph(
		"custodycore/internal/adapters/httpapi>custodycore/internal/core",
		"custodycore/internal/core>custodycore/pkg/domain",
		"custodycore/pkg/domain>custodycore/internal/core",
	)
	if viols := transitiveViolations([]*packages.Package{g["custodycore/internal/adapters/httpapi"]}, TransportImportForbidden); len(viols) != 0 {
		t.Fatalf("root package must not count as its own violation: %v", viols)
	}
	if viols := transitiveViolations([]*packages.Package{g["custodycore/internal/core"]}, DeliveryImportForbidden); len(viols) != 0 {
		t.Fatalf("expected clean graph, got %v", viols)
	}
}

func TestTransitiveViolationsReportEachPackageOnce(t *testing.T) {
	g := graph(
		"custodycore/pkg/domain>custodycore/internal/a",
		"custodycore/pkg/domain>custodycore/internal/b",
		"custodycore/internal/a>custodycore/internal/b",
	)
	viols := transitiveViolations([]*packages.Package{g["custodycore/pkg/domain"]}, InternalImportForbidden)
	if len(viols) != 2 {
		t.Fatalf("expected two distinct violations, got %v", viols)
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var r recordingFatal
	failIfViolations(&r, "layering", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure %q", r.msg)
	}
	failIfViolations(&r, "layering", []string{"a -> b"})
	if !strings.Contains(r.msg, "layering") || !strings.Contains(r.msg, "a -> b") {
		t.Fatalf("unexpected message %q", r.msg)
	}
}

func TestAssertNoTransitiveImportsLoadsModule(t *testing.T) {
	AssertNoTransitiveImports(t, Module+"/pkg/domain", InternalImportForbidden, "domain is a leaf")
}
