package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testModule = "livepoll/contexts/polling/live-poll"

func TestDomainMayImportOnlyDomainAndStdlib(t *testing.T) {
	cases := []struct {
		importPath string
		rules      int
	}{
		{importPath: "time", rules: 0},
		{importPath: testModule + "/domain/errors", rules: 0},
		{importPath: testModule + "/ports", rules: 1},
		{importPath: "livepoll/internal/platform/db", rules: 1},
		{importPath: "github.com/google/uuid", rules: 1},
		{importPath: "livepoll/contexts/other/module/domain", rules: 2},
	}
	for _, tc := range cases {
		if got := checkImport("domain", tc.importPath, testModule); len(got) != tc.rules {
			t.Fatalf("domain import %s: expected %d rules, got %v", tc.importPath, tc.rules, got)
		}
	}
}

func TestApplicationMustNotImportAdapters(t *testing.T) {
	if got := checkImport("application", testModule+"/adapters/memory", testModule); len(got) != 1 {
		t.Fatalf("expected adapter import to be flagged, got %v", got)
	}
	allowed := []string{
		testModule + "/ports",
		testModule + "/application",
		"livepoll/contracts/gen/events/v1",
		"encoding/json",
	}
	for _, path := range allowed {
		if got := checkImport("application", path, testModule); len(got) != 0 {
			t.Fatalf("expected %s to be allowed, got %v", path, got)
		}
	}
}

func TestAdaptersMayUseThirdPartyButNotPlatform(t *testing.T) {
	if got := checkImport("adapters", "gorm.io/gorm", testModule); len(got) != 0 {
		t.Fatalf("adapters may import drivers, got %v", got)
	}
	if got := checkImport("adapters", "livepoll/internal/platform/config", testModule); len(got) != 1 {
		t.Fatalf("adapters must not import the platform, got %v", got)
	}
}

func TestModuleRootOnlyChecksCrossModuleImports(t *testing.T) {
	if got := checkImport("module.go", testModule+"/adapters/memory", testModule); len(got) != 0 {
		t.Fatalf("module root may wire adapters, got %v", got)
	}
}

func TestCollectViolationsWalksLayers(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "contexts", "polling", "live-poll", "domain", "entities")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	source := "package entities\n\nimport (\n\t\"time\"\n\n\t\"livepoll/contexts/polling/live-poll/ports\"\n)\n"
	if err := os.WriteFile(filepath.Join(dir, "poll.go"), []byte(source), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "poll_test.go"), []byte("package entities\n\nimport _ \"gorm.io/gorm\"\n"), 0o644); err != nil {
		t.Fatalf("write test: %v", err)
	}

	violations := collectViolations(filepath.Join(root, "contexts"))
	if len(violations) != 1 || violations[0].Import != testModule+"/ports" || violations[0].Line != 6 {
		t.Fatalf("unexpected violations: %#v", violations)
	}
}

func TestIsStdlib(t *testing.T) {
	if isStdlib("github.com/google/uuid") || isStdlib(testModule+"/ports") {
		t.Fatalf("module and third-party paths are not stdlib")
	}
	if !isStdlib("net/http") {
		t.Fatalf("net/http is stdlib")
	}
}
