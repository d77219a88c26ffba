package internal

import (
	"bytes"
	"go/format"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/fspec/internal/testutil"
)

// projectRoot returns the module root whether the test runs from internal/
// or from the root itself.
func projectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(wd) == "internal" {
		return filepath.Dir(wd)
	}
	return wd
}

// goSources walks internal/ and cmd/ and calls fn for every .go file.
func goSources(t *testing.T, root string, fn func(rel string, content []byte)) {
	t.Helper()
	for _, dir := range []string{"internal", "cmd"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "vendor" || strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			fn(rel, content)
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to walk %s: %v", dir, err)
		}
	}
}

// TestGofmtCompliance fails when a source file differs from gofmt output.
// Fix with: gofmt -w ./internal/ ./cmd/
func TestGofmtCompliance(t *testing.T) {
	root := projectRoot(t)

	var unformatted []string
	goSources(t, root, func(rel string, content []byte) {
		formatted, err := format.Source(content)
		if err != nil {
			unformatted = append(unformatted, rel+" (does not parse)")
			return
		}
		if !bytes.Equal(content, formatted) {
			unformatted = append(unformatted, rel)
		}
	})

	for _, f := range unformatted {
		t.Errorf("not gofmt-formatted: %s", f)
	}
	if len(unformatted) > 0 {
		t.Log("Run 'gofmt -w ./internal/ ./cmd/' to fix formatting issues.")
	}
}

// TestImportsUseModulePath catches imports of internal packages under a
// module path other than the one in go.mod.
func TestImportsUseModulePath(t *testing.T) {
	root := projectRoot(t)
	gomod := testutil.ReadFile(t, filepath.Join(root, "go.mod"))
	line, _, _ := strings.Cut(gomod, "\n")
	module := strings.TrimSpace(strings.TrimPrefix(line, "module"))
	if module == "" {
		t.Fatal("go.mod has no module line")
	}

	goSources(t, root, func(rel string, content []byte) {
		for _, l := range strings.Split(string(content), "\n") {
			l = strings.TrimSpace(l)
			if !strings.Contains(l, `/internal/`) || !strings.HasSuffix(l, `"`) {
				continue
			}
			if strings.Contains(l, `"github.com/`) && !strings.Contains(l, `"`+module+`/`) {
				t.Errorf("%s: import outside %s: %s", rel, module, l)
			}
		}
	})
}

// TestGolangciLintCompliance runs golangci-lint over the module when it is
// installed.
func TestGolangciLintCompliance(t *testing.T) {
	testutil.SkipIfNoGolangciLint(t)
	if testing.Short() {
		t.Skip("skipping lint in short mode")
	}

	cmd := exec.Command("golangci-lint", "run", "--allow-parallel-runners", "./...")
	cmd.Dir = projectRoot(t)
	// A per-test cache keeps the run working in read-only environments.
	cmd.Env = append(os.Environ(), "GOCACHE="+t.TempDir())
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Errorf("golangci-lint found issues:\n%s", output)
	}
}
