package passes

import (
	"bytes"
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go"

	"tsreduce/internal/reduce"
)

// parsesAndKeepsReturn1 is the interestingness test for spec.md §8
// scenario 3: "exits 0 iff the file still parses as Go and still
// contains 'return 1'".
type parsesAndKeepsReturn1 struct {
	path string
}

func (p parsesAndKeepsReturn1) TestInteresting(ctx context.Context, dir string, cancel <-chan struct{}, attemptName string, attemptID uint64) (reduce.Interesting, error) {
	data, err := os.ReadFile(filepath.Join(dir, p.path))
	if err != nil {
		return reduce.NotInteresting, nil
	}
	if !bytes.Contains(data, []byte("return 1")) {
		return reduce.NotInteresting, nil
	}
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, p.path, data, parser.AllErrors); err != nil {
		return reduce.NotInteresting, nil
	}
	return reduce.InterestingResult, nil
}

func (p parsesAndKeepsReturn1) CleanupSnapshot(dir string) error { return nil }

func goLanguage() *tree_sitter.Language {
	return tree_sitter.NewLanguage(tree_sitter_go.Language())
}

func TestTreeSitterReplaceRemovesDeadFunctionKeepsSurvivor(t *testing.T) {
	dir := t.TempDir()
	src := "package p\n\nfunc f() int {\n\treturn 1\n}\n\nfunc g() int {\n\treturn 2\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("seed a.go: %v", err)
	}

	pass := NewTreeSitterReplace(TreeSitterReplaceConfig{
		Language: goLanguage(),
		Name:     "TreeSitterReplace",
		Matcher:  EmptyFunctionBodyMatcher,
	})

	test := parsesAndKeepsReturn1{path: "a.go"}
	status, err := pass.Reduce(context.Background(), dir, test, reduce.Job{Path: "a.go", Pass: pass, Seed: 3}, make(chan struct{}))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if status.Kind != reduce.Reduced && status.Kind != reduce.DidNotReduce {
		t.Fatalf("unexpected status: %v", status.Kind)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a.go"))
	if err != nil {
		t.Fatalf("read a.go: %v", err)
	}
	if !bytes.Contains(got, []byte("return 1")) {
		t.Fatalf("survivor function was removed: %q", got)
	}
	if status.Kind == reduce.Reduced && bytes.Contains(got, []byte("return 2")) {
		t.Fatalf("expected dead function to be gone after a Reduced attempt, got %q", got)
	}
}

// TestTreeSitterReplaceUnparsableInputFailsCleanly models a
// grammar/input combination that never parses: spec.md §8 scenario 2
// expects every JobResult to be
// PassFailed and the workdir left untouched.
func TestTreeSitterReplaceUnparsableInputFailsCleanly(t *testing.T) {
	dir := t.TempDir()
	const original = "this is not valid go source { ] ("
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte(original), 0o644); err != nil {
		t.Fatalf("seed a.go: %v", err)
	}

	pass := NewTreeSitterReplace(TreeSitterReplaceConfig{
		Language: goLanguage(),
		Name:     "TreeSitterReplace",
		Matcher:  EmptyFunctionBodyMatcher,
	})

	test := parsesAndKeepsReturn1{path: "a.go"}
	status, err := pass.Reduce(context.Background(), dir, test, reduce.Job{Path: "a.go", Seed: 1}, make(chan struct{}))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if status.Kind != reduce.PassFailed {
		t.Fatalf("expected PassFailed for a tree with parse errors, got %v", status.Kind)
	}

	got, err := os.ReadFile(filepath.Join(dir, "a.go"))
	if err != nil {
		t.Fatalf("read a.go: %v", err)
	}
	if string(got) != original {
		t.Fatalf("workdir was mutated despite PassFailed: %q", got)
	}
}
