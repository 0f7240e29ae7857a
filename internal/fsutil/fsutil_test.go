package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func realTempDir(t *testing.T) string {
	t.Helper()
	d, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCleanRelPath(t *testing.T) {
	cases := map[string]string{
		"":            "",
		".":           "",
		"/":           "",
		"a//b":        "a/b",
		"/a/b/":       "a/b",
		`a\b`:         "a/b",
		"a/../b":      "b",
		"../x":        "../x",
		"a/../../x":   "../x",
		"  docs  ":    "docs",
		"./a/./b/../": "a",
	}
	for in, want := range cases {
		if got := CleanRelPath(in); got != want {
			t.Errorf("CleanRelPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSafe(t *testing.T) {
	root := realTempDir(t)
	if err := os.MkdirAll(filepath.Join(root, "docs", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		rel  string
		want bool
	}{
		{"", true},
		{".", true},
		{"docs", true},
		{"docs/deep", true},
		{"docs/../docs/deep", true},
		{"missing/file.txt", true},
		{"/etc/passwd", true}, // leading slash is relative to root
		{"..", false},
		{"../", false},
		{"../etc/passwd", false},
		{"docs/../../x", false},
		{"docs/deep/../../../x", false},
		{`..\..\windows`, false},
		{"a\x00b", false},
	}
	for _, tt := range tests {
		if got := IsSafe(root, tt.rel); got != tt.want {
			t.Errorf("IsSafe(root, %q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestIsSafe_SiblingPrefix(t *testing.T) {
	parent := realTempDir(t)
	root := filepath.Join(parent, "share")
	sibling := filepath.Join(parent, "shared-secrets")
	for _, d := range []string{root, sibling} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if IsSafe(root, "../shared-secrets") {
		t.Fatal("sibling directory with common prefix must be unsafe")
	}
}

func TestIsSafe_FilesystemRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix root")
	}
	for _, rel := range []string{"", "etc", "tmp", "etc/hostname", "missing/file.txt", "../etc"} {
		if !IsSafe("/", rel) {
			t.Errorf("IsSafe(/, %q) = false, want true", rel)
		}
	}
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := filepath.Join(sep+"srv", "share")
	tests := []struct {
		root, p string
		want    bool
	}{
		{root, root, true},
		{root, filepath.Join(root, "a", "b"), true},
		{root, filepath.Join(root, "..x"), true},
		{root, root + "d", false},
		{root, filepath.Dir(root), false},
		{sep, filepath.Join(sep+"etc", "hostname"), true},
		{sep, sep, true},
	}
	for _, tt := range tests {
		if got := within(tt.root, tt.p); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.root, tt.p, got, tt.want)
		}
	}
}

func TestIsSafe_InvalidRoot(t *testing.T) {
	if IsSafe("", "a") {
		t.Error("empty root must be unsafe")
	}
	if IsSafe("relative/root", "a") {
		t.Error("relative root must be unsafe")
	}
	if IsSafe(filepath.Join(t.TempDir(), "nope"), "a") {
		t.Error("missing root must be unsafe")
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	root := realTempDir(t)
	outside := realTempDir(t)
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if IsSafe(root, "link/secret.txt") {
		t.Fatal("symlink pointing outside the root must be unsafe")
	}

	if err := os.Mkdir(filepath.Join(root, "inside"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "inside"), filepath.Join(root, "alias")); err != nil {
		t.Fatal(err)
	}
	got, err := Resolve(root, "alias")
	if err != nil {
		t.Fatalf("Resolve(alias) error: %v", err)
	}
	if want := filepath.Join(root, "inside"); got != want {
		t.Errorf("Resolve(alias) = %q, want %q", got, want)
	}
}

func TestResolve_ReturnsAccessTarget(t *testing.T) {
	root := realTempDir(t)
	got, err := Resolve(root, "a/b/../c.txt")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if want := filepath.Join(root, "a", "c.txt"); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	got, err = Resolve(root, "")
	if err != nil || got != root {
		t.Errorf("Resolve(root, \"\") = %q, %v; want %q", got, err, root)
	}
}
