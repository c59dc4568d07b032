package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	safe := t.TempDir()
	if err := os.WriteFile(filepath.Join(safe, "CP-01.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidatePathWithinDirectory(filepath.Join(safe, "CP-01.jpg"), safe); err != nil {
		t.Errorf("valid path rejected: %v", err)
	}

	// Not-yet-existing file inside the safe dir is fine.
	if err := ValidatePathWithinDirectory(filepath.Join(safe, "CP-02.jpg"), safe); err != nil {
		t.Errorf("future path rejected: %v", err)
	}
}

func TestValidatePathRejectsTraversal(t *testing.T) {
	safe := t.TempDir()

	cases := []string{
		filepath.Join(safe, "..", "escape.jpg"),
		filepath.Join(safe, "..", "..", "etc", "passwd"),
		"/etc/passwd",
	}
	for _, p := range cases {
		if err := ValidatePathWithinDirectory(p, safe); err == nil {
			t.Errorf("traversal path %q accepted", p)
		}
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	safe := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(safe, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := ValidatePathWithinDirectory(filepath.Join(link, "file.jpg"), safe); err == nil {
		t.Error("symlink escape accepted")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CP-01", "CP-01"},
		{"cp 01/../x", "cp_01_.._x"},
		{"", "unknown"},
		{"///", "unknown"},
		{"a..b.jpg", "a..b.jpg"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
