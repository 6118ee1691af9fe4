package kb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeKBFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestLoadConcatenatesWithSourceMarkers(t *testing.T) {
	root := t.TempDir()
	writeKBFile(t, root, "a_controls.md", "AC-2 account management")
	writeKBFile(t, root, "nested/b_policy.txt", "Incident response within 1 hour")

	excerpt := Load(root, 1000)
	want := "\n# SOURCE: a_controls.md\nAC-2 account management\n" + "\n" + "\n# SOURCE: b_policy.txt\nIncident response within 1 hour\n"
	if excerpt.Text != want {
		t.Fatalf("unexpected excerpt:\n%q\nwant\n%q", excerpt.Text, want)
	}
	if len(excerpt.Sources) != 2 || excerpt.Sources[1].Name != "b_policy.txt" {
		t.Fatalf("unexpected sources: %+v", excerpt.Sources)
	}
	if excerpt.Fingerprint == "" {
		t.Fatalf("expected fingerprint for non-empty excerpt")
	}
}

func TestLoadStopsBeforeExceedingBudget(t *testing.T) {
	root := t.TempDir()
	writeKBFile(t, root, "1.txt", strings.Repeat("a", 6))
	writeKBFile(t, root, "2.txt", strings.Repeat("b", 6))
	writeKBFile(t, root, "3.txt", strings.Repeat("c", 1))

	excerpt := Load(root, 10)
	if len(excerpt.Sources) != 1 {
		t.Fatalf("expected the walk to stop at the second file, got %+v", excerpt.Sources)
	}
	if strings.Contains(excerpt.Text, "b") || strings.Contains(excerpt.Text, "c") {
		t.Fatalf("later files must not be included: %q", excerpt.Text)
	}
	if excerpt.Chars != 6 {
		t.Fatalf("unexpected char count: %d", excerpt.Chars)
	}
}

func TestLoadSkipsHiddenAndExtensionlessFiles(t *testing.T) {
	root := t.TempDir()
	writeKBFile(t, root, "README", "no extension")
	writeKBFile(t, root, ".hidden.txt", "hidden")
	writeKBFile(t, root, ".git/config.txt", "hidden dir")
	writeKBFile(t, root, "kept.txt", "kept\xff")

	excerpt := Load(root, 100)
	if len(excerpt.Sources) != 1 || excerpt.Sources[0].Name != "kept.txt" {
		t.Fatalf("unexpected sources: %+v", excerpt.Sources)
	}
	if !strings.Contains(excerpt.Text, "kept\n") {
		t.Fatalf("expected invalid bytes dropped: %q", excerpt.Text)
	}
}

func TestLoadMissingDirectoryIsEmpty(t *testing.T) {
	excerpt := Load(filepath.Join(t.TempDir(), "absent"), 100)
	if excerpt.Text != "" || len(excerpt.Sources) != 0 || excerpt.Fingerprint != "" {
		t.Fatalf("expected empty excerpt, got %+v", excerpt)
	}
}

func TestFingerprintFile(t *testing.T) {
	root := t.TempDir()
	writeKBFile(t, root, "f.txt", "abc")
	got, err := FingerprintFile(filepath.Join(root, "f.txt"))
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("unexpected digest %s", got)
	}
	if FingerprintText("abc") != want {
		t.Fatalf("text digest mismatch")
	}
	if _, err := FingerprintFile(filepath.Join(root, "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
