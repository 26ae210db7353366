package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  secret-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(Source{Name: "token", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "secret-value" {
		t.Fatalf("expected trimmed file value, got %q", got)
	}
}

func TestLoadFilePrecedenceOverEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOADER_TEST_SECRET", "from-env")

	got, err := Load(Source{File: path, Env: "LOADER_TEST_SECRET"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("file must win over env, got %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOADER_TEST_SECRET", " from-env ")

	got, err := Load(Source{Env: "LOADER_TEST_SECRET", Value: "inline"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("env must win over inline value, got %q", got)
	}
}

func TestLoadInlineFallback(t *testing.T) {
	got, err := Load(Source{Env: "LOADER_TEST_UNSET", Value: "inline"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "inline" {
		t.Fatalf("expected inline value, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(Source{Name: "api key"}); err == nil {
		t.Fatal("expected error when nothing is configured")
	}

	if _, err := Load(Source{File: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected error for missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Source{File: empty}); err == nil {
		t.Fatal("expected error for empty file")
	}
}
