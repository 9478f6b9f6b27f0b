package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\nlimit: 3\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "from-env" || s.Limit != 3 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeConfig(t, "limit: -1\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Limit: 20}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Name != "default" || s.Limit != 20 {
		t.Errorf("defaults changed: %+v", s)
	}
}

func TestLoadOptional_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, "limit: 5\n")
	s := sample{Name: "default", Limit: 20}
	if err := LoadOptional(p, &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if s.Name != "default" || s.Limit != 5 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadOptional_ValidatesDefaults(t *testing.T) {
	s := sample{Limit: -1}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s); err == nil {
		t.Fatal("expected validation error for invalid defaults")
	}
}
