package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/futureCreator/autoship/internal/config"
)

func TestInitCreatesProjectFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	initMinimal, initUser = false, false

	var out bytes.Buffer
	initCmd.SetOut(&out)
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".autoship", "config.yaml"))
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.OutputDir != "dist" {
		t.Errorf("expected output_dir dist, got %q", cfg.OutputDir)
	}

	ignore, err := os.ReadFile(filepath.Join(dir, ".autoship", ".gitignore"))
	if err != nil {
		t.Fatalf(".gitignore not created: %v", err)
	}
	for _, want := range []string{"runs/", "autoship.log", "autoship.lock"} {
		if !strings.Contains(string(ignore), want) {
			t.Errorf(".gitignore missing %q", want)
		}
	}
	if !strings.Contains(out.String(), "Created") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestInitUserFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())
	initMinimal, initUser = false, true
	defer func() { initUser = false }()

	initCmd.SetOut(&bytes.Buffer{})
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit --user: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".autoship", "config.yaml")); err != nil {
		t.Fatalf("user config not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(".autoship", ".gitignore")); err == nil {
		t.Error("--user must not touch the project state dir")
	}
}

func TestInitSkipsWhenFileExists(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	initMinimal, initUser = false, false

	configDir := filepath.Join(dir, ".autoship")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	original := []byte("original content")
	if err := os.WriteFile(configPath, original, 0644); err != nil {
		t.Fatal(err)
	}

	initCmd.SetOut(&bytes.Buffer{})
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(original) {
		t.Errorf("runInit overwrote existing config: got %q, want %q", data, original)
	}
}

func TestInitMinimalFlag(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	initMinimal, initUser = true, false
	defer func() { initMinimal = false }()

	initCmd.SetOut(&bytes.Buffer{})
	if err := runInit(initCmd, nil); err != nil {
		t.Fatalf("runInit --minimal: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".autoship", "config.yaml"))
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			t.Errorf("minimal config has unexpected comment at line %d: %q", i+1, line)
		}
	}
}
