package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if len(cfg.Finder.Exclude) != 1 || cfg.Finder.Exclude[0] != ".git" {
		t.Errorf("default exclude = %v", cfg.Finder.Exclude)
	}
	if !cfg.Finder.RespectGitignore {
		t.Error("ignore files should be respected by default")
	}
}

func TestFinderConfig_Workers(t *testing.T) {
	cfg := FinderConfig{Workers: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative workers should fail validation")
	}
	cfg.Workers = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero workers should pass: %v", err)
	}
}

func TestFinderConfig_ExcludeMustBeNames(t *testing.T) {
	for _, bad := range []string{"", "a/b", `a\b`} {
		cfg := FinderConfig{Exclude: []string{"node_modules", bad}}
		if err := cfg.Validate(); err == nil {
			t.Errorf("exclude %q should fail validation", bad)
		}
	}
}

func TestFinderConfig_ResolveRoot(t *testing.T) {
	cfg := FinderConfig{Root: "/srv/data"}
	root, err := cfg.ResolveRoot()
	if err != nil || root != "/srv/data" {
		t.Fatalf("ResolveRoot = %q, %v", root, err)
	}

	t.Setenv("HOME", t.TempDir())
	cfg.Root = ""
	root, err = cfg.ResolveRoot()
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if root == "" {
		t.Error("empty root should fall back to the home directory")
	}
}
