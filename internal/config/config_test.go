package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOr(t *testing.T) {
	key := "LATTE_TEST_ENV"
	fallback := "default"

	_ = os.Unsetenv(key)
	if got := envOr(key, fallback); got != fallback {
		t.Errorf("envOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "set")
	if got := envOr(key, fallback); got != "set" {
		t.Errorf("envOr() = %v, want %v", got, "set")
	}
}

func TestEnvIntOr(t *testing.T) {
	key := "LATTE_TEST_INT"
	fallback := 42

	_ = os.Unsetenv(key)
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "100")
	if got := envIntOr(key, fallback); got != 100 {
		t.Errorf("envIntOr() = %v, want %v", got, 100)
	}

	t.Setenv(key, "invalid")
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "-3")
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() negative = %v, want %v", got, fallback)
	}
}

func TestEnvBoolOr(t *testing.T) {
	key := "LATTE_TEST_BOOL"

	_ = os.Unsetenv(key)
	if got := envBoolOr(key, true); got != true {
		t.Errorf("envBoolOr() unset = %v, want true", got)
	}

	tests := []struct {
		val  string
		want bool
	}{
		{"1", true}, {"true", true}, {"yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"no", false}, {"off", false},
		{"garbage", true},
	}
	for _, tt := range tests {
		t.Setenv(key, tt.val)
		if got := envBoolOr(key, true); got != tt.want {
			t.Errorf("envBoolOr(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LATTE_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	for _, k := range []string{"LATTE_PORT", "LATTE_CODEC", "LATTE_DEFAULT_TITLE", "LATTE_SEARCH_URL", "LATTE_HEADLESS"} {
		_ = os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.Port != "9870" {
		t.Errorf("expected default port 9870, got %s", cfg.Port)
	}
	if cfg.Codec != "xor" {
		t.Errorf("expected xor codec, got %s", cfg.Codec)
	}
	if cfg.DefaultTitle != "latte" {
		t.Errorf("expected default title latte, got %s", cfg.DefaultTitle)
	}
	if cfg.SearchURL != "https://www.duckduckgo.com/search?q=" {
		t.Errorf("unexpected search url %s", cfg.SearchURL)
	}
	if cfg.ErrorClearDelay != 3*time.Second || cfg.CorsReloadDelay != 2*time.Second {
		t.Errorf("unexpected delays %v %v", cfg.ErrorClearDelay, cfg.CorsReloadDelay)
	}
	if cfg.Headless {
		t.Error("expected headed chrome by default")
	}
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"port":"7000","proxyOrigin":"https://proxy.test","codec":"plain","navigateSec":5}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LATTE_CONFIG", path)
	_ = os.Unsetenv("LATTE_PORT")
	_ = os.Unsetenv("LATTE_PROXY_ORIGIN")
	_ = os.Unsetenv("LATTE_CODEC")
	_ = os.Unsetenv("LATTE_NAV_TIMEOUT")

	cfg := Load()
	if cfg.Port != "7000" {
		t.Errorf("expected port 7000, got %s", cfg.Port)
	}
	if cfg.ProxyOrigin != "https://proxy.test" {
		t.Errorf("expected proxy origin from file, got %s", cfg.ProxyOrigin)
	}
	if cfg.Codec != "plain" {
		t.Errorf("expected plain codec, got %s", cfg.Codec)
	}
	if cfg.NavigateTimeout != 5*time.Second {
		t.Errorf("expected 5s navigate timeout, got %v", cfg.NavigateTimeout)
	}
}

func TestLoadYAMLFileEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"7001\"\ndefaultTitle: mocha\ncodec: base64\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LATTE_CONFIG", path)
	t.Setenv("LATTE_PORT", "7002")
	_ = os.Unsetenv("LATTE_DEFAULT_TITLE")
	_ = os.Unsetenv("LATTE_CODEC")

	cfg := Load()
	if cfg.Port != "7002" {
		t.Errorf("env should win over file, got port %s", cfg.Port)
	}
	if cfg.DefaultTitle != "mocha" {
		t.Errorf("expected title from yaml, got %s", cfg.DefaultTitle)
	}
	if cfg.Codec != "base64" {
		t.Errorf("expected base64 codec, got %s", cfg.Codec)
	}
}

func TestReadFileConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	_ = os.WriteFile(path, []byte("{not json"), 0644)
	if _, err := ReadFileConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestMarshalFileConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.json", "c.yml"} {
		path := filepath.Join(dir, name)
		data, err := MarshalFileConfig(path, DefaultFileConfig())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
		fc, err := ReadFileConfig(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if fc.Port != "9870" || fc.Codec != "xor" || fc.Headless == nil || *fc.Headless {
			t.Errorf("%s: unexpected decoded config %+v", name, fc)
		}
	}
}

func TestShellURL(t *testing.T) {
	cfg := &RuntimeConfig{Bind: "0.0.0.0", Port: "9870"}
	if got := cfg.ShellURL(); got != "http://localhost:9870/" {
		t.Errorf("ShellURL() = %s", got)
	}
	cfg.Bind = "127.0.0.1"
	if got := cfg.ListenAddr(); got != "127.0.0.1:9870" {
		t.Errorf("ListenAddr() = %s", got)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "(none)"},
		{"short", "***"},
		{"abcdefghijkl", "abcd...ijkl"},
	}
	for _, tt := range tests {
		if got := MaskToken(tt.in); got != tt.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
