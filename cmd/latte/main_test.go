package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Darkdragonzxs/Proxy/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRunFormat(t *testing.T) {
	cfg := &config.RuntimeConfig{}
	tests := []struct {
		args []string
		code int
		out  string
	}{
		{[]string{"example.com"}, 0, "https://example.com/\n"},
		{[]string{"hello", "world"}, 0, "https://www.duckduckgo.com/search?q=hello%20world\n"},
		{[]string{"about:blank"}, 1, ""},
		{nil, 2, ""},
	}
	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		code := runFormat(cfg, tt.args, &stdout, &stderr)
		if code != tt.code || stdout.String() != tt.out {
			t.Errorf("runFormat(%v) = %d %q (stderr %q)", tt.args, code, stdout.String(), stderr.String())
		}
	}
}

func TestNewCodec(t *testing.T) {
	cfg := &config.RuntimeConfig{Codec: "xor", ProxyOrigin: "http://localhost:8080"}
	c, err := newCodec(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if enc, _ := c.EncodeURL("https://example.com/"); enc != "hvtrs8%2F-ezaopne%2Ccmm-" {
		t.Errorf("xor EncodeURL = %q", enc)
	}

	cfg.Codec = "script"
	if _, err := newCodec(cfg); err != nil {
		t.Errorf("stock script codec: %v", err)
	}

	script := filepath.Join(t.TempDir(), "uv.config.js")
	src := `self.__uv$config = { prefix: '/p/', encodeUrl: Ultraviolet.codec.plain.encode };`
	if err := os.WriteFile(script, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.Codec = "xor"
	cfg.CodecScript = script
	c, err = newCodec(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Prefix() != "/p/" {
		t.Errorf("script file should win over codec kind, prefix = %q", c.Prefix())
	}

	cfg.CodecScript = filepath.Join(t.TempDir(), "missing.js")
	if _, err := newCodec(cfg); err == nil {
		t.Error("expected error for missing script")
	}

	cfg.CodecScript = ""
	cfg.Codec = "rot13"
	if _, err := newCodec(cfg); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestBuildHandler(t *testing.T) {
	cfg := &config.RuntimeConfig{Token: "secret"}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	reg := prometheus.NewRegistry()
	h := buildHandler(cfg, mux, reg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != 200 || w.Header().Get("X-Request-Id") == "" || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("health: %d %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/state", nil))
	if w.Code != 401 {
		t.Errorf("state without token = %d", w.Code)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	if !strings.Contains(strings.Join(names, ","), "latte_http_requests_total") {
		t.Errorf("metrics = %v", names)
	}
}
