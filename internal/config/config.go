package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Bind             string
	Port             string
	Token            string
	StateDir         string
	CdpURL           string
	Headless         bool
	ProfileDir       string
	ChromeBinary     string
	ChromeExtraFlags string

	// ProxyOrigin is where the proxy front end (prefix routes and service
	// worker script) is served from.
	ProxyOrigin       string
	ServiceWorkerPath string
	Codec             string
	CodecScript       string
	SearchURL         string
	DefaultTitle      string

	ErrorClearDelay time.Duration
	CorsReloadDelay time.Duration
	NavigateTimeout time.Duration
	ShutdownTimeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

// ShellURL is the outer page address the session history starts from.
func (c *RuntimeConfig) ShellURL() string {
	host := c.Bind
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + c.Port + "/"
}

type FileConfig struct {
	Port              string `json:"port" yaml:"port"`
	Token             string `json:"token,omitempty" yaml:"token,omitempty"`
	StateDir          string `json:"stateDir" yaml:"stateDir"`
	CdpURL            string `json:"cdpUrl,omitempty" yaml:"cdpUrl,omitempty"`
	Headless          *bool  `json:"headless,omitempty" yaml:"headless,omitempty"`
	ProfileDir        string `json:"profileDir" yaml:"profileDir"`
	ProxyOrigin       string `json:"proxyOrigin" yaml:"proxyOrigin"`
	ServiceWorkerPath string `json:"serviceWorkerPath,omitempty" yaml:"serviceWorkerPath,omitempty"`
	Codec             string `json:"codec,omitempty" yaml:"codec,omitempty"`
	CodecScript       string `json:"codecScript,omitempty" yaml:"codecScript,omitempty"`
	SearchURL         string `json:"searchUrl,omitempty" yaml:"searchUrl,omitempty"`
	DefaultTitle      string `json:"defaultTitle,omitempty" yaml:"defaultTitle,omitempty"`
	NavigateSec       int    `json:"navigateSec,omitempty" yaml:"navigateSec,omitempty"`
}

// DefaultConfigPath returns the config file location, honoring LATTE_CONFIG.
func DefaultConfigPath() string {
	return envOr("LATTE_CONFIG", filepath.Join(homeDir(), ".latte", "config.json"))
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:              envOr("LATTE_BIND", "127.0.0.1"),
		Port:              envOr("LATTE_PORT", "9870"),
		Token:             os.Getenv("LATTE_TOKEN"),
		StateDir:          envOr("LATTE_STATE_DIR", filepath.Join(homeDir(), ".latte")),
		CdpURL:            os.Getenv("CDP_URL"),
		Headless:          envBoolOr("LATTE_HEADLESS", false),
		ProfileDir:        envOr("LATTE_PROFILE", filepath.Join(homeDir(), ".latte", "chrome-profile")),
		ChromeBinary:      os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags:  os.Getenv("CHROME_FLAGS"),
		ProxyOrigin:       envOr("LATTE_PROXY_ORIGIN", "http://localhost:8080"),
		ServiceWorkerPath: envOr("LATTE_SW_PATH", "/sw.js"),
		Codec:             envOr("LATTE_CODEC", "xor"),
		CodecScript:       os.Getenv("LATTE_CODEC_SCRIPT"),
		SearchURL:         envOr("LATTE_SEARCH_URL", "https://www.duckduckgo.com/search?q="),
		DefaultTitle:      envOr("LATTE_DEFAULT_TITLE", "latte"),
		ErrorClearDelay:   3 * time.Second,
		CorsReloadDelay:   2 * time.Second,
		NavigateTimeout:   time.Duration(envIntOr("LATTE_NAV_TIMEOUT", 30)) * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}

	fc, err := ReadFileConfig(DefaultConfigPath())
	if err != nil {
		return cfg
	}
	applyFileConfig(cfg, fc)
	return cfg
}

// ReadFileConfig decodes a config file; .yaml and .yml files are YAML, all
// others JSON.
func ReadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func applyFileConfig(cfg *RuntimeConfig, fc FileConfig) {
	if fc.Port != "" && os.Getenv("LATTE_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.Token != "" && os.Getenv("LATTE_TOKEN") == "" {
		cfg.Token = fc.Token
	}
	if fc.StateDir != "" && os.Getenv("LATTE_STATE_DIR") == "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.CdpURL != "" && os.Getenv("CDP_URL") == "" {
		cfg.CdpURL = fc.CdpURL
	}
	if fc.Headless != nil && os.Getenv("LATTE_HEADLESS") == "" {
		cfg.Headless = *fc.Headless
	}
	if fc.ProfileDir != "" && os.Getenv("LATTE_PROFILE") == "" {
		cfg.ProfileDir = fc.ProfileDir
	}
	if fc.ProxyOrigin != "" && os.Getenv("LATTE_PROXY_ORIGIN") == "" {
		cfg.ProxyOrigin = fc.ProxyOrigin
	}
	if fc.ServiceWorkerPath != "" && os.Getenv("LATTE_SW_PATH") == "" {
		cfg.ServiceWorkerPath = fc.ServiceWorkerPath
	}
	if fc.Codec != "" && os.Getenv("LATTE_CODEC") == "" {
		cfg.Codec = fc.Codec
	}
	if fc.CodecScript != "" && os.Getenv("LATTE_CODEC_SCRIPT") == "" {
		cfg.CodecScript = fc.CodecScript
	}
	if fc.SearchURL != "" && os.Getenv("LATTE_SEARCH_URL") == "" {
		cfg.SearchURL = fc.SearchURL
	}
	if fc.DefaultTitle != "" && os.Getenv("LATTE_DEFAULT_TITLE") == "" {
		cfg.DefaultTitle = fc.DefaultTitle
	}
	if fc.NavigateSec > 0 && os.Getenv("LATTE_NAV_TIMEOUT") == "" {
		cfg.NavigateTimeout = time.Duration(fc.NavigateSec) * time.Second
	}
}

func DefaultFileConfig() FileConfig {
	h := false
	return FileConfig{
		Port:              "9870",
		StateDir:          filepath.Join(homeDir(), ".latte"),
		ProfileDir:        filepath.Join(homeDir(), ".latte", "chrome-profile"),
		Headless:          &h,
		ProxyOrigin:       "http://localhost:8080",
		ServiceWorkerPath: "/sw.js",
		Codec:             "xor",
		NavigateSec:       30,
	}
}

func HandleConfigCommand(cfg *RuntimeConfig, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: latte config <command>")
		fmt.Println("Commands:")
		fmt.Println("  init    - Create default config file")
		fmt.Println("  show    - Show current configuration")
		return
	}

	switch args[0] {
	case "init":
		configPath := DefaultConfigPath()

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config file already exists at %s\n", configPath)
			fmt.Print("Overwrite? (y/N): ")
			var response string
			_, _ = fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				return
			}
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			fmt.Printf("Error creating directory: %v\n", err)
			os.Exit(1)
		}

		data, err := MarshalFileConfig(configPath, DefaultFileConfig())
		if err != nil {
			fmt.Printf("Error encoding config: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file created at %s\n", configPath)

	case "show":
		fmt.Println("Current configuration:")
		fmt.Printf("  Listen:       %s\n", cfg.ListenAddr())
		fmt.Printf("  Token:        %s\n", MaskToken(cfg.Token))
		fmt.Printf("  State Dir:    %s\n", cfg.StateDir)
		fmt.Printf("  CDP URL:      %s\n", cfg.CdpURL)
		fmt.Printf("  Profile:      %s\n", cfg.ProfileDir)
		fmt.Printf("  Headless:     %v\n", cfg.Headless)
		fmt.Printf("  Proxy Origin: %s\n", cfg.ProxyOrigin)
		fmt.Printf("  Codec:        %s %s\n", cfg.Codec, cfg.CodecScript)
		fmt.Printf("  Search:       %s\n", cfg.SearchURL)
		fmt.Printf("  Title:        %s\n", cfg.DefaultTitle)
		fmt.Printf("  Timeouts:     navigate=%v shutdown=%v\n", cfg.NavigateTimeout, cfg.ShutdownTimeout)

	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		os.Exit(1)
	}
}

// MarshalFileConfig encodes fc in the format implied by path's extension.
func MarshalFileConfig(path string, fc FileConfig) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(fc)
	default:
		return json.MarshalIndent(fc, "", "  ")
	}
}

func MaskToken(t string) string {
	if t == "" {
		return "(none)"
	}
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
