package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credential namespace in the platform secret store.
const (
	credentialService = "nanny"
	credentialAccount = "llm_api_key"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Response ResponseConfig
	Ingest   IngestConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string
}

type StorageConfig struct {
	DataDir string
}

// LLMConfig describes the OpenAI-compatible chat-completions endpoint.
// An empty APIKey is valid and means the assistant runs without a
// language model.
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	HistoryTurns int
	Timeout      string
}

type ResponseConfig struct {
	Style string
}

type IngestConfig struct {
	Workers int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			AllowedOrigins: "*",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			MaxTokens:    800,
			Temperature:  0.7,
			HistoryTurns: 4,
			Timeout:      "60s",
		},
		Response: ResponseConfig{
			Style: "persona-warm",
		},
		Ingest: IngestConfig{
			Workers: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Origins splits the comma-separated AllowedOrigins value.
func (c ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RequestTimeout parses Timeout, falling back to 60s on bad input.
func (c LLMConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// HasCredential reports whether a language-model API key is configured.
func (c LLMConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, NANNY_* environment variables, and the platform
// secret store.
//
// On macOS the backend is UserDefaults (domain: com.nanny.app) and the API
// key may live in the macOS Keychain. Elsewhere the backend is a JSON file
// at $XDG_CONFIG_HOME/nanny/config.json and the key is kept in
// $XDG_DATA_HOME/nanny/secrets.json.
func Load() (Config, error) {
	loadDotEnv(".env")
	return loadWith(newPlatformBackend(), platformKeychain{})
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load %s: %v\n", path, err)
	}
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get(credentialService, credentialAccount); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}

	return cfg, nil
}

// SetCredential stores the language-model API key in the platform secret store.
func SetCredential(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("credential must not be empty")
	}
	return platformKeychain{}.Set(credentialService, credentialAccount, value)
}

// ClearCredential removes the stored API key. Removing a key that was never
// stored is not an error.
func ClearCredential() error {
	return platformKeychain{}.Delete(credentialService, credentialAccount)
}

// platformKeychain talks to the macOS Keychain or the XDG secrets file.
type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

func (platformKeychain) Delete(service, account string) error {
	return keychainDelete(service, account)
}
