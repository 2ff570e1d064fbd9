package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

const (
	// EnvFileVar points at an alternate .env when none sits beside the
	// executable.
	EnvFileVar = "SCREENOCR_ENV"

	APIKeyEnvVar     = "OPENROUTER_API_KEY"
	APIKeyPathEnvVar = "OPENROUTER_API_KEY_FILE"

	PaddleEndpointEnvVar = "SCREENOCR_PADDLE_ENDPOINT"

	keyringService = "ScreenOCR"
	keyringUser    = "openrouter"
)

type LoadOptions struct {
	APIKeyPathOverride string
}

// Config carries process-level values resolved once at startup. User
// preferences live in the settings store; this layer only covers what
// must exist before the store does.
type Config struct {
	APIKey     string
	APIKeyPath string
	Model      string
	Providers  []string

	PaddleEndpoint string

	EnableFileLogging bool
	OCRDeadlineSec    int
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions loads the .env bootstrap file and resolves the
// process configuration. Real environment variables win over .env
// values; explicit option overrides win over both.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	ocrDeadlineSec := 20
	if v := os.Getenv("OCR_DEADLINE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ocrDeadlineSec = n
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             os.Getenv("MODEL"),
		Providers:         providers,
		PaddleEndpoint:    os.Getenv(PaddleEndpointEnvVar),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		OCRDeadlineSec:    ocrDeadlineSec,
	}

	return cfg, nil
}

// resolveEnvPath prefers a .env beside the executable, then the path in
// SCREENOCR_ENV.
func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := ""

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

// resolveAPIKey resolves the vision API key: key file, then environment
// (godotenv already merged the .env into it), then the OS keyring.
func resolveAPIKey(keyPath string) string {
	if keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
				return fileKey
			}
		}
	}

	if envKey := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); envKey != "" {
		return envKey
	}

	if stored, err := keyring.Get(keyringService, keyringUser); err == nil {
		if stored = strings.TrimSpace(stored); stored != "" {
			return stored
		}
	}

	return ""
}

// StoreAPIKey saves the vision API key in the OS keyring.
func StoreAPIKey(key string) error {
	return keyring.Set(keyringService, keyringUser, key)
}

// DeleteAPIKey removes the vision API key from the OS keyring.
func DeleteAPIKey() error {
	return keyring.Delete(keyringService, keyringUser)
}
