package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the annotated YAML scaffold written by `iscchubd init`.
// Operators fill in server_id, seckey, and domain before first start.
const configTemplate = `# ISCC HUB Configuration File
#
# server_id must be unique among HUBs sharing a nonce namespace (0-4095).
# seckey must point to an existing Ed25519 private key file; generate one
# with: iscchubctl keygen --out %s
server_id: 0
seckey: "%s"
domain: "localhost"
skew_seconds: 600
shutdown_timeout: 30s

logging:
  level: "INFO"
  format: "text"
  output: "stdout"

store:
  engine: badger
  badger:
    path: "%s"

api:
  enabled: true
  port: 8080
  max_events_page_size: 100

metrics:
  enabled: false
  port: 9090

telemetry:
  enabled: false
  endpoint: "localhost:4317"

archive:
  enabled: false
`

// InitConfig creates a configuration file at the default location.
// Returns the path written, or an error if the file already exists and
// force is false.
func InitConfig(force bool) (string, error) {
	return initConfig(GetDefaultConfigPath(), force)
}

// InitConfigToPath creates a configuration file at the given path.
func InitConfigToPath(path string, force bool) error {
	_, err := initConfig(path, force)
	return err
}

func initConfig(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	seckeyPath := filepath.ToSlash(filepath.Join(dir, "hub.key"))
	storePath := filepath.ToSlash(filepath.Join(dir, "events"))
	content := fmt.Sprintf(configTemplate, seckeyPath, seckeyPath, storePath)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
