package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	envConfigDir = "ZEST_CONFIG_DIR"
	appDirName   = "zest"
)

// Dir is where settings and the default history database live.
// ZEST_CONFIG_DIR wins over the user config directory; when neither is
// available the working directory is used.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(envConfigDir)); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, appDirName)
	}
	return filepath.Join(".", "."+appDirName)
}
