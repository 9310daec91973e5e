package env

import "os"

// Get returns the environment variable or a fallback. Entrypoints use it for
// knobs outside the REBOOKED_ config tree, like PORT from the platform.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
