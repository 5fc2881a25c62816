package config

import "sync"

var (
	// globalConfig holds the configuration the running command loaded.
	globalConfig *Config

	// configMutex protects access to globalConfig.
	configMutex sync.RWMutex
)

// GetConfig returns the global configuration instance, or nil if no command
// has loaded one yet. Safe for concurrent use.
//
// For testing, prefer passing explicit Config instances.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the global configuration instance.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// reset clears the global state. Used by tests.
func reset() {
	SetConfig(nil)
}
