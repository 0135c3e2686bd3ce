package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDGNSS    string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicFix        string
	TopicNavSol     string
	TopicRelPosNed  string
	TopicSvin       string
	TopicSatellites string
	TopicDiag       string
	TopicPoll       string

	// GNSS receiver
	GNSSSerialPort   string
	GNSSBaudRate     int
	GNSSMeasRateMs   int
	GNSSDynamicModel byte

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_GNSS":
		c.MQTTClientIDGNSS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_FIX":
		c.TopicFix = value
	case "TOPIC_NAV_SOL":
		c.TopicNavSol = value
	case "TOPIC_RELPOSNED":
		c.TopicRelPosNed = value
	case "TOPIC_SVIN":
		c.TopicSvin = value
	case "TOPIC_SATELLITES":
		c.TopicSatellites = value
	case "TOPIC_DIAG":
		c.TopicDiag = value
	case "TOPIC_POLL":
		c.TopicPoll = value

	// GNSS receiver
	case "GNSS_SERIAL_PORT":
		c.GNSSSerialPort = value
	case "GNSS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GNSS_BAUD_RATE %q: %w", value, err)
		}
		c.GNSSBaudRate = rate
	case "GNSS_MEAS_RATE_MS":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GNSS_MEAS_RATE_MS %q: %w", value, err)
		}
		if rate < 25 || rate > 65535 {
			return fmt.Errorf("GNSS_MEAS_RATE_MS must be 25-65535, got %d", rate)
		}
		c.GNSSMeasRateMs = rate
	case "GNSS_DYNAMIC_MODEL":
		model, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GNSS_DYNAMIC_MODEL %q: %w", value, err)
		}
		if model < 0 || model > 10 {
			return fmt.Errorf("GNSS_DYNAMIC_MODEL must be 0-10, got %d", model)
		}
		c.GNSSDynamicModel = byte(model)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.GNSSSerialPort == "" {
		return fmt.Errorf("GNSS_SERIAL_PORT is required")
	}
	if c.GNSSBaudRate == 0 {
		return fmt.Errorf("GNSS_BAUD_RATE is required")
	}
	if c.GNSSMeasRateMs == 0 {
		return fmt.Errorf("GNSS_MEAS_RATE_MS is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
