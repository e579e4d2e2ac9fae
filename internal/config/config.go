// Package config loads simulator.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SimulatorConfig is the on-disk simulator configuration.
type SimulatorConfig struct {
	Version int `yaml:"version"`

	Workflow struct {
		Template string `yaml:"template"`
		Case     string `yaml:"case"`
		Policy   string `yaml:"policy"`
	} `yaml:"workflow"`

	Playback struct {
		Speed             float64 `yaml:"speed"`
		TransitionDelayMs int     `yaml:"transition_delay_ms"`
		TickIntervalMs    int     `yaml:"tick_interval_ms"`
		MessageCadenceMs  int     `yaml:"message_cadence_ms"`
		FrameIntervalMs   int     `yaml:"frame_interval_ms"`
		AutoPlay          bool    `yaml:"auto_play"`
		LockLayout        bool    `yaml:"lock_layout"`
	} `yaml:"playback"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	HTTP struct {
		Port    int    `yaml:"port"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key"`
	} `yaml:"http"`

	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		URL         string `yaml:"url"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`

	Postgres struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"postgres"`

	Redis struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		DB      int    `yaml:"db"`
		TTL     string `yaml:"ttl"`
	} `yaml:"redis"`
}

// Default returns the configuration used when no file is given.
func Default() *SimulatorConfig {
	cfg := &SimulatorConfig{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// Load reads a simulator.yaml file. An empty path yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*SimulatorConfig, error) {
	cfg := &SimulatorConfig{Version: 1}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = &SimulatorConfig{}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
		if cfg.Version != 1 {
			return nil, fmt.Errorf("unsupported simulator.yaml version: %d", cfg.Version)
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SimulatorConfig) applyDefaults() {
	if c.Playback.Speed == 0 {
		c.Playback.Speed = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.MQTT.URL == "" {
		c.MQTT.URL = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "fnolsim"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "fnolsim"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.TTL == "" {
		c.Redis.TTL = "24h"
	}
}

func (c *SimulatorConfig) applyEnv() error {
	if v := os.Getenv("SIM_TEMPLATE"); v != "" {
		c.Workflow.Template = v
	}
	if v := os.Getenv("SIM_CASE"); v != "" {
		c.Workflow.Case = v
	}
	if v := os.Getenv("SIM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SIM_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SIM_HTTP_PORT %q: %w", v, err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("MQTT_URL"); v != "" {
		c.MQTT.URL = v
		c.MQTT.Enabled = true
	}
	if os.Getenv("PGHOST") != "" {
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	return nil
}

// TransitionDelay returns the transition animation time, or zero for the
// runtime default.
func (c *SimulatorConfig) TransitionDelay() time.Duration {
	return time.Duration(c.Playback.TransitionDelayMs) * time.Millisecond
}

// TickInterval returns the elapsed-time refresh interval, or zero for the
// runtime default.
func (c *SimulatorConfig) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickIntervalMs) * time.Millisecond
}

// MessageCadence returns the delay between stage messages, or zero for the
// streamer default.
func (c *SimulatorConfig) MessageCadence() time.Duration {
	return time.Duration(c.Playback.MessageCadenceMs) * time.Millisecond
}

// FrameInterval returns how often websocket clients receive a full frame.
func (c *SimulatorConfig) FrameInterval() time.Duration {
	if c.Playback.FrameIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(c.Playback.FrameIntervalMs) * time.Millisecond
}

// RedisTTL parses the snapshot expiry.
func (c *SimulatorConfig) RedisTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Redis.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid redis ttl %q: %w", c.Redis.TTL, err)
	}
	return d, nil
}

// HTTPAddr returns the listen address for the HTTP server.
func (c *SimulatorConfig) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}
