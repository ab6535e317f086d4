// Package config loads the tracker server's configuration from a JSON
// file, with a handful of environment variables allowed to override the
// fields operators most often need to change per deployment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-slimevr/trackerhub/pkg/logger"
)

var errConfigPathEmpty = errors.New("config path must not be empty")

const (
	envListenPort      = "TRACKERHUB_PORT"
	envThreadName      = "TRACKERHUB_THREAD_NAME"
	envBroadcastPort   = "TRACKERHUB_DISCOVERY_PORT"
	defaultListenPort  = 6969
	defaultThreadName  = "trackerhub-eventloop"
	defaultBroadcastPt = 6969
)

// Config is the complete set of tunables the event loop and its
// collaborators need. Everything the core cares about (§4, §6 of the
// specification) is a field here; there is no remote config source, no
// hot reload and no KV layer — session state lives only in memory for the
// life of the process, so there is nothing for a config watcher to
// reconcile against.
type Config struct {
	// ListenPort is the UDP port the event loop binds on all interfaces.
	ListenPort int `json:"listen_port"`
	// ThreadName names the single goroutine running the event loop, used
	// only for log context.
	ThreadName string `json:"thread_name"`
	// DiscoveryBroadcastPort is the port discovery heartbeats are sent to
	// on each enumerated broadcast address.
	DiscoveryBroadcastPort int `json:"discovery_broadcast_port"`
	// Logging configures the structured logger shared by every component.
	Logging logger.Config `json:"logging"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		ListenPort:             defaultListenPort,
		ThreadName:             defaultThreadName,
		DiscoveryBroadcastPort: defaultBroadcastPt,
		Logging:                logger.DefaultConfig(),
	}
}

// Load reads a JSON config file at path, falling back to Default() for any
// field the file and the environment both leave unset, then applies
// environment-variable overrides on top.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errConfigPathEmpty
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := json.Unmarshal(data, &cfg); unmarshalErr != nil {
			return Config{}, fmt.Errorf("failed to parse config file %q: %w", path, unmarshalErr)
		}
	case os.IsNotExist(err):
		// No file on disk yet is not fatal — Default() plus env vars is a
		// legitimate way to run this server in a container.
	default:
		return Config{}, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envListenPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = port
		}
	}

	if v := os.Getenv(envThreadName); v != "" {
		cfg.ThreadName = v
	}

	if v := os.Getenv(envBroadcastPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.DiscoveryBroadcastPort = port
		}
	}
}
