// Package config loads a node's configuration from environment variables
// in the MARKER_* namespace.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/markerstore/marker-node/internal/icons"
	"github.com/markerstore/marker-node/internal/replication"
)

// Config is a node's full runtime configuration.
type Config struct {
	NodeID     uint64
	ListenAddr string
	DBPath     string

	Peers            []replication.PeerConfig
	PullIntervalSecs int
	HLCMaxDrift      time.Duration

	MetricsAddr string
	Icons       []icons.Icon
}

// LoadConfig loads configuration from environment variables, applying the
// same defaults-with-override idiom throughout: required values have no
// default and return an error when absent or malformed.
func LoadConfig() (*Config, error) {
	nodeIDStr, ok := os.LookupEnv("MARKER_NODE_ID")
	if !ok || nodeIDStr == "" {
		return nil, fmt.Errorf("MARKER_NODE_ID is required")
	}
	nodeID, err := strconv.ParseUint(nodeIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("MARKER_NODE_ID must be a valid uint64: %w", err)
	}

	cfg := &Config{
		NodeID:           nodeID,
		ListenAddr:       getEnv("MARKER_LISTEN_ADDR", "0.0.0.0:3000"),
		DBPath:           getEnv("MARKER_DB_PATH", "./marker-node.db"),
		MetricsAddr:      getEnv("MARKER_METRICS_ADDR", ":9090"),
		PullIntervalSecs: getIntEnv("MARKER_PULL_INTERVAL_SECS", 5),
		HLCMaxDrift:      getDurationEnv("MARKER_HLC_MAX_DRIFT", 60*time.Second),
		Icons:            defaultIcons(),
	}

	peers, err := parsePeers(os.Getenv("MARKER_PEERS"), cfg.PullIntervalSecs)
	if err != nil {
		return nil, err
	}
	cfg.Peers = peers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePeers parses a comma-separated list of "node_id@endpoint" entries.
func parsePeers(peersStr string, defaultPullIntervalSecs int) ([]replication.PeerConfig, error) {
	if peersStr == "" {
		return nil, nil
	}

	var peers []replication.PeerConfig
	for _, entry := range strings.Split(peersStr, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		atPos := strings.Index(entry, "@")
		if atPos < 0 {
			return nil, fmt.Errorf("MARKER_PEERS: invalid entry %q, expected format node_id@endpoint", entry)
		}

		nodeIDStr, endpoint := entry[:atPos], entry[atPos+1:]
		nodeID, err := strconv.ParseUint(nodeIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MARKER_PEERS: node_id in %q must be a valid uint64: %w", entry, err)
		}
		if endpoint == "" {
			return nil, fmt.Errorf("MARKER_PEERS: entry %q is missing an endpoint", entry)
		}

		peers = append(peers, replication.PeerConfig{
			NodeID:           nodeID,
			Endpoint:         endpoint,
			PullIntervalSecs: defaultPullIntervalSecs,
		})
	}
	return peers, nil
}

// defaultIcons is the icon set every node accepts; LoadConfig reads no
// setting that replaces it. It matches the icon set the original map view
// ships.
func defaultIcons() []icons.Icon {
	return []icons.Icon{
		{ID: "ship", Name: "Ship", Filename: "ship.svg"},
		{ID: "buoy", Name: "Buoy", Filename: "buoy.svg"},
		{ID: "lighthouse", Name: "Lighthouse", Filename: "lighthouse.svg"},
		{ID: "anchor", Name: "Anchor", Filename: "anchor.svg"},
		{ID: "flag", Name: "Flag", Filename: "flag.svg"},
		{ID: "warning", Name: "Warning", Filename: "warning.svg"},
	}
}

// Validate checks invariants that cross multiple fields.
func (c *Config) Validate() error {
	if c.PullIntervalSecs <= 0 {
		return fmt.Errorf("MARKER_PULL_INTERVAL_SECS must be positive, got %d", c.PullIntervalSecs)
	}
	for _, peer := range c.Peers {
		if peer.NodeID == c.NodeID {
			return fmt.Errorf("MARKER_PEERS: peer list must not include this node's own id %d", c.NodeID)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
