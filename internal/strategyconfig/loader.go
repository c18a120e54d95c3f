package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML file layered over Default and returns the config with
// the raw bytes. An empty path returns the defaults.
// ⭐ SSOT: KnownFields(true) rejects typos and unused fields
func Load(path string) (*Config, []byte, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read strategy config: %w", err)
	}

	if err := decode(data, cfg); err != nil {
		return nil, data, fmt.Errorf("parse strategy config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, data, err
	}

	return cfg, data, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Hash generates SHA256 hash from Config (canonical JSON)
// Struct fields (not maps) keep the encoding order stable.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Provenance ties a run's output to the exact configuration that produced it
type Provenance struct {
	RunID      string    `json:"run_id"`
	ConfigID   string    `json:"config_id"`
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewProvenance creates the provenance record for a run
func NewProvenance(cfg *Config, yamlData []byte, runID string, now time.Time) (*Provenance, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &Provenance{
		RunID:      runID,
		ConfigID:   cfg.Meta.ConfigID,
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		CreatedAt:  now,
	}, nil
}
