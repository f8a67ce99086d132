package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"shoprag/config"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo stores schema version and configuration hash.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

func getSchemaInfo(db *bbolt.DB) (*SchemaInfo, error) {
	var info SchemaInfo
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if versionData := b.Get(keySchemaVersion); versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				info.Version = -1
			}
		}
		if hashData := b.Get(keyConfigHash); hashData != nil {
			info.ConfigHash = string(hashData)
		}
		return nil
	})
	return &info, err
}

func setSchemaInfo(db *bbolt.DB, info *SchemaInfo) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash hashes the settings that make stored vectors
// incomparable with fresh ones. A change means the collection must be rebuilt.
func ComputeConfigHash(cfg config.EmbeddingConfig) string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsReset bool
	OldVersion int
	NewVersion int
	Reason     string
}

// checkMigration compares the stored schema info with what this build
// writes. configHash may be empty to skip the configuration check.
func checkMigration(db *bbolt.DB, configHash string) (*MigrationResult, error) {
	info, err := getSchemaInfo(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		// fresh file, nothing to reset
	case info.Version != CurrentSchemaVersion:
		result.NeedsReset = true
		result.Reason = fmt.Sprintf("schema version v%d, expected v%d", info.Version, CurrentSchemaVersion)
	case configHash != "" && info.ConfigHash != "" && info.ConfigHash != configHash:
		result.NeedsReset = true
		result.Reason = "embedding configuration changed"
	}

	return result, nil
}

// migrate resets the collections when needed and stamps the current schema.
func migrate(db *bbolt.DB, configHash string) (*MigrationResult, error) {
	result, err := checkMigration(db, configHash)
	if err != nil {
		return nil, err
	}

	if result.NeedsReset {
		if err := dropCollections(db); err != nil {
			return nil, fmt.Errorf("failed to reset collections: %w", err)
		}
	}

	if configHash == "" {
		old, err := getSchemaInfo(db)
		if err != nil {
			return nil, err
		}
		configHash = old.ConfigHash
	}
	info := &SchemaInfo{Version: CurrentSchemaVersion, ConfigHash: configHash}
	if err := setSchemaInfo(db, info); err != nil {
		return nil, err
	}
	return result, nil
}
