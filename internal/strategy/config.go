package strategy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is one tenant's strategy selection in YAML.
type Config struct {
	TenantID string `yaml:"tenant_id"`
	Strategy string `yaml:"strategy"`
	Params   Params `yaml:"params"`
}

// ConfigFile is the top-level YAML structure.
type ConfigFile struct {
	Tenants []Config `yaml:"tenants"`
}

// LoadConfig reads tenant strategy selections from a YAML file.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return file.Tenants, nil
}

// ApplyConfig activates each tenant's configured strategy. A tenant whose
// entry fails validation is skipped and reported; the others still apply.
func ApplyConfig(reg *Registry, configs []Config) error {
	var firstErr error
	for _, cfg := range configs {
		if cfg.TenantID == "" {
			continue
		}
		if err := reg.SetActive(cfg.TenantID, cfg.Strategy, cfg.Params); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SyncConfigToDB upserts tenant strategy selections into the database.
func SyncConfigToDB(db *sql.DB, configs []Config) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO strategy_configs (tenant_id, strategy_id, params, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tenant_id) DO UPDATE SET
			strategy_id = excluded.strategy_id,
			params = excluded.params,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cfg := range configs {
		paramsJSON, err := json.Marshal(cfg.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal params for tenant %s: %w", cfg.TenantID, err)
		}
		if _, err := stmt.Exec(cfg.TenantID, cfg.Strategy, string(paramsJSON)); err != nil {
			return fmt.Errorf("failed to upsert strategy config for tenant %s: %w", cfg.TenantID, err)
		}
	}

	return tx.Commit()
}
