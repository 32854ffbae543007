package dsconfig

import (
	"log/slog"
	"os"
	"strings"

	json "github.com/goccy/go-json"
)

// Environment variables forming the second cascade layer. Each one overrides a
// single piece of the compiled-in defaults.
const (
	EnvListSource   = "SHOWGATE_LIST_SOURCE"
	EnvDetailSource = "SHOWGATE_DETAIL_SOURCE"
	EnvMergePolicy  = "SHOWGATE_MERGE_POLICY"
)

// FromEnv layers single-value environment overrides over the base
// configuration. Malformed values are skipped, never fatal.
func FromEnv(base Config, logger *slog.Logger) Config {
	cfg := base.Clone()
	if v := strings.TrimSpace(os.Getenv(EnvListSource)); v != "" {
		cfg.ListSource = ParseSourceChoice(v, cfg.ListSource)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDetailSource)); v != "" {
		cfg.DetailSource = ParseSourceChoice(v, cfg.DetailSource)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMergePolicy)); v != "" {
		var policy MergePolicy
		if err := json.Unmarshal([]byte(v), &policy); err != nil {
			if logger != nil {
				logger.Warn("skipping malformed merge policy from environment", "error", err)
			}
		} else {
			cfg.MergePolicy = cfg.MergePolicy.overlay(policy)
		}
	}
	return cfg
}

// Seed resolves the synchronous cascade layers available at process start:
// compiled-in defaults overlaid by environment overrides. The remote document
// and the persisted override are applied asynchronously afterwards.
func Seed(logger *slog.Logger) Config {
	return FromEnv(DefaultConfig(), logger)
}

// remoteDocument is the wire shape of the remote configuration JSON.
type remoteDocument struct {
	DataSources struct {
		ListSourceChoice   string `json:"listSourceChoice"`
		DetailSourceChoice string `json:"detailSourceChoice"`
	} `json:"dataSources"`
	MergePolicy *MergePolicy `json:"mergePolicy"`
}

// partialFromRemote converts a remote document into a configuration patch.
// Invalid choice values resolve against the current configuration so a bad
// remote value cannot move the config sideways.
func partialFromRemote(data []byte, current Config) (Partial, error) {
	var doc remoteDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Partial{}, err
	}

	var p Partial
	if raw := strings.TrimSpace(doc.DataSources.ListSourceChoice); raw != "" {
		choice := ParseSourceChoice(raw, current.ListSource)
		p.ListSource = &choice
	}
	if raw := strings.TrimSpace(doc.DataSources.DetailSourceChoice); raw != "" {
		choice := ParseSourceChoice(raw, current.DetailSource)
		p.DetailSource = &choice
	}
	if doc.MergePolicy != nil {
		policy := *doc.MergePolicy
		p.MergePolicy = &policy
	}
	return p, nil
}
