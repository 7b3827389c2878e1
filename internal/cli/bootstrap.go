/*
Package cli implements the planagent commands.

Every command that touches the agent goes through the same bootstrap:
load configuration, open the feedback store, build the Planning tool set,
and wire the engine on top.
*/
package cli

import (
	"fmt"

	"github.com/planops/planagent/internal/agent"
	"github.com/planops/planagent/internal/catalog"
	"github.com/planops/planagent/internal/config"
	"github.com/planops/planagent/internal/learning"
	"github.com/planops/planagent/internal/planning"
	"github.com/planops/planagent/internal/storage"
)

// buildEngine wires storage, the Planning tool set, and the engine from
// configuration. The caller owns the returned store and must Close it.
func buildEngine(cfg *config.Config) (*agent.Engine, *storage.SQLiteStorage, error) {
	var store *storage.SQLiteStorage
	if cfg.DBPath != "" {
		store = storage.New(cfg.DBPath)
	} else {
		store = storage.NewDefault()
	}
	if err := store.Init(); err != nil {
		// The store degrades to no-ops; execution still works.
		fmt.Printf("Warning: feedback storage unavailable: %v\n", err)
	}

	client, err := planning.NewClient(planning.Config{
		URL:        cfg.Planning.URL,
		Username:   cfg.Planning.Username,
		Password:   cfg.Planning.Password,
		APIVersion: cfg.Planning.APIVersion,
		MockMode:   cfg.Planning.MockMode,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create planning client: %w", err)
	}

	engine := agent.NewEngine(store, planning.NewToolSet(client), agent.Options{
		Candidates:      catalog.Names(),
		MinSamples:      cfg.Learning.MinSamples,
		ExplorationRate: cfg.Learning.ExplorationRate,
		Learning: learning.Params{
			LearningRate:   cfg.Learning.LearningRate,
			DiscountFactor: cfg.Learning.DiscountFactor,
		},
	})
	return engine, store, nil
}
