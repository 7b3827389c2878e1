package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/planops/planagent/internal/catalog"
	"github.com/planops/planagent/internal/config"
	"github.com/planops/planagent/internal/web"
)

// NewWebCmd creates the 'web' command for running the HTTP API.
func NewWebCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Run the HTTP API server",
		Long: `Start the planagent HTTP API.

Endpoints include tool execution (/execute), feedback (/feedback),
aggregate metrics (/metrics), and the learning surfaces under /rl
(recommendations, policy, episodes).`,
		Example: `  planagent web
  planagent web --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeb(port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config)")
	return cmd
}

func runWeb(port int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port > 0 {
		cfg.Port = port
	}

	engine, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	index, err := catalog.NewIndex()
	if err != nil {
		log.Printf("Warning: catalog index unavailable: %v", err)
		index = nil
	} else {
		defer index.Close()
	}

	return web.NewServer(engine, index, cfg).Run()
}
