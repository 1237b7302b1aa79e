package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/zhubert/mcpcore/client"
	"github.com/zhubert/mcpcore/config"
	"github.com/zhubert/mcpcore/manager"
)

// runtime bundles the pieces every command needs: the server inventory,
// the MCP client, and the lifecycle manager over both.
type runtime struct {
	cfg *config.Config
	cli *client.Client
	mgr *manager.Manager
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cli := client.New()
	return &runtime{
		cfg: cfg,
		cli: cli,
		mgr: manager.New(cfg, cli),
	}, nil
}

// startEnabled connects every enabled server, reporting failures to errOut
// without aborting. Returns the names that came up.
func (r *runtime) startEnabled(ctx context.Context, errOut io.Writer) []string {
	var started []string
	for _, name := range r.cfg.ServerNames() {
		sc, ok := r.cfg.GetServer(name)
		if !ok || !sc.Enabled {
			continue
		}
		if err := r.mgr.StartServer(ctx, name); err != nil {
			fmt.Fprintf(errOut, "Warning: server %s failed to start: %v\n", name, err)
			continue
		}
		started = append(started, name)
	}
	return started
}

// shutdown stops every running server.
func (r *runtime) shutdown() {
	r.mgr.StopAll()
}
