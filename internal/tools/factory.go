package tools

import (
	"fmt"

	"github.com/kunaaa123/ai-mcp-hub/internal/config"
	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
)

// BuildRegistry constructs the built-in tool catalog from the runtime
// configuration. Database and cache connections are opened lazily; a tool
// whose backend is unreachable reports the failure at execution time, not
// at startup.
func BuildRegistry(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	db, err := OpenDB(cfg.DB.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	registry.MustRegister(NewDBQueryTool(db))
	registry.MustRegister(NewDBExecuteTool(db))
	registry.MustRegister(NewDBMigrateTool(db))
	registry.MustRegister(NewDBSchemaTool(db))

	rdb := NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	registry.MustRegister(NewKVGetTool(rdb))
	registry.MustRegister(NewKVSetTool(rdb))
	registry.MustRegister(NewKVDeleteTool(rdb))
	registry.MustRegister(NewKVKeysTool(rdb))
	registry.MustRegister(NewQueuePushTool(rdb))
	registry.MustRegister(NewQueuePopTool(rdb))

	registry.MustRegister(NewFSReadTool(cfg.FS.AllowedPath))
	registry.MustRegister(NewFSWriteTool(cfg.FS.AllowedPath))
	registry.MustRegister(NewFSListTool(cfg.FS.AllowedPath))
	registry.MustRegister(NewFSGlobTool(cfg.FS.AllowedPath))

	registry.MustRegister(NewGitStatusTool())
	registry.MustRegister(NewGitLogTool())
	registry.MustRegister(NewGitDiffTool())
	registry.MustRegister(NewGitBranchTool())

	registry.MustRegister(NewWebFetchJSONTool())
	registry.MustRegister(NewWebSearchTool())
	registry.MustRegister(NewHTTPRequestTool())

	logging.Info("tool registry initialized", "tools", len(registry.Names()))
	return registry, nil
}
