package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/kunaaa123/ai-mcp-hub/internal/logging"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

// FederatedTool is one tool discovered on an external server. The server
// id and bare tool name are kept separate; the prefixed full name is only
// assembled at the model boundary.
type FederatedTool struct {
	ServerID    string      `json:"server_id"`
	ServerName  string      `json:"server_name"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema *JSONSchema `json:"input_schema,omitempty"`
}

// FullName returns the prefixed name the model sees: mcp__<server_id>__<name>.
func (t *FederatedTool) FullName() string {
	return tools.FederatedPrefix + t.ServerID + "__" + t.Name
}

// Spec converts the tool into the registry's descriptor form so it can be
// advertised to the model alongside built-in tools.
func (t *FederatedTool) Spec() *tools.Spec {
	return &tools.Spec{
		Name:        t.FullName(),
		Description: t.Description,
		InputSchema: convertSchema(t.InputSchema),
	}
}

// convertSchema maps the wire schema onto the registry's schema type.
func convertSchema(s *JSONSchema) *tools.Schema {
	if s == nil {
		return &tools.Schema{Type: "object"}
	}
	out := &tools.Schema{
		Type:        s.Type,
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Default:     s.Default,
		Items:       convertItems(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*tools.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	return out
}

func convertItems(s *JSONSchema) *tools.Schema {
	if s == nil {
		return nil
	}
	return convertSchema(s)
}

// ParseFullName splits a prefixed tool name into its server id and bare
// tool name. The split is on the first "__" after the prefix; tool names
// may themselves contain "__".
func ParseFullName(fullName string) (serverID, toolName string, ok bool) {
	rest, found := strings.CutPrefix(fullName, tools.FederatedPrefix)
	if !found {
		return "", "", false
	}
	idx := strings.Index(rest, "__")
	if idx <= 0 || idx+2 >= len(rest) {
		return "", "", false
	}
	return rest[:idx], rest[idx+2:], true
}

// TransportFactory opens a transport for a server config. Tests swap in
// an in-memory implementation; production uses stdio child processes.
type TransportFactory func(cfg *ServerConfig) (Transport, error)

func stdioFactory(cfg *ServerConfig) (Transport, error) {
	return NewStdioTransport(cfg.Command, cfg.Args, cfg.Env)
}

// Manager owns the set of external tool-server connections and the JSON
// file their configurations persist to.
type Manager struct {
	configPath string
	timeout    time.Duration
	factory    TransportFactory

	servers  map[string]*ServerConfig
	order    []string // insertion order, for stable listings
	clients  map[string]*Client
	lastErrs map[string]string
	mu       sync.RWMutex

	watcher     *fsnotify.Watcher
	watcherDone chan struct{}
}

// NewManager loads persisted server configs from configPath and returns a
// manager that spawns stdio child processes. A missing config file is
// treated as an empty list.
func NewManager(configPath string, requestTimeout time.Duration) (*Manager, error) {
	m := &Manager{
		configPath: configPath,
		timeout:    requestTimeout,
		factory:    stdioFactory,
		servers:    make(map[string]*ServerConfig),
		clients:    make(map[string]*Client),
		lastErrs:   make(map[string]string),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// SetTransportFactory overrides how transports are opened. For tests.
func (m *Manager) SetTransportFactory(f TransportFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factory = f
}

// load reads the persisted config list. Missing file means no servers.
func (m *Manager) load() error {
	raw, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read server config: %w", err)
	}

	var configs []*ServerConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return fmt.Errorf("failed to parse server config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = make(map[string]*ServerConfig, len(configs))
	m.order = m.order[:0]
	for _, cfg := range configs {
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		m.servers[cfg.ID] = cfg
		m.order = append(m.order, cfg.ID)
	}
	return nil
}

// persist writes the config list back to disk with an atomic replace.
// Must be called with m.mu held.
func (m *Manager) persist() error {
	configs := make([]*ServerConfig, 0, len(m.order))
	for _, id := range m.order {
		configs = append(configs, m.servers[id])
	}

	raw, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal server config: %w", err)
	}

	tmp := m.configPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write server config: %w", err)
	}
	if err := os.Rename(tmp, m.configPath); err != nil {
		return fmt.Errorf("failed to replace server config: %w", err)
	}
	return nil
}

// dial opens a transport for cfg and runs the handshake. It takes no
// locks; connecting a slow child must never stall Status or tool calls.
func (m *Manager) dial(ctx context.Context, cfg *ServerConfig) (*Client, error) {
	m.mu.RLock()
	factory := m.factory
	timeout := m.timeout
	m.mu.RUnlock()

	transport, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}

	client := NewClient(cfg.ID, transport, timeout)
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// connect dials the server and installs the client, recording the
// failure for Status on error. The handshake runs unlocked; the lock is
// taken only to swap the client in.
func (m *Manager) connect(ctx context.Context, cfg *ServerConfig) error {
	client, err := m.dial(ctx, cfg)
	if err != nil {
		m.mu.Lock()
		m.lastErrs[cfg.ID] = err.Error()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if _, kept := m.servers[cfg.ID]; !kept {
		// Removed while we were connecting.
		m.mu.Unlock()
		client.Close()
		return fmt.Errorf("unknown server: %s", cfg.ID)
	}
	old := m.clients[cfg.ID]
	m.clients[cfg.ID] = client
	delete(m.lastErrs, cfg.ID)
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// disconnect closes and forgets a client if one exists. Must be called
// without m.mu held.
func (m *Manager) disconnect(id string) {
	m.mu.Lock()
	client, ok := m.clients[id]
	delete(m.clients, id)
	m.mu.Unlock()

	if ok {
		client.Close()
	}
}

// ConnectAll connects every enabled server in parallel. Per-server
// failures are recorded in the status map and never abort startup.
func (m *Manager) ConnectAll(ctx context.Context) map[string]error {
	m.mu.RLock()
	var toConnect []*ServerConfig
	for _, id := range m.order {
		cfg := m.servers[id]
		if cfg.Enabled {
			toConnect = append(toConnect, cfg)
		}
	}
	m.mu.RUnlock()

	if len(toConnect) == 0 {
		return nil
	}

	type result struct {
		id     string
		client *Client
		err    error
	}
	results := make(chan result, len(toConnect))
	var wg sync.WaitGroup

	for _, cfg := range toConnect {
		wg.Add(1)
		go func(cfg *ServerConfig) {
			defer wg.Done()

			transport, err := m.factory(cfg)
			if err != nil {
				results <- result{id: cfg.ID, err: fmt.Errorf("failed to open transport: %w", err)}
				return
			}

			client := NewClient(cfg.ID, transport, m.timeout)
			if err := client.Connect(ctx); err != nil {
				client.Close()
				results <- result{id: cfg.ID, err: err}
				return
			}
			results <- result{id: cfg.ID, client: client}
		}(cfg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	errs := make(map[string]error)
	m.mu.Lock()
	for res := range results {
		if res.err != nil {
			errs[res.id] = res.err
			m.lastErrs[res.id] = res.err.Error()
			logging.Warn("tool server connect failed", "server_id", res.id, "error", res.err)
			continue
		}
		m.clients[res.id] = res.client
		delete(m.lastErrs, res.id)
	}
	m.mu.Unlock()

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Add assigns an id to the config, persists it, and connects when enabled.
func (m *Manager) Add(ctx context.Context, cfg ServerConfig) (*ServerConfig, error) {
	if cfg.Name == "" || cfg.Command == "" {
		return nil, fmt.Errorf("server name and command are required")
	}

	cfg.ID = uuid.NewString()

	m.mu.Lock()
	stored := cfg
	m.servers[cfg.ID] = &stored
	m.order = append(m.order, cfg.ID)
	if err := m.persist(); err != nil {
		delete(m.servers, cfg.ID)
		m.order = m.order[:len(m.order)-1]
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	if cfg.Enabled {
		if err := m.connect(ctx, &cfg); err != nil {
			logging.Warn("tool server connect failed", "server_id", cfg.ID, "error", err)
		}
	}

	logging.Info("tool server added", "server_id", cfg.ID, "name", cfg.Name)
	return &cfg, nil
}

// ServerUpdate carries the fields a PATCH may change. Nil means unchanged.
type ServerUpdate struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Command     *string            `json:"command,omitempty"`
	Args        *[]string          `json:"args,omitempty"`
	Env         *map[string]string `json:"env,omitempty"`
	Enabled     *bool              `json:"enabled,omitempty"`
}

// Update merges the partial update into the stored config, persists it,
// and reconciles the connection with the new enabled state.
func (m *Manager) Update(ctx context.Context, id string, upd ServerUpdate) (*ServerConfig, error) {
	m.mu.Lock()

	cfg, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("unknown server: %s", id)
	}

	if upd.Name != nil {
		cfg.Name = *upd.Name
	}
	if upd.Description != nil {
		cfg.Description = *upd.Description
	}
	if upd.Command != nil {
		cfg.Command = *upd.Command
	}
	if upd.Args != nil {
		cfg.Args = *upd.Args
	}
	if upd.Env != nil {
		cfg.Env = *upd.Env
	}
	if upd.Enabled != nil {
		cfg.Enabled = *upd.Enabled
	}

	if err := m.persist(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	snap := *cfg
	m.mu.Unlock()

	// The old child may be running the old command; reap it either way.
	m.disconnect(id)
	if snap.Enabled {
		if err := m.connect(ctx, &snap); err != nil {
			logging.Warn("tool server reconnect failed", "server_id", id, "error", err)
		}
	}

	logging.Info("tool server updated", "server_id", id, "enabled", snap.Enabled)
	return &snap, nil
}

// Remove disconnects the server if connected, then deletes and persists.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()

	if _, ok := m.servers[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown server: %s", id)
	}

	client := m.clients[id]
	delete(m.clients, id)
	delete(m.servers, id)
	delete(m.lastErrs, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	err := m.persist()
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if err != nil {
		return err
	}

	logging.Info("tool server removed", "server_id", id)
	return nil
}

// Reconnect forces a disconnect-then-connect of an existing config.
func (m *Manager) Reconnect(ctx context.Context, id string) error {
	m.mu.Lock()
	cfg, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown server: %s", id)
	}
	snap := *cfg
	m.mu.Unlock()

	m.disconnect(id)
	if err := m.connect(ctx, &snap); err != nil {
		return err
	}

	logging.Info("tool server reconnected", "server_id", id)
	return nil
}

// Get returns the stored config for one server.
func (m *Manager) Get(id string) (*ServerConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.servers[id]
	if !ok {
		return nil, false
	}
	copied := *cfg
	return &copied, true
}

// AllTools returns the union of tools across all connected servers.
func (m *Manager) AllTools() []*FederatedTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*FederatedTool
	for _, id := range m.order {
		client, ok := m.clients[id]
		if !ok || !client.Connected() {
			continue
		}
		cfg := m.servers[id]
		for _, t := range client.Tools() {
			out = append(out, &FederatedTool{
				ServerID:    id,
				ServerName:  cfg.Name,
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return out
}

// ExecuteTool dispatches a prefixed tool name to its server. It
// implements the executor's federation interface.
func (m *Manager) ExecuteTool(ctx context.Context, fullName string, args map[string]any) (any, error) {
	serverID, toolName, ok := ParseFullName(fullName)
	if !ok {
		return nil, fmt.Errorf("invalid federated tool name: %s", fullName)
	}

	m.mu.RLock()
	client, connected := m.clients[serverID]
	m.mu.RUnlock()

	if !connected || !client.Connected() {
		return nil, fmt.Errorf("server %s is not connected", serverID)
	}

	return client.CallTool(ctx, toolName, args)
}

// Status returns a snapshot of every configured server. It never blocks
// on child processes.
func (m *Manager) Status() []*ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ServerStatus, 0, len(m.order))
	for _, id := range m.order {
		cfg := m.servers[id]
		status := &ServerStatus{ServerConfig: *cfg}
		if client, ok := m.clients[id]; ok && client.Connected() {
			status.Connected = true
			status.ToolCount = len(client.Tools())
		}
		if msg, ok := m.lastErrs[id]; ok {
			status.Error = msg
		}
		out = append(out, status)
	}
	return out
}

// Watch reloads the config file when it changes on disk and reconciles
// connections: removed servers are disconnected, new enabled servers are
// connected. Stops when ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory: editors and atomic replaces swap the file
	// inode, which breaks a direct file watch.
	if err := watcher.Add(filepath.Dir(m.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	m.watcher = watcher
	m.watcherDone = make(chan struct{})

	go func() {
		defer close(m.watcherDone)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != m.configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				logging.Info("server config changed on disk, reloading", "path", m.configPath)
				if err := m.reloadFromDisk(ctx); err != nil {
					logging.Warn("config reload failed", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}

// reloadFromDisk re-reads the config file and reconciles connections.
func (m *Manager) reloadFromDisk(ctx context.Context) error {
	raw, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			raw = []byte("[]")
		} else {
			return fmt.Errorf("failed to read server config: %w", err)
		}
	}

	var configs []*ServerConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return fmt.Errorf("failed to parse server config: %w", err)
	}

	next := make(map[string]*ServerConfig, len(configs))
	nextOrder := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		next[cfg.ID] = cfg
		nextOrder = append(nextOrder, cfg.ID)
	}

	m.mu.Lock()
	// Reap servers that vanished or were disabled.
	var stale []*Client
	for id, client := range m.clients {
		cfg, kept := next[id]
		if !kept || !cfg.Enabled {
			stale = append(stale, client)
			delete(m.clients, id)
		}
	}

	m.servers = next
	m.order = nextOrder

	// Candidates for connection, handshaken after the lock is dropped.
	var pending []ServerConfig
	for _, id := range nextOrder {
		cfg := next[id]
		if !cfg.Enabled {
			continue
		}
		if _, ok := m.clients[id]; ok {
			continue
		}
		pending = append(pending, *cfg)
	}
	m.mu.Unlock()

	for _, client := range stale {
		client.Close()
	}
	for i := range pending {
		if err := m.connect(ctx, &pending[i]); err != nil {
			logging.Warn("tool server connect failed", "server_id", pending[i].ID, "error", err)
		}
	}

	return nil
}

// Shutdown disconnects every server and stops the config watcher.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for id, client := range m.clients {
		clients = append(clients, client)
		delete(m.clients, id)
	}
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}

	if m.watcherDone != nil {
		select {
		case <-m.watcherDone:
		case <-time.After(2 * time.Second):
		}
	}

	logging.Debug("tool server manager shutdown complete")
}
