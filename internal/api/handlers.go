package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kunaaa123/ai-mcp-hub/internal/agent"
	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
	"github.com/kunaaa123/ai-mcp-hub/internal/config"
	"github.com/kunaaa123/ai-mcp-hub/internal/events"
	"github.com/kunaaa123/ai-mcp-hub/internal/llm"
	"github.com/kunaaa123/ai-mcp-hub/internal/mcp"
	"github.com/kunaaa123/ai-mcp-hub/internal/metrics"
	"github.com/kunaaa123/ai-mcp-hub/internal/session"
	"github.com/kunaaa123/ai-mcp-hub/internal/tools"
)

// Server bundles the dependencies the HTTP handlers need. Everything is
// constructed at startup and passed in; there are no package-level
// singletons.
type Server struct {
	cfg          *config.Config
	llm          llm.Client
	registry     *tools.Registry
	manager      *mcp.Manager
	sessions     *session.Store
	bus          *events.Bus
	metrics      *metrics.Store
	agent        *agent.Agent
	orchestrator *agent.Orchestrator
	tokens       *auth.TokenTable
}

// NewServer creates the HTTP edge over the assembled core.
func NewServer(cfg *config.Config, client llm.Client, registry *tools.Registry, manager *mcp.Manager,
	sessions *session.Store, bus *events.Bus, store *metrics.Store,
	ag *agent.Agent, orch *agent.Orchestrator, tokens *auth.TokenTable) *Server {
	return &Server{
		cfg:          cfg,
		llm:          client,
		registry:     registry,
		manager:      manager,
		sessions:     sessions,
		bus:          bus,
		metrics:      store,
		agent:        ag,
		orchestrator: orch,
		tokens:       tokens,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.llm.Health(r.Context())
	if err != nil {
		health = &llm.Health{Available: false}
	}
	respondOK(w, map[string]any{
		"status": "ok",
		"llm":    health,
		"uptime": time.Since(startedAt).String(),
	})
}

var startedAt = time.Now()

// toolView is the catalog entry shape returned by the API.
type toolView struct {
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	RequiredRoles     []auth.Role   `json:"required_roles"`
	SafeForProduction bool          `json:"safe_for_production"`
	InputSchema       *tools.Schema `json:"input_schema"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	role := roleFrom(r.Context())
	available := s.registry.ForRole(role, s.cfg.Server.ProductionSafeMode)

	views := make([]toolView, 0, len(available))
	for _, tool := range available {
		spec := tool.Spec()
		views = append(views, toolView{
			Name:              spec.Name,
			Description:       spec.Description,
			RequiredRoles:     spec.RequiredRoles,
			SafeForProduction: spec.SafeForProduction,
			InputSchema:       spec.InputSchema,
		})
	}
	respondOK(w, map[string]any{"role": role, "tools": views})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondOK(w, s.sessions.List())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	role := roleFrom(r.Context())
	if body.Role != "" {
		parsed, err := auth.Parse(body.Role)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}
	if body.UserID == "" {
		body.UserID = "anonymous"
	}

	mem := s.sessions.Create(body.UserID, role)
	respondCreated(w, mem)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := s.sessions.HistorySummary(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, summary)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Clear(id); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"cleared": id})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Mode      string `json:"mode"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	role := roleFrom(r.Context())
	if body.Role != "" {
		parsed, err := auth.Parse(body.Role)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}
	if body.UserID == "" {
		body.UserID = "anonymous"
	}

	mode := body.Mode
	switch mode {
	case "":
		mode = "single"
	case "single", "multi":
	default:
		respondError(w, http.StatusBadRequest, "mode must be \"single\" or \"multi\"")
		return
	}

	sess := s.sessions.GetOrCreate(body.SessionID, body.UserID, role)
	req := agent.RunRequest{
		UserPrompt: body.Message,
		Session:    sess,
	}

	data := map[string]any{
		"session_id": sess.ID,
		"mode":       mode,
	}

	if mode == "multi" {
		timeline := s.orchestrator.Run(r.Context(), req)
		data["response"] = timeline.FinalResponse
		data["timeline"] = timeline.ExecutionTimeline
		data["plan"] = timeline.Plan
		data["review"] = timeline.Review
		data["agent_logs"] = timeline.AgentLogs
	} else {
		timeline := s.agent.Run(r.Context(), req)
		data["response"] = timeline.FinalResponse
		data["timeline"] = timeline
	}

	respondOK(w, data)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	respondOK(w, s.metrics.Snapshot())
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Reset()
	respondOK(w, map[string]any{"reset": true})
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	role, err := auth.Parse(chi.URLParam(r, "role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	safeMode := s.cfg.Server.ProductionSafeMode
	allowed := make([]string, 0)
	blocked := make([]string, 0)
	for _, tool := range s.registry.List() {
		spec := tool.Spec()
		if spec.AllowsRole(role) && (!safeMode || spec.SafeForProduction) {
			allowed = append(allowed, spec.Name)
		} else {
			blocked = append(blocked, spec.Name)
		}
	}
	respondOK(w, map[string]any{"role": role, "allowed": allowed, "blocked": blocked})
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	respondOK(w, s.manager.Status())
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, status := range s.manager.Status() {
		if status.ID == id {
			respondOK(w, status)
			return
		}
	}
	respondError(w, http.StatusNotFound, "unknown server: "+id)
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var cfg mcp.ServerConfig
	if err := decodeBody(r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := s.manager.Add(r.Context(), cfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondCreated(w, added)
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd mcp.ServerUpdate
	if err := decodeBody(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, err := s.manager.Update(r.Context(), id, upd)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, cfg)
}

func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Remove(id); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"removed": id})
}

func (s *Server) handleReconnectServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Reconnect(r.Context(), id); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondOK(w, map[string]any{"reconnected": id})
}

// federatedToolView exposes a federated tool with its model-facing name.
type federatedToolView struct {
	ServerID    string `json:"server_id"`
	ServerName  string `json:"server_name"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleFederatedTools(w http.ResponseWriter, r *http.Request) {
	federated := s.manager.AllTools()
	views := make([]federatedToolView, 0, len(federated))
	for _, ft := range federated {
		views = append(views, federatedToolView{
			ServerID:    ft.ServerID,
			ServerName:  ft.ServerName,
			Name:        ft.Name,
			FullName:    ft.FullName(),
			Description: ft.Description,
		})
	}
	respondOK(w, views)
}
