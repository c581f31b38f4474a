// Package api serves the world over HTTP: public GET endpoints for
// observers, authenticated POST endpoints for agent deployment and
// credentials, and a websocket snapshot stream.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/engine"
	"github.com/talgya/agent-world/internal/persistence"
	"github.com/talgya/agent-world/internal/world"
)

// Server serves the world state over HTTP.
type Server struct {
	Sim        *engine.Simulation
	DB         *persistence.DB
	Hub        *Hub
	Addr       string
	AdminToken string // Bearer token for admin POSTs. Empty = disabled.
	Limiter    *RateLimiter
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(s.Limiter, h)
	}

	mux.HandleFunc("/api/state", public(s.handleState))
	mux.HandleFunc("/api/agents", public(s.handleAgents))
	mux.HandleFunc("/api/agents/", public(s.handleAgentRoutes))
	mux.HandleFunc("/api/leaderboard", public(s.handleLeaderboard))
	mux.HandleFunc("/api/market", public(s.handleMarket))
	mux.HandleFunc("/api/activities", public(s.handleActivities))
	mux.HandleFunc("/api/alliances", public(s.handleAlliances))
	mux.HandleFunc("/api/world", public(s.handleWorld))

	mux.HandleFunc("/api/register", s.adminOnly(s.handleRegister))

	mux.HandleFunc("/ws", s.Hub.Handler())

	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminToken != "")
	go func() {
		if err := http.ListenAndServe(s.Addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminToken
}

// adminOnly requires the admin bearer token on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminToken == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	all := s.Sim.Registry.All()
	views := make([]agents.PublicView, 0, len(all))
	for _, a := range all {
		views = append(views, a.Public())
	}
	writeJSON(w, views)
}

// handleAgentRoutes dispatches /api/agents/{id}[/financials|/topup|/config].
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/agents/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	a := s.Sim.Registry.Get(parts[0])
	if a == nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		s.handleAgentDetail(w, r, a)
		return
	}
	switch parts[1] {
	case "financials":
		s.handleFinancials(w, r, a)
	case "topup":
		s.handleTopUp(w, r, a)
	case "config":
		s.handleAgentConfig(w, r, a)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request, a *agents.Agent) {
	st := s.Sim.Ledger.StatsFor(a.ID)
	writeJSON(w, map[string]any{
		"agent":   a.Public(),
		"ranking": s.Sim.Registry.Ranking(a),
		"earned":  st.Earned,
		"spent":   st.Spent,
		"history": st.History,
	})
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request, a *agents.Agent) {
	writeJSON(w, s.Sim.Ledger.Financials(a, s.Sim.Config.Economy.DeployDeposit))
}

// handleTopUp credits an agent. Admin bearer token required; this is
// where off-platform payments land.
func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request, a *agents.Agent) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.AdminToken == "" || !s.checkBearerToken(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		http.Error(w, "amount must be a positive integer", http.StatusBadRequest)
		return
	}

	s.Sim.Ledger.ModifyBalance(a, req.Amount, economy.ReasonTopUp, s.Sim.CurrentTick())
	slog.Info("agent topped up", "agent", a.Name, "amount", req.Amount, "balance", a.Balance)
	writeJSON(w, map[string]any{"balance": a.Balance})
}

// handleAgentConfig lets an agent's owner rotate its webhook or LLM
// key. Authenticated with the agent's own API key.
func (s *Server) handleAgentConfig(w http.ResponseWriter, r *http.Request, a *agents.Agent) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-API-Key") != a.APIKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		WebhookURL *string `json:"webhook_url"`
		LLMKey     *string `json:"llm_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.WebhookURL != nil {
		a.WebhookURL = *req.WebhookURL
	}
	if req.LLMKey != nil {
		a.LLMKey = *req.LLMKey
	}
	writeJSON(w, map[string]any{
		"webhook_url": a.WebhookURL,
		"has_llm_key": a.LLMKey != "",
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Rank  int               `json:"rank"`
		Agent agents.PublicView `json:"agent"`
	}
	board := s.Sim.Registry.Leaderboard()
	result := make([]entry, 0, len(board))
	for i, a := range board {
		result = append(result, entry{Rank: i + 1, Agent: a.Public()})
	}
	writeJSON(w, result)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Market.Quotes())
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	if s.DB != nil {
		list, err := s.DB.RecentActivities(limit)
		if err == nil {
			writeJSON(w, list)
			return
		}
		slog.Error("activities query failed", "error", err)
	}
	writeJSON(w, s.Sim.RecentFeed(limit))
}

func (s *Server) handleAlliances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Alliances.All())
}

// handleWorld returns a tile window. Query params x, y, w, h select
// the region; the default is the whole map.
func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	m := s.Sim.World

	x0, y0 := 0, 0
	ww, wh := m.Width, m.Height
	if v := r.URL.Query().Get("x"); v != "" {
		x0, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("y"); v != "" {
		y0, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("w"); v != "" {
		ww, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("h"); v != "" {
		wh, _ = strconv.Atoi(v)
	}
	x0, y0 = clampInt(x0, 0, m.Width-1), clampInt(y0, 0, m.Height-1)
	x1, y1 := clampInt(x0+ww, 0, m.Width), clampInt(y0+wh, 0, m.Height)

	type tileEntry struct {
		X        int    `json:"x"`
		Y        int    `json:"y"`
		Biome    uint8  `json:"biome"`
		Resource string `json:"resource,omitempty"`
		Amount   int    `json:"amount,omitempty"`
		Building string `json:"building,omitempty"`
		OwnerID  string `json:"owner_id,omitempty"`
	}

	tiles := make([]tileEntry, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			t := m.At(x, y)
			e := tileEntry{X: x, Y: y, Biome: uint8(t.Biome), OwnerID: t.OwnerID}
			if t.Resource != world.ResourceNone {
				e.Resource = t.Resource.String()
				e.Amount = t.ResourceAmount
			}
			if t.Building != world.BuildingNone {
				e.Building = t.Building.String()
			}
			tiles = append(tiles, e)
		}
	}

	writeJSON(w, map[string]any{
		"width":  m.Width,
		"height": m.Height,
		"seed":   m.Seed,
		"tiles":  tiles,
	})
}

// handleRegister deploys a new external agent. The response includes
// the agent's API key; it is shown exactly once.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Strategy      string `json:"strategy"`
		WalletAddress string `json:"wallet_address"`
		WebhookURL    string `json:"webhook_url"`
		LLMKey        string `json:"llm_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	strategy := agents.ParseStrategy(req.Strategy)
	if req.Strategy != "" && strategy == "" {
		http.Error(w, "unknown strategy", http.StatusBadRequest)
		return
	}

	a, err := s.Sim.RegisterExternal(agents.RegisterOpts{
		Name:          req.Name,
		Strategy:      strategy,
		WalletAddress: req.WalletAddress,
		WebhookURL:    req.WebhookURL,
		LLMKey:        req.LLMKey,
	})
	if err != nil {
		slog.Error("registration failed", "error", err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	slog.Info("agent registered", "agent", a.Name, "strategy", a.Strategy)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{
		"agent":   a.Public(),
		"api_key": a.APIKey,
	})
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
