package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/mcptools"
)

// maxLogLimit caps GET /api/logs?limit=N.
const maxLogLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

type recipesRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	var req recipesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	recipes, err := s.gateway.GenerateRecipes(r.Context(), req.Prompt, s.provider(req.Provider))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": recipes}, s.logger)
}

type caloriesTextRequest struct {
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

func (s *Server) handleCaloriesText(w http.ResponseWriter, r *http.Request) {
	var req caloriesTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	estimate, err := s.gateway.EstimateCaloriesFromText(r.Context(), req.Description, s.provider(req.Provider))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate, s.logger)
}

type planRequest struct {
	domain.PlanRequest
	Provider string `json:"provider"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.gateway.GeneratePlan(r.Context(), req.PlanRequest, s.provider(req.Provider))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan, s.logger)
}

type textRequest struct {
	System   string `json:"system"`
	User     string `json:"user"`
	Provider string `json:"provider"`
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	text, err := s.gateway.CallText(r.Context(), domain.TextRequest{System: req.System, User: req.User}, s.provider(req.Provider))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text}, s.logger)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, &domain.ValidationError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		limit = min(n, maxLogLimit)
	}
	entries, err := s.logs.Latest(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries}, s.logger)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tools.List(), s.logger)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req protocol.CallToolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.tools.Call(r.Context(), &req)
	if err != nil {
		var unknown *mcptools.UnknownToolError
		if errors.As(err, &unknown) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: domain.KindValidation}, s.logger)
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result, s.logger)
}
