// Package httpapi exposes the §6 HTTP boundary: document ingestion, query,
// vault/connection/workspace CRUD, the webhook intake, job introspection,
// health, and the Prometheus scrape endpoint. Grounded on the teacher's
// internal/agentd/router.go (a plain http.ServeMux with one handler func
// per resource, "/resource" + "/resource/" pairs for collection vs detail).
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenwick-labs/graphrag/internal/answer"
	"github.com/fenwick-labs/graphrag/internal/apierr"
	"github.com/fenwick-labs/graphrag/internal/ingest"
	"github.com/fenwick-labs/graphrag/internal/jobqueue"
	"github.com/fenwick-labs/graphrag/internal/logging"
	"github.com/fenwick-labs/graphrag/internal/retrieve"
	"github.com/fenwick-labs/graphrag/internal/rs"
	"github.com/fenwick-labs/graphrag/internal/webhook"
)

// Server bundles the dependencies every handler needs.
type Server struct {
	RS       *rs.Store
	Queue    *jobqueue.Queue
	Ingester *ingest.Ingester
	Retrieve *retrieve.Engine
	Answer   *answer.Composer
	Webhook  *webhook.Verifier
}

// Routes builds the ServeMux. Go 1.22+ method-prefixed patterns match the
// way newer handlers in the pack's agentd router are starting to register
// routes; older single-path handlers in that file still type-switch on
// r.Method internally, a style this package does not need since every
// route here has exactly one verb.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /ingest/document", s.handleIngestDocument)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /webhooks/ingest", s.handleWebhook)

	mux.HandleFunc("POST /workspaces", s.handleCreateWorkspace)
	mux.HandleFunc("GET /workspaces/{id}", s.handleGetWorkspace)

	mux.HandleFunc("POST /vaults", s.handleCreateVault)
	mux.HandleFunc("GET /vaults/{id}", s.handleGetVault)
	mux.HandleFunc("DELETE /vaults/{id}", s.handleDeleteVault)
	mux.HandleFunc("POST /vaults/{id}/connections", s.handleLinkVaultConnection)
	mux.HandleFunc("DELETE /vaults/{id}/connections/{connectionID}", s.handleUnlinkVaultConnection)

	mux.HandleFunc("POST /connections", s.handleCreateConnection)
	mux.HandleFunc("GET /connections/{id}", s.handleGetConnection)

	mux.HandleFunc("GET /jobs/stats", s.handleJobStats)
	mux.HandleFunc("GET /jobs/failed", s.handleJobsFailed)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.RS.Ping(r.Context()); err != nil {
		writeError(w, apierr.NotFound("database unreachable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type ingestDocumentRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	ConnectionID string `json:"connection_id"`
	SourceType   string `json:"source_type"`
	ExternalID   string `json:"external_id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorEmail  string `json:"author_email"`
	ContentText  string `json:"content_text"`
	// ContentType and ContentBase64 carry raw, not-yet-normalized content
	// (§4.11): "html", "pdf", or "xlsx". Leave both unset when ContentText
	// already holds plain text.
	ContentType   string `json:"content_type"`
	ContentBase64 string `json:"content_base64"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var raw []byte
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			writeError(w, apierr.Invalid("content_base64 is not valid base64"))
			return
		}
		raw = decoded
	}

	result, err := s.Ingester.IngestDocument(r.Context(), ingest.DocumentInput{
		WorkspaceID: req.WorkspaceID, ConnectionID: req.ConnectionID,
		SourceType: req.SourceType, ExternalID: req.ExternalID, URL: req.URL,
		Title: req.Title, AuthorName: req.AuthorName, AuthorEmail: req.AuthorEmail,
		ContentText: req.ContentText,
		ContentType: ingest.ContentType(req.ContentType), RawContent: raw,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": result.DocumentID,
		"status":      result.Status,
	})
}

type queryRequest struct {
	WorkspaceID string   `json:"workspace_id"`
	Prompt      string   `json:"prompt"`
	VaultIDs    []string `json:"vault_ids"`
	Depth       int      `json:"depth"`
	TopK        int      `json:"top_k"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.Retrieve.Retrieve(r.Context(), retrieve.Query{
		WorkspaceID: req.WorkspaceID, Prompt: req.Prompt,
		VaultIDs: req.VaultIDs, Depth: req.Depth, TopK: req.TopK,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	composed := s.Answer.Compose(r.Context(), req.Prompt, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":    composed.Text,
		"citations": composed.Citations,
		"debug": map[string]any{
			"chunks_found":  len(result.Chunks),
			"facts_found":   len(result.Facts),
			"seed_entities": result.SeedEntities,
		},
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierr.Invalid("failed to read body"))
		return
	}

	sig := r.Header.Get("X-Signature-HMAC-SHA256")
	if err := s.Webhook.Verify(body, sig); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := s.Webhook.Handle(r.Context(), body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := s.RS.CreateWorkspace(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.RS.GetWorkspace(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkspaceID string `json:"workspace_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := s.RS.CreateVault(r.Context(), req.WorkspaceID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	v, err := s.RS.GetVault(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVault(w http.ResponseWriter, r *http.Request) {
	if err := s.RS.DeleteVault(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLinkVaultConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectionID string `json:"connection_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.RS.LinkVaultConnection(r.Context(), r.PathValue("id"), req.ConnectionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlinkVaultConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.RS.UnlinkVaultConnection(r.Context(), r.PathValue("id"), r.PathValue("connectionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkspaceID    string `json:"workspace_id"`
		SourceType     string `json:"source_type"`
		ExternalAuthID string `json:"external_auth_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.RS.CreateConnection(r.Context(), req.WorkspaceID, req.SourceType, req.ExternalAuthID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	c, err := s.RS.GetConnection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Queue.Stats(r.Context(), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJobsFailed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.Queue.Failed(r.Context(), r.URL.Query().Get("workspace_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apierr.Invalid("malformed request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(context.Background()).Error().Err(err).Msg("failed to encode response body")
	}
}

// writeError maps apierr.Error to its status code; anything else is an
// unclassified server fault (§7: "Server fault: 500, no detail leaked").
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == apierr.CodeUnauthorized {
			w.WriteHeader(apiErr.Status)
			return
		}
		writeJSON(w, apiErr.Status, map[string]string{"code": string(apiErr.Code), "detail": apiErr.Detail})
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
}
