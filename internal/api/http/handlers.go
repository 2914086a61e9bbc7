package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"recwatch/internal/domain"
)

type downloadsResponse struct {
	Downloads []domain.DownloadView `json:"downloads"`
	Version   uint64                `json:"version"`
}

type activeResponse struct {
	StreamerID string `json:"streamerId"`
	Active     bool   `json:"active"`
}

type subscriptionRequest struct {
	StreamerID string `json:"streamerId"`
}

type subscriptionResponse struct {
	StreamerID string `json:"streamerId,omitempty"`
	Active     bool   `json:"active"`
}

type statusResponse struct {
	Connection      string `json:"connection"`
	StreamerFilter  string `json:"streamerFilter,omitempty"`
	StoreVersion    uint64 `json:"storeVersion"`
	ActiveDownloads int    `json:"activeDownloads"`
	TerminatedIDs   int    `json:"terminatedIds"`
}

type historyResponse struct {
	Events []domain.EventRecord `json:"events"`
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var views []domain.DownloadView
	if streamerID := strings.TrimSpace(r.URL.Query().Get("streamerId")); streamerID != "" {
		views = s.store.ViewsByStreamer(streamerID)
	} else {
		views = s.store.Views()
	}
	if views == nil {
		views = []domain.DownloadView{}
	}
	writeJSON(w, http.StatusOK, downloadsResponse{Downloads: views, Version: s.store.Version()})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	streamerID := strings.TrimSpace(r.URL.Query().Get("streamerId"))
	if streamerID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "streamerId is required")
		return
	}
	writeJSON(w, http.StatusOK, activeResponse{
		StreamerID: streamerID,
		Active:     s.store.HasActive(streamerID),
	})
}

func (s *Server) handleDownloadByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/downloads/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "download not found")
		return
	}
	view, err := s.store.View(domain.DownloadID(id))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", "upstream feed not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		filter, active := s.feed.Filter()
		writeJSON(w, http.StatusOK, subscriptionResponse{StreamerID: filter, Active: active})
	case http.MethodPut, http.MethodPost:
		var req subscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if err := s.feed.SetFilter(req.StreamerID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, subscriptionResponse{StreamerID: req.StreamerID, Active: true})
	case http.MethodDelete:
		if err := s.feed.ClearFilter(); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	resp := statusResponse{
		Connection:      "disconnected",
		StoreVersion:    s.store.Version(),
		ActiveDownloads: s.store.Len(),
		TerminatedIDs:   s.store.TerminatedCount(),
	}
	if s.feed != nil {
		resp.Connection = s.feed.Status().String()
		if filter, ok := s.feed.Filter(); ok {
			resp.StreamerFilter = filter
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled", "event journal not configured")
		return
	}

	limit, err := parseLimitQuery(r.URL.Query().Get("limit"), 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var records []domain.EventRecord
	if streamerID := strings.TrimSpace(r.URL.Query().Get("streamerId")); streamerID != "" {
		records, err = s.history.ListByStreamer(r.Context(), streamerID, limit)
	} else {
		records, err = s.history.ListRecent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("history query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "repository_error", "event journal query failed")
		return
	}
	if records == nil {
		records = []domain.EventRecord{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Events: records})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
