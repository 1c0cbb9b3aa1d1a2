package repair

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"ytresolve/storage"
)

// ReplacementLister serves the audit log listing endpoint.
type ReplacementLister interface {
	ListReplacements(ctx context.Context, limit int) ([]*storage.Replacement, error)
}

// Handler exposes the repair surface over HTTP. Every endpoint responds 200
// with a JSON body; callers branch on the reason field, never the status.
type Handler struct {
	resolver     *Resolver
	replacements ReplacementLister
}

// NewHandler creates a handler. replacements may be nil, in which case the
// listing endpoint serves an empty log.
func NewHandler(resolver *Resolver, replacements ReplacementLister) *Handler {
	return &Handler{resolver: resolver, replacements: replacements}
}

// Register mounts the repair endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/repair", h.handleRepair)
	mux.HandleFunc("/api/repair-batch", h.handleRepairBatch)
	mux.HandleFunc("/api/replacements", h.handleReplacements)
}

func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, Outcome{OK: false, Reason: ReasonMethodNotAllowed})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, Outcome{OK: false, Reason: ReasonInvalidBody, Note: "Body must be JSON with a url field"})
		return
	}
	req.Token = r.Header.Get("X-Admin-Token")
	req.ClientKey = clientKey(r)

	writeJSON(w, h.resolver.Repair(r.Context(), req))
}

func (h *Handler) handleRepairBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, BatchOutcome{OK: false, Reason: ReasonMethodNotAllowed, Results: []ItemOutcome{}})
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, BatchOutcome{
			OK:      false,
			Reason:  ReasonInvalidBody,
			Results: []ItemOutcome{},
			Note:    "Body must include array: items",
		})
		return
	}
	req.Token = r.Header.Get("X-Admin-Token")
	req.ClientKey = clientKey(r)

	writeJSON(w, h.resolver.RepairBatch(r.Context(), req))
}

// replacementList is the listing endpoint's response shape.
type replacementList struct {
	Items []*storage.Replacement `json:"items"`
	Note  string                 `json:"note,omitempty"`
}

func (h *Handler) handleReplacements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, Outcome{OK: false, Reason: ReasonMethodNotAllowed})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if h.replacements == nil {
		writeJSON(w, replacementList{Items: []*storage.Replacement{}})
		return
	}

	items, err := h.replacements.ListReplacements(r.Context(), limit)
	if err != nil {
		log.Printf("repair: list replacements: %v", err)
		writeJSON(w, replacementList{Items: []*storage.Replacement{}, Note: err.Error()})
		return
	}
	if items == nil {
		items = []*storage.Replacement{}
	}
	writeJSON(w, replacementList{Items: items})
}

// clientKey identifies the caller for rate limiting: first hop of
// X-Forwarded-For when present, otherwise the connection's remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok || first != "" {
			if key := strings.TrimSpace(first); key != "" {
				return key
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("repair: encode response: %v", err)
	}
}
