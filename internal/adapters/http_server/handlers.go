package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reviews_dashboard/internal/adapters/hostaway"
	"reviews_dashboard/internal/adapters/places"
	"reviews_dashboard/internal/app"
	"reviews_dashboard/internal/domain"
)

// SourceHeader carries the provenance marker: live or fallback.
const SourceHeader = "X-Reviews-Source"

type Handlers struct {
	Q *app.QueryService
	M *app.ModerationService
}

type listResponse struct {
	Status string          `json:"status"`
	Result []domain.Review `json:"result"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

type resultResponse struct {
	Status string `json:"status"`
	Result any    `json:"result"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/reviews", h.listReviews())
		r.Get("/reviews/hostaway", h.listReviews(hostaway.Name))
		r.Get("/reviews/google", h.listReviews(places.Name))
		r.Get("/reviews/public/{listing}", h.publicReviews)
		r.Get("/reviews/{id}/approval", h.approval)
		r.Put("/reviews/{id}/approval", h.setApproval)
		r.Get("/listings", h.listings)
		r.Get("/approvals", h.approvals)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Status: "error", Message: msg}); err != nil {
		log.Error().Err(err).Msg("write JSON error response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body, nil
}

// writeJSON writes v with an ETag, answering 304 when the client already has it.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body, err := calcETagAndBody(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal response failed")
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("ETag", etag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writePage(w http.ResponseWriter, r *http.Request, res app.Result) {
	w.Header().Set(SourceHeader, app.SourceHeader(res.Sources))
	writeJSON(w, r, listResponse{
		Status: "success",
		Result: res.Page.Items,
		Total:  res.Page.Total,
		Page:   res.Page.Page,
		Limit:  res.Page.Limit,
	})
}

func (h *Handlers) listReviews(providers ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.Q.ListReviews(r.Context(), app.ParseQuery(r.URL.Query()), providers...)
		if err != nil {
			log.Error().Err(err).Strs("providers", providers).Msg("list reviews failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writePage(w, r, res)
	}
}

func (h *Handlers) publicReviews(w http.ResponseWriter, r *http.Request) {
	listing := strings.TrimSpace(chi.URLParam(r, "listing"))
	res, err := h.Q.PublicReviews(r.Context(), listing, app.ParseQuery(r.URL.Query()))
	if err != nil {
		log.Error().Err(err).Str("listing", listing).Msg("public reviews failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writePage(w, r, res)
}

func (h *Handlers) listings(w http.ResponseWriter, r *http.Request) {
	sums, sources, err := h.Q.ListingSummaries(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("listing summaries failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set(SourceHeader, app.SourceHeader(sources))
	writeJSON(w, r, resultResponse{Status: "success", Result: sums})
}

func (h *Handlers) approvals(w http.ResponseWriter, r *http.Request) {
	m, err := h.M.Approvals(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list approvals failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k.String()] = v
	}
	writeJSON(w, r, resultResponse{Status: "success", Result: out})
}

type approvalRequest struct {
	Approved *bool `json:"approved"`
}

type approvalResult struct {
	ID       domain.ReviewID `json:"id"`
	Approved bool            `json:"approved"`
}

func (h *Handlers) approval(w http.ResponseWriter, r *http.Request) {
	id := domain.ReviewID(chi.URLParam(r, "id"))
	ok, err := h.M.Approval(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrInvalidID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("id", id.String()).Msg("get approval failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, r, resultResponse{Status: "success", Result: approvalResult{ID: id, Approved: ok}})
}

func (h *Handlers) setApproval(w http.ResponseWriter, r *http.Request) {
	id := domain.ReviewID(chi.URLParam(r, "id"))

	var req approvalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.Approved == nil {
		writeError(w, http.StatusBadRequest, `body must be {"approved": true|false}`)
		return
	}
	if err := h.M.SetApproval(r.Context(), id, *req.Approved); err != nil {
		if errors.Is(err, app.ErrInvalidID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("id", id.String()).Msg("set approval failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("id", id.String()).Bool("approved", *req.Approved).Msg("approval updated")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resultResponse{Status: "success", Result: approvalResult{ID: id, Approved: *req.Approved}})
}
