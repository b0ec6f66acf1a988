package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/backend"
	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/export"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/pager"
	"github.com/hyperjump/nasab/internal/query"
	"github.com/hyperjump/nasab/internal/ranges"
	"github.com/hyperjump/nasab/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var be *backend.Error
	switch {
	case errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, session.ErrInvalidParams),
		errors.Is(err, pager.ErrPageOutOfRange),
		errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, ranges.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, backend.ErrUnavailable), errors.As(err, &be):
		return http.StatusBadGateway
	case errors.Is(err, pager.ErrStaleResult):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "sessions": s.sessions.Len()}
	if s.catalog != nil {
		loading, err := s.catalog.Status()
		cat := map[string]any{"loading": loading}
		if err != nil {
			cat["error"] = err.Error()
		}
		if c, err := s.catalog.Catalog(); err == nil {
			cat["texts"] = len(c.Texts)
		}
		resp["catalog"] = cat
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	var form names.NameForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondJSON(w, http.StatusOK, form.Patterns())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Close(id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "closed"})
}

// sessionParams resolves the session and decodes its search parameters.
func (s *Server) sessionParams(r *http.Request) (*session.Session, session.SearchParams, error) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		return nil, session.SearchParams{}, err
	}
	params, err := session.DecodeValues(r.URL.Query())
	if err != nil {
		return nil, session.SearchParams{}, err
	}
	return sess, params, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, params, err := s.sessionParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Debug("search request", zap.String("session", sess.ID), zap.Int("forms", len(params.Forms)), zap.Int("page", params.Page))
	res, err := sess.Search(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, params, err := s.sessionParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := sess.Export(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// textsResponse is the text selection listing.
type textsResponse struct {
	Texts       []catalog.Text     `json:"texts"`
	IDs         string             `json:"ids"`
	Collections []string           `json:"collections"`
	Genres      []string           `json:"genres"`
	DateRange   *catalog.DateRange `json:"date_range,omitempty"`
}

func (s *Server) handleTexts(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.fail(w, r, catalog.ErrUnavailable)
		return
	}
	cat, err := s.catalog.Catalog()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f := catalog.Filter{
		Collections: q["collection"],
		Genres:      q["genre"],
		Term:        q.Get("q"),
	}
	if q.Has("from") || q.Has("to") {
		dr := catalog.DateRange{Min: 0, Max: 1 << 30}
		if cat.DateRange != nil {
			dr = *cat.DateRange
		}
		for key, dst := range map[string]*int{"from": &dr.Min, "to": &dr.Max} {
			if !q.Has(key) {
				continue
			}
			n, err := strconv.Atoi(q.Get(key))
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "invalid "+key+" year")
				return
			}
			*dst = n
		}
		f.DateRange = &dr
	}
	texts := cat.Filter(f)
	s.respondJSON(w, http.StatusOK, textsResponse{
		Texts:       texts,
		IDs:         ranges.Compress(catalog.IDs(texts)),
		Collections: cat.Collections,
		Genres:      cat.Genres,
		DateRange:   cat.DateRange,
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ranges.CheckIDs(req.IDs); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"ranges":          ranges.Compress(req.IDs),
		"should_compress": ranges.ShouldCompress(req.IDs),
	})
}

func (s *Server) handleDecompress(w http.ResponseWriter, r *http.Request) {
	ids, err := ranges.Decompress(r.URL.Query().Get("r"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ids": ids, "count": len(ids)})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
