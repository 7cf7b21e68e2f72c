// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/ManuGH/reftabs/internal/fieldview"
	xglog "github.com/ManuGH/reftabs/internal/log"
)

// Response headers of rendered fields.
const (
	HeaderCache     = "X-Reftabs-Cache"
	HeaderLibraries = "X-Reftabs-Libraries"
)

// fieldRequest builds a render request from the route and the view_mode,
// lang and rev query parameters.
func fieldRequest(r *http.Request) (fieldview.Request, error) {
	q := r.URL.Query()
	req := fieldview.Request{
		EntityType: chi.URLParam(r, "type"),
		ID:         chi.URLParam(r, "id"),
		RevisionID: q.Get("rev"),
		Field:      chi.URLParam(r, "field"),
		ViewMode:   q.Get("view_mode"),
	}
	if lang := q.Get("lang"); lang != "" {
		tag, err := language.Parse(lang)
		if err != nil {
			return req, fmt.Errorf("%w: lang %q: %v", errBadRequest, lang, err)
		}
		req.Langcode = tag.String()
	}
	return req, nil
}

func wantsPage(r *http.Request) bool {
	v := r.URL.Query().Get("page")
	if v == "" {
		return false
	}
	ok, err := strconv.ParseBool(v)
	return err == nil && ok
}

// handleRenderField serves a field as an HTML fragment, or as a complete
// page with its asset libraries linked when ?page=1 is set.
func (s *Server) handleRenderField(w http.ResponseWriter, r *http.Request) {
	req, err := fieldRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if wantsPage(r) {
		page, err := s.fields.RenderPage(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
		return
	}

	res, err := s.fields.RenderField(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cacheState := "MISS"
	if res.Cached {
		cacheState = "HIT"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(HeaderCache, cacheState)
	if len(res.Libraries) > 0 {
		w.Header().Set(HeaderLibraries, strings.Join(res.Libraries, ","))
	}
	if res.Langcode != "" {
		w.Header().Set("Content-Language", res.Langcode)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.HTML))

	xglog.FromContext(r.Context()).Debug().
		Str(xglog.FieldEvent, "api.field_served").
		Str(xglog.FieldEntityType, req.EntityType).
		Str(xglog.FieldEntityID, req.ID).
		Str(xglog.FieldField, req.Field).
		Str(xglog.FieldViewMode, res.Display.ViewMode).
		Str("cache", cacheState).
		Msg("field served")
}

// handleRenderFieldJSON serves the render result with its display as JSON.
func (s *Server) handleRenderFieldJSON(w http.ResponseWriter, r *http.Request) {
	req, err := fieldRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.fields.RenderField(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
