// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/reftabs/internal/displays"
	"github.com/ManuGH/reftabs/internal/formatter"
)

const maxDisplayBody = 64 << 10

// displayPayload is the writable part of a display; the key comes from the route.
type displayPayload struct {
	Formatter string                  `json:"formatter,omitempty"`
	Target    formatter.FieldSettings `json:"target"`
	Settings  formatter.Settings      `json:"settings"`
}

type displayList struct {
	Displays []displays.Display `json:"displays"`
}

func displayKey(r *http.Request) displays.Key {
	return displays.Key{
		EntityType: chi.URLParam(r, "type"),
		Bundle:     chi.URLParam(r, "bundle"),
		Field:      chi.URLParam(r, "field"),
		ViewMode:   chi.URLParam(r, "mode"),
	}
}

func (s *Server) handleListDisplays(w http.ResponseWriter, _ *http.Request) {
	list := s.fields.Displays()
	if list == nil {
		list = []displays.Display{}
	}
	writeJSON(w, http.StatusOK, displayList{Displays: list})
}

// handleGetDisplay returns a display with its settings summary and form.
func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	detail, err := s.fields.Display(r.Context(), displayKey(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handlePutDisplay creates or replaces a display after validating its
// settings against the form offered for its target.
func (s *Server) handlePutDisplay(w http.ResponseWriter, r *http.Request) {
	var body displayPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDisplayBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, fmt.Errorf("%w: decode display: %v", errBadRequest, err))
		return
	}

	key := displayKey(r)
	d := displays.Display{
		EntityType: key.EntityType,
		Bundle:     key.Bundle,
		Field:      key.Field,
		ViewMode:   key.ViewMode,
		Formatter:  body.Formatter,
		Target:     body.Target,
		Settings:   body.Settings,
	}
	detail, err := s.fields.SaveDisplay(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteDisplay(w http.ResponseWriter, r *http.Request) {
	if err := s.fields.DeleteDisplay(r.Context(), displayKey(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
