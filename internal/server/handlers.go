package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/engine"
	"github.com/aristath/sprinklerd/internal/eventlog"
	"github.com/aristath/sprinklerd/internal/model"
)

// handlers wraps engine.Engine's public methods as JSON endpoints. Every
// handler is a thin adapter: validation of the request shape happens here,
// domain validation (unknown zone, unknown program) happens in Engine and
// is surfaced back as a 400 with the error text.
type handlers struct {
	eng *engine.Engine
	log zerolog.Logger
}

func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	filter := eventlog.Filter{}

	q := r.URL.Query()
	if zone := q.Get("zone"); zone != "" {
		if n, err := strconv.Atoi(zone); err == nil {
			filter.Zone = &n
		}
	}
	if program := q.Get("program"); program != "" {
		filter.Program = program
	}
	if action := q.Get("action"); action != "" {
		filter.Action = model.EventAction(action)
	}
	if runID := q.Get("run_id"); runID != "" {
		filter.RunID = runID
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	records, err := h.eng.History(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handlers) postOn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.eng.SetOn(body.On)
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postRainDelay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
		Extend  bool  `json:"extend"`
		Clear   bool  `json:"clear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if body.Enabled != nil {
		h.eng.SetRainDelayEnabled(*body.Enabled)
	}
	if body.Extend {
		h.eng.ExtendRainDelay()
	}
	if body.Clear {
		h.eng.ClearRainDelay()
	}
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postProgramRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.eng.RunProgram(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postWeather(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.eng.SetWeatherEnabled(body.Enabled)
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postWateringIndex(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.eng.SetWateringIndexEnabled(body.Enabled)
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postRefresh(w http.ResponseWriter, r *http.Request) {
	h.eng.Refresh()
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postAllOff(w http.ResponseWriter, r *http.Request) {
	h.eng.AllOff()
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func (h *handlers) postZoneOn(w http.ResponseWriter, r *http.Request) {
	zone, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid zone index")
		return
	}

	var body struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.eng.ZoneOn(zone, body.Seconds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.eng.StatusSnapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}
