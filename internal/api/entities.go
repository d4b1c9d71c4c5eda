package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/duuxlink/internal/binding"
	"github.com/nerrad567/duuxlink/internal/integration"
	"github.com/nerrad567/duuxlink/internal/session"
)

// EntityView is an entity's metadata plus its current state.
type EntityView struct {
	binding.Meta
	State map[string]any `json:"state"`
}

func entityViews(d *integration.Device) []EntityView {
	views := make([]EntityView, 0, len(d.Entities))
	for _, e := range d.Entities {
		views = append(views, EntityView{Meta: e.Meta(), State: e.State()})
	}
	return views
}

// liveDevice resolves the {id} URL parameter to a set-up device, writing a
// 404 when there is none.
func (s *Server) liveDevice(w http.ResponseWriter, r *http.Request) (*integration.Device, bool) {
	d, ok := s.manager.Get(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "device not set up")
		return nil, false
	}
	return d, true
}

// handleListEntities returns every entity of a device with its state.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	d, ok := s.liveDevice(w, r)
	if !ok {
		return
	}
	views := entityViews(d)
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": d.ID(),
		"session":   d.Session.State().String(),
		"entities":  views,
		"count":     len(views),
	})
}

// handleEntityAction applies an action to one entity.
//
// The command is published without waiting for the device, so success is
// 202 Accepted; the new state arrives with the next state frame.
func (s *Server) handleEntityAction(w http.ResponseWriter, r *http.Request) {
	d, ok := s.liveDevice(w, r)
	if !ok {
		return
	}

	e, err := d.Entity(chi.URLParam(r, "key"))
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}

	var a binding.Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if a.Name == "" {
		writeBadRequest(w, "action is required")
		return
	}

	if err := binding.Apply(e, a); err != nil {
		switch {
		case errors.Is(err, binding.ErrUnsupported):
			writeError(w, http.StatusBadRequest, ErrCodeUnsupported, err.Error())
		case errors.Is(err, binding.ErrOutOfRange),
			errors.Is(err, binding.ErrUnknownOption),
			errors.Is(err, session.ErrInvalidCommand):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("entity action failed", "device_id", d.ID(), "entity", e.Meta().Key, "error", err)
			writeInternalError(w, "action failed")
		}
		return
	}

	s.logger.Debug("entity action sent", "device_id", d.ID(), "entity", e.Meta().Key, "action", a.Name)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "sent",
		"device_id": d.ID(),
		"entity":    e.Meta().Key,
		"action":    a.Name,
	})
}
