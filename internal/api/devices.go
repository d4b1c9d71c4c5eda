package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/duuxlink/internal/device"
	"github.com/nerrad567/duuxlink/internal/integration"
)

// DeviceView is the API representation of a device entry. The password is
// never returned.
type DeviceView struct {
	DeviceID  string `json:"device_id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	ModelName string `json:"model_name"`
	Source    string `json:"source"`
	Version   int    `json:"version"`
	Username  string `json:"username,omitempty"`
	MQTTHost  string `json:"mqtt_host,omitempty"`
	MQTTPort  int    `json:"mqtt_port,omitempty"`
	// Session is "connected", "connecting", "disconnected", or "not_set_up"
	// when the entry has no live session.
	Session   string `json:"session"`
	Entities  int    `json:"entities"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) deviceView(e device.Entry) DeviceView {
	v := DeviceView{
		DeviceID:  e.DeviceID(),
		Name:      e.Config.Name,
		Model:     e.Config.Model,
		ModelName: s.profiles.DisplayName(e.Config.Model),
		Source:    string(e.Source),
		Version:   e.Version,
		Username:  e.Config.Username,
		MQTTHost:  e.Config.MQTTHost,
		MQTTPort:  e.Config.MQTTPort,
		Session:   "not_set_up",
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if d, ok := s.manager.Get(e.DeviceID()); ok {
		v.Session = d.Session.State().String()
		v.Entities = len(d.Entities)
	}
	return v
}

// handleListDevices returns every configured device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.List()
	views := make([]DeviceView, 0, len(entries))
	for _, e := range entries {
		views = append(views, s.deviceView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by id, in any letter case.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	e, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrEntryNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, s.deviceView(*e))
}

// handleCreateDevice stores a new device entry and sets it up.
//
// With ?probe=true the broker and device are checked first, and nothing is
// stored unless the device publishes a state frame within the probe
// timeout.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var c device.Config
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	c = c.Normalize()

	if err := device.ValidateConfig(c); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if _, ok := s.profiles.Get(c.Model); !ok {
		writeValidationError(w, "unknown model: "+c.Model)
		return
	}

	if r.URL.Query().Get("probe") == "true" {
		if s.prober == nil {
			writeBadRequest(w, "probing is not available")
			return
		}
		if err := s.prober.Device(r.Context(), c.Broker(s.broker), c.DeviceID); err != nil {
			s.logger.Warn("device probe failed", "device_id", c.DeviceID, "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeProbeFailed, err.Error())
			return
		}
	}

	e, err := s.registry.Create(r.Context(), c, device.SourceAPI)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrEntryExists):
			writeError(w, http.StatusConflict, ErrCodeConflict, "device already configured")
		case errors.Is(err, device.ErrInvalidConfig):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("failed to store device entry", "device_id", c.DeviceID, "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}

	if _, err := s.manager.Setup(r.Context(), *e); err != nil {
		s.logger.Error("device setup failed", "device_id", e.DeviceID(), "error", err)
		if delErr := s.registry.Delete(r.Context(), e.DeviceID()); delErr != nil {
			s.logger.Error("failed to remove device entry after setup failure", "device_id", e.DeviceID(), "error", delErr)
		}
		writeInternalError(w, "failed to set up device")
		return
	}

	writeJSON(w, http.StatusCreated, s.deviceView(*e))
}

// handleDeleteDevice unloads a device and removes its entry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.manager.Unload(id); err != nil && !errors.Is(err, integration.ErrNotSetUp) {
		s.logger.Warn("device unload failed", "device_id", id, "error", err)
	}

	if err := s.registry.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrEntryNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
