package api

import (
	"net/http"

	"github.com/nerrad567/duuxlink/internal/profile"
)

// ModelView summarises one device profile.
type ModelView struct {
	Model    string            `json:"model"`
	Name     string            `json:"name"`
	MaxSpeed int               `json:"max_speed,omitempty"`
	Features []profile.Feature `json:"features,omitempty"`
	Entities map[string]int    `json:"entities"`
}

// handleListModels returns the valid profiles and the reasons any profile
// was rejected.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models := make([]ModelView, 0)
	for _, m := range s.profiles.Models() {
		p, _ := s.profiles.Get(m)
		v := ModelView{
			Model: p.Model,
			Name:  p.Name,
			Entities: map[string]int{
				"switch":        len(p.Switches),
				"sensor":        len(p.Sensors),
				"number":        len(p.Numbers),
				"select":        len(p.Selects),
				"binary_sensor": len(p.BinarySensors),
			},
		}
		if p.Fan != nil {
			v.MaxSpeed = p.Fan.MaxSpeed
			v.Features = p.Fan.Features
			v.Entities["fan"] = 1
		}
		models = append(models, v)
	}

	rejected := make(map[string]string)
	for m, err := range s.profiles.Rejected() {
		rejected[m] = err.Error()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models":   models,
		"rejected": rejected,
		"count":    len(models),
	})
}
