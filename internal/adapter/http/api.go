package http

import (
	"encoding/json"
	"net/http"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// View is the payload of GET /api/location and every /ws frame.
type View struct {
	State   domain.AcquisitionState `json:"state"`
	Status  domain.Status           `json:"status"`
	FixDate string                  `json:"fix_date,omitempty"`
}

// NewView projects a snapshot for display.
func NewView(s domain.AcquisitionState, f domain.Formatter) View {
	v := View{State: s, Status: domain.Project(s, f)}
	if r := s.BestReading; r != nil {
		v.FixDate = f.Date(r.Timestamp)
	}
	return v
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
	Default    string   `json:"default"`
}

func (s *Server) handleLocation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewView(s.locator.Snapshot(), s.formatter))
}

// handleDetails answers with the current fix tagged with the category query
// parameter, or 404 when there is no fix yet.
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	d, ok := domain.ProjectDetails(s.locator.Snapshot(), r.URL.Query().Get("category"), s.categories, s.formatter)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no location fix"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleCommand enqueues cmd and answers before the machine has handled it.
func (s *Server) handleCommand(cmd func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd()
		s.logger.Debug("location command accepted", "path", r.URL.Path)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories: s.categories,
		Default:    domain.NoCategory,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
