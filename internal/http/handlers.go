package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/shelter-matching/internal/dispatch"
	"github.com/example/shelter-matching/internal/intake"
	"github.com/example/shelter-matching/internal/models"
	"github.com/example/shelter-matching/internal/storage"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Intake *intake.Service
	WSReg  *dispatch.WSRegistry // optional
	// Ready reports dependency health for /ready; nil means always ready.
	Ready  func(ctx context.Context) error
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(svc *intake.Service, ws *dispatch.WSRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Intake: svc, WSReg: ws, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/match", s.handleMatch).Methods(http.MethodPost)
	api.HandleFunc("/users/{user_id}/intake", s.handleSaveIntake).Methods(http.MethodPut)
	api.HandleFunc("/users/{user_id}/matches", s.handleUserMatches).Methods(http.MethodGet)
	api.HandleFunc("/shelters", s.handleListShelters).Methods(http.MethodGet)
	api.HandleFunc("/shelters/{shelter_id}", s.handleGetShelter).Methods(http.MethodGet)
	api.HandleFunc("/shelters/{shelter_id}", s.handlePutShelter).Methods(http.MethodPut)

	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/shelters/{shelter_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type matchResponse struct {
	Success bool                 `json:"success"`
	RunID   string               `json:"runId,omitempty"`
	Matches []models.MatchResult `json:"matches"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var f intake.Form
	if !decode(w, r, &f) {
		return
	}
	run, err := s.Intake.MatchForm(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeMatches(w, r, run)
}

func (s *Server) handleSaveIntake(w http.ResponseWriter, r *http.Request) {
	var f intake.Form
	if !decode(w, r, &f) {
		return
	}
	p, err := s.Intake.SaveIntake(r.Context(), mux.Vars(r)["user_id"], f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": p})
}

func (s *Server) handleUserMatches(w http.ResponseWriter, r *http.Request) {
	run, err := s.Intake.MatchUser(r.Context(), mux.Vars(r)["user_id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeMatches(w, r, run)
}

func (s *Server) handleListShelters(w http.ResponseWriter, r *http.Request) {
	list, err := s.Intake.Shelters.ListShelters(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.ShelterCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shelters": list})
}

func (s *Server) handleGetShelter(w http.ResponseWriter, r *http.Request) {
	sh, err := s.Intake.Shelters.GetShelter(r.Context(), mux.Vars(r)["shelter_id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shelter": sh})
}

func (s *Server) handlePutShelter(w http.ResponseWriter, r *http.Request) {
	var sh models.ShelterCandidate
	if !decode(w, r, &sh) {
		return
	}
	id := mux.Vars(r)["shelter_id"]
	if sh.ID != "" && sh.ID != id {
		writeError(w, http.StatusBadRequest, "shelter id does not match path")
		return
	}
	sh.ID = id
	if err := sh.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Intake.Shelters.UpsertShelter(r.Context(), sh); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "shelter": sh})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			s.logger.Warn("not ready", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ready"})
}

var upgrader = websocket.Upgrader{}

// handleWS registers a shelter staff session and keeps it until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.WSReg == nil {
		writeError(w, http.StatusNotFound, "notifications disabled")
		return
	}
	id := mux.Vars(r)["shelter_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.WSReg.Add(id, conn)
	go func() {
		defer s.WSReg.Remove(id, conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}()
}

// fail maps service errors to the client-visible taxonomy.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "unable to complete request, please retry")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeMatches(w http.ResponseWriter, r *http.Request, run intake.Run) {
	setRunID(r.Context(), run.ID)
	matches := run.Matches
	if matches == nil {
		matches = []models.MatchResult{}
	}
	writeJSON(w, http.StatusOK, matchResponse{Success: true, RunID: run.ID, Matches: matches})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
