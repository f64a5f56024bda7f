// Package webui serves the local HTTP surface for rule editing, app
// discovery, and key learning: a small stdlib net/http.ServeMux is
// enough surface that pulling in a router dependency bought nothing,
// unlike the original's axum-based handlers.rs it mirrors.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Danondso/keymapperd/internal/config"
	"github.com/Danondso/keymapperd/internal/learn"
)

// Server owns the HTTP mux and its collaborators: the config Store
// (rule editing), the AppCache (app discovery), and the Learn Filter
// (key learning).
type Server struct {
	store    *config.Store
	apps     *AppCache
	learn    *learn.Filter
	log      *log.Logger
	mux      *http.ServeMux
	onReload func(*config.Config)
}

// New builds a Server and wires its routes. onReload, if non-nil, is
// invoked with the freshly persisted config after a successful
// POST /api/config, so the caller can push the new snapshot into the
// running Engine without waiting for the Processor's periodic refresh.
func New(store *config.Store, apps *AppCache, learnFilter *learn.Filter, onReload func(*config.Config), logger *log.Logger) *Server {
	s := &Server{
		store:    store,
		apps:     apps,
		learn:    learnFilter,
		log:      logger,
		mux:      http.NewServeMux(),
		onReload: onReload,
	}
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/apps", s.handleApps)
	s.mux.HandleFunc("/api/system/learn-start", s.handleLearnStart)
	s.mux.HandleFunc("/api/system/learn-result", s.handleLearnResult)
	return s
}

// ListenAndServe starts the HTTP server on addr, returning once it
// stops (including on ctx cancellation, which triggers a graceful
// Shutdown).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webui shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		dto := configToDTO(s.store.Snapshot())
		writeJSON(w, http.StatusOK, dto)

	case http.MethodPost:
		var dto configDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode config: %w", err))
			return
		}
		if dto.Version != configVersion {
			writeError(w, http.StatusConflict, fmt.Errorf("config version %d unsupported, want %d", dto.Version, configVersion))
			return
		}

		cfg := dtoToConfig(dto)
		if err := s.store.Replace(cfg); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if err := config.Save(s.store.Path(), cfg); err != nil {
			s.log.Printf("WARNING: save config: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := config.AppendSaveLog(s.store.Path(), "webui"); err != nil {
			s.log.Printf("WARNING: append save log: %v", err)
		}
		if s.onReload != nil {
			s.onReload(cfg)
		}
		writeJSON(w, http.StatusOK, configToDTO(s.store.Snapshot()))

	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.apps.Refresh(r.Context()); err != nil {
		s.log.Printf("WARNING: app cache refresh: %v", err)
	}
	writeJSON(w, http.StatusOK, s.apps.Apps())
}

func (s *Server) handleLearnStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.learn.Start()
	writeJSON(w, http.StatusOK, learnResultDTO(s.learn.Snapshot()))
}

func (s *Server) handleLearnResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, learnResultDTO(s.learn.Snapshot()))
}

type learnResult struct {
	Status      string  `json:"status"`
	KeyCode     *uint16 `json:"keyCode,omitempty"`
	RemainingMs *uint32 `json:"remainingMs,omitempty"`
}

func learnResultDTO(r learn.Result) learnResult {
	out := learnResult{RemainingMs: r.RemainingMs}
	switch r.Status {
	case learn.Idle:
		out.Status = "idle"
	case learn.Learning:
		out.Status = "learning"
	case learn.Captured:
		out.Status = "captured"
		code := r.KeyCode
		out.KeyCode = &code
	case learn.TimedOut:
		out.Status = "timeout"
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
