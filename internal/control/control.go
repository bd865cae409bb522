// Package control implements the HTTP control-plane surface for the
// external control channel: Start/Pause/Resume/Shutdown commands
// addressed by target_id.
//
// Built on go-chi/chi for routing, go-chi/httprate to bound command
// volume, and google/uuid for crawl IDs.
package control

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/talonweb/talon/internal/crawl"
)

// Target is one registered crawl the control plane can command.
type Target struct {
	ID     string
	Cancel func()
	Cmds   chan<- crawl.Command
}

// Plane is the control-plane HTTP server's state: a registry of active
// crawl targets, each addressable by the UUID assigned at creation.
type Plane struct {
	mu      sync.RWMutex
	targets map[string]*Target
	log     *logrus.Logger
}

// New builds an empty Plane.
func New(log *logrus.Logger) *Plane {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Plane{targets: make(map[string]*Target), log: log}
}

// Register assigns a new target ID to an orchestrator's command
// channel and cancel func, returning the ID for the caller (typically
// the CLI) to report back to the operator.
func (p *Plane) Register(cmds chan<- crawl.Command, cancel func()) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.targets[id] = &Target{ID: id, Cancel: cancel, Cmds: cmds}
	p.mu.Unlock()
	return id
}

// Unregister drops a completed/shutdown target from the registry.
func (p *Plane) Unregister(id string) {
	p.mu.Lock()
	delete(p.targets, id)
	p.mu.Unlock()
}

// Router builds the chi router exposing Start/Pause/Resume/Shutdown
// endpoints under /targets/{id}/..., rate-limited to guard against a
// runaway control client.
func (p *Plane) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(30, time.Minute))

	r.Route("/targets/{id}", func(r chi.Router) {
		r.Post("/start", p.handleCommand(crawl.Start))
		r.Post("/pause", p.handleCommand(crawl.Pause))
		r.Post("/resume", p.handleCommand(crawl.Resume))
		r.Post("/shutdown", p.handleShutdown)
	})
	r.Get("/targets", p.handleList)

	return r
}

func (p *Plane) handleCommand(kind crawl.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p.mu.RLock()
		target, ok := p.targets[id]
		p.mu.RUnlock()
		if !ok {
			http.Error(w, "unknown target", http.StatusNotFound)
			return
		}
		select {
		case target.Cmds <- crawl.Command{TargetID: id, Kind: kind}:
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "command channel full", http.StatusServiceUnavailable)
		}
	}
}

func (p *Plane) handleShutdown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p.mu.RLock()
	target, ok := p.targets[id]
	p.mu.RUnlock()
	if !ok {
		http.Error(w, "unknown target", http.StatusNotFound)
		return
	}
	select {
	case target.Cmds <- crawl.Command{TargetID: id, Kind: crawl.Shutdown}:
	default:
		target.Cancel()
	}
	p.Unregister(id)
	w.WriteHeader(http.StatusAccepted)
}

func (p *Plane) handleList(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	ids := make([]string, 0, len(p.targets))
	for id := range p.targets {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ids)
}
