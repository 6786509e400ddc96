package remote

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"checkmate/internal/command"
	"checkmate/internal/hydrate"
	"checkmate/internal/model"
	"checkmate/internal/syncer"
)

// State is where the server keeps applied aggregates. *store.Store
// satisfies it through its base rows.
type State interface {
	BaseTemplates(ctx context.Context) ([]model.Template, error)
	BaseChecklists(ctx context.Context) ([]model.Checklist, error)
	BaseTemplate(ctx context.Context, id string) (model.Template, bool, error)
	BaseChecklist(ctx context.Context, id string) (model.Checklist, bool, error)
	PutTemplates(ctx context.Context, ts ...model.Template) error
	PutChecklists(ctx context.Context, cs ...model.Checklist) error
}

// OnceApplier records a command id and applies the command in one step.
// *store.Store implements it with a claimed_commands table, so ids survive
// a restart together with the state they produced.
type OnceApplier interface {
	ApplyOnce(ctx context.Context, c command.Command) (bool, error)
}

type Server struct {
	state  State
	ledger Ledger
	once   OnceApplier
	token  string
	logger *log.Logger

	// applies are serialized so read-modify-write on one aggregate is safe
	mu sync.Mutex
}

// NewServer serves state. With a nil ledger, command ids are claimed in the
// state store itself when it can do that, and in memory otherwise.
func NewServer(state State, ledger Ledger, token string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{state: state, ledger: ledger, token: strings.TrimSpace(token), logger: logger}
	if ledger == nil {
		if once, ok := state.(OnceApplier); ok {
			s.once = once
		} else {
			s.ledger = NewMemoryLedger()
		}
	}
	return s
}

// Router wires the HTTP API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.auth)
	api.HandleFunc("/commands", s.pushCommands).Methods(http.MethodPost)
	api.HandleFunc("/templates", s.listTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id}", s.getTemplate).Methods(http.MethodGet)
	api.HandleFunc("/checklists", s.listChecklists).Methods(http.MethodGet)
	api.HandleFunc("/checklists/{id}", s.getChecklist).Methods(http.MethodGet)
	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pushCommands(w http.ResponseWriter, r *http.Request) {
	var req syncer.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	acks := make([]syncer.Ack, 0, len(req.Commands))
	for _, rec := range req.Commands {
		ack, err := s.apply(r.Context(), rec)
		if err != nil {
			s.logger.Printf("remote: apply %s: %v", ack.CommandID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		acks = append(acks, ack)
	}
	writeJSON(w, http.StatusOK, syncer.PushResponse{Acks: acks})
}

// apply runs one record. Records that do not decode are rejected, ids seen
// before are acknowledged as duplicates without touching state.
func (s *Server) apply(ctx context.Context, rec command.Record) (syncer.Ack, error) {
	c, err := command.Decode(rec)
	if err != nil {
		return syncer.Ack{CommandID: commandIDOf(rec), Status: syncer.AckRejected, Reason: err.Error()}, nil
	}
	id := c.Env().CommandID
	if !command.Valid(c) {
		return syncer.Ack{CommandID: id, Status: syncer.AckRejected, Reason: "invalid envelope"}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.once != nil {
		first, err := s.once.ApplyOnce(ctx, c)
		if err != nil {
			return syncer.Ack{CommandID: id}, err
		}
		if !first {
			return syncer.Ack{CommandID: id, Status: syncer.AckDuplicate}, nil
		}
		return syncer.Ack{CommandID: id, Status: syncer.AckAccepted}, nil
	}

	first, err := s.ledger.Claim(ctx, id)
	if err != nil {
		return syncer.Ack{CommandID: id}, err
	}
	if !first {
		return syncer.Ack{CommandID: id, Status: syncer.AckDuplicate}, nil
	}
	if err := s.applyToState(ctx, c); err != nil {
		if rerr := s.ledger.Release(ctx, id); rerr != nil {
			s.logger.Printf("remote: release %s: %v", id, rerr)
		}
		return syncer.Ack{CommandID: id}, err
	}
	return syncer.Ack{CommandID: id, Status: syncer.AckAccepted}, nil
}

func (s *Server) applyToState(ctx context.Context, c command.Command) error {
	aggID := c.Env().AggregateID
	switch v := c.(type) {
	case command.TemplateCommand:
		base, ok, err := s.state.BaseTemplate(ctx, aggID)
		if err != nil {
			return err
		}
		if !ok {
			base = model.EmptyTemplate(aggID)
		}
		return s.state.PutTemplates(ctx, hydrate.Template(base, []command.TemplateCommand{v}))
	case command.ChecklistCommand:
		base, ok, err := s.state.BaseChecklist(ctx, aggID)
		if err != nil {
			return err
		}
		if !ok {
			base = model.EmptyChecklist(aggID)
		}
		return s.state.PutChecklists(ctx, hydrate.Checklist(base, []command.ChecklistCommand{v}))
	}
	return nil
}

func commandIDOf(rec command.Record) string {
	var e command.Envelope
	_ = json.Unmarshal(rec.Payload, &e)
	return e.CommandID
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.state.BaseTemplates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ts == nil {
		ts = []model.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": ts})
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, ok, err := s.state.BaseTemplate(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) listChecklists(w http.ResponseWriter, r *http.Request) {
	cs, err := s.state.BaseChecklists(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cs == nil {
		cs = []model.Checklist{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"checklists": cs})
}

func (s *Server) getChecklist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, ok, err := s.state.BaseChecklist(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "checklist not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
