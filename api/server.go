package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"election-backend/models"
	"election-backend/service"
)

// Server exposes the read side of an ElectionService over HTTP. State changes
// need the caller's key and go through electionctl.
type Server struct {
	svc      *service.ElectionService
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	mux      *http.ServeMux
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
}

type ElectionResponse struct {
	Election *models.Election `json:"election"`
	Phase    models.Phase     `json:"phase"`
}

type WinnerResponse struct {
	Winner   string `json:"winner"`
	Code     uint8  `json:"code"`
	YesVotes uint64 `json:"yes_votes"`
	NoVotes  uint64 `json:"no_votes"`
}

type ErrorCodeResponse struct {
	Code     uint32          `json:"code"`
	Name     string          `json:"name"`
	Message  string          `json:"message"`
	Category models.Category `json:"category"`
}

type AuditResponse struct {
	Blocks  []*models.Block `json:"blocks"`
	Length  int             `json:"length"`
	IsValid bool            `json:"is_valid"`
	Error   string          `json:"error,omitempty"`
}

func NewServer(svc *service.ElectionService, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{
		svc:      svc,
		gatherer: gatherer,
		log:      log.With().Str("component", "api").Logger(),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/election", s.handleGetElection)
	s.mux.HandleFunc("/api/voters", s.handleGetVoters)
	s.mux.HandleFunc("/api/voter", s.handleGetVoter)
	s.mux.HandleFunc("/api/winner", s.handleGetWinner)
	s.mux.HandleFunc("/api/results", s.handleGetResults)
	s.mux.HandleFunc("/api/audit", s.handleGetAudit)
	s.mux.HandleFunc("/api/errors", s.handleGetErrorCodes)
	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting election api")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.electionID(w, r)
	if !ok {
		return
	}
	e, err := s.svc.Election(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, ElectionResponse{Election: e, Phase: e.Phase()})
}

func (s *Server) handleGetVoters(w http.ResponseWriter, r *http.Request) {
	id, ok := s.electionID(w, r)
	if !ok {
		return
	}
	voters, err := s.svc.RegisteredVoters(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, voters)
}

func (s *Server) handleGetVoter(w http.ResponseWriter, r *http.Request) {
	id, ok := s.electionID(w, r)
	if !ok {
		return
	}
	identity, err := models.ParseIdentity(r.URL.Query().Get("identity"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	v, err := s.svc.Voter(id, identity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, v)
}

func (s *Server) handleGetWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := s.electionID(w, r)
	if !ok {
		return
	}
	winner, err := s.svc.GetWinner(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	e, err := s.svc.Election(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, WinnerResponse{
		Winner:   winner.String(),
		Code:     uint8(winner),
		YesVotes: e.YesVotes,
		NoVotes:  e.NoVotes,
	})
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	id, ok := s.electionID(w, r)
	if !ok {
		return
	}
	results, err := s.svc.CountBallots(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, results)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := s.electionID(w, r)
	if !ok {
		return
	}
	blocks, err := s.svc.AuditTrail(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := AuditResponse{Blocks: blocks, Length: len(blocks), IsValid: true}
	if err := s.svc.VerifyAuditTrail(id); err != nil {
		resp.IsValid = false
		resp.Error = err.Error()
	}
	s.writeJSON(w, resp)
}

// handleGetErrorCodes lists every code a failed request can carry.
func (s *Server) handleGetErrorCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	all := models.AllErrorCodes()
	resp := make([]ErrorCodeResponse, 0, len(all))
	for _, c := range all {
		resp = append(resp, ErrorCodeResponse{
			Code:     uint32(c),
			Name:     c.Name(),
			Message:  c.Error(),
			Category: c.Category(),
		})
	}
	s.writeJSON(w, resp)
}

// electionID checks the method and reads the election query parameter.
func (s *Server) electionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}
	id := r.URL.Query().Get("election")
	if id == "" {
		s.writeError(w, models.ErrInvalidArgument)
		return "", false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	if code, ok := models.CodeOf(err); ok {
		resp.Code = uint32(code)
		resp.Name = code.Name()
		status = statusFor(code)
	} else {
		s.log.Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("failed to encode error response")
	}
}

func statusFor(code models.ErrorCode) int {
	switch code {
	case models.ErrElectionNotFound, models.ErrVoterNotRegistered:
		return http.StatusNotFound
	}
	switch code.Category() {
	case models.CategoryAuthorization:
		return http.StatusForbidden
	case models.CategoryData, models.CategoryArithmetic:
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}
