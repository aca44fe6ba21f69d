package service

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"election-backend/auth"
	"election-backend/encryption"
	"election-backend/models"
	"election-backend/registry"
	"election-backend/storage"
)

// Limits on caller supplied identifiers.
const (
	MaxElectionIDLength = 64
	MaxNameLength       = 64
)

const (
	opInitialize       = "initialize"
	opStartElection    = "start_election"
	opEndVoting        = "end_voting"
	opRegisterVoter    = "register_voter"
	opSetEncryptionKey = "set_encryption_key"
	opCommitVote       = "commit_vote"
	opRevealVote       = "reveal_vote"
	opReleaseKey       = "release_decryption_key"
	opSubmitResult     = "submit_final_result"
)

// Params are the deployment settings of an ElectionService.
type Params struct {
	// ProgramID namespaces every storage key of this deployment.
	ProgramID string
	// StakeMultiplier turns a registered stake into the voting weight the
	// authority certifies at commit time.
	StakeMultiplier uint64
}

func DefaultParams() Params {
	return Params{
		ProgramID:       "election",
		StakeMultiplier: auth.DefaultStakeMultiplier,
	}
}

func (p Params) Validate() error {
	var result *multierror.Error
	if p.ProgramID == "" {
		result = multierror.Append(result, errors.New("program id must not be empty"))
	}
	if p.StakeMultiplier < 1 {
		result = multierror.Append(result, fmt.Errorf("stake multiplier must be at least 1, got %d", p.StakeMultiplier))
	}
	return result.ErrorOrNil()
}

type Option func(*ElectionService)

func WithLogger(log zerolog.Logger) Option {
	return func(s *ElectionService) {
		s.log = log.With().Str("component", "election").Logger()
	}
}

func WithMetrics(metrics MetricsCollector) Option {
	return func(s *ElectionService) {
		s.metrics = metrics
	}
}

func WithClock(clock Clock) Option {
	return func(s *ElectionService) {
		s.clock = clock
	}
}

// InitializeRequest describes a new election.
type InitializeRequest struct {
	ElectionID      string
	Name            string
	VotingAuthority models.Identity
	CommitDuration  int64
	RevealDuration  int64
}

// ElectionService runs elections on top of a Store. Every mutating operation
// reads the clock once and commits all of its writes in one transaction.
type ElectionService struct {
	store    storage.Store
	keys     storage.KeySpace
	registry *registry.VoterRegistry
	auth     *auth.Authenticator
	crypto   *encryption.CryptoService
	clock    Clock
	params   Params
	metrics  MetricsCollector
	log      zerolog.Logger
	mu       sync.RWMutex
}

func NewElectionService(store storage.Store, params Params, opts ...Option) (*ElectionService, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid election parameters: %w", err)
	}

	keys := storage.NewKeySpace(params.ProgramID)
	s := &ElectionService{
		store:    store,
		keys:     keys,
		registry: registry.NewVoterRegistry(keys),
		auth:     auth.NewAuthenticator(),
		crypto:   encryption.NewCryptoService(),
		clock:    SystemClock{},
		params:   params,
		metrics:  NewNoopCollector(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the deployment settings.
func (s *ElectionService) Params() Params {
	return s.params
}

// Initialize creates an election with caller as admin.
func (s *ElectionService) Initialize(caller models.Identity, req InitializeRequest) (*models.Election, error) {
	var created *models.Election
	err := s.execute(opInitialize, req.ElectionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		if req.CommitDuration <= 0 {
			return nil, fmt.Errorf("%w: %d", models.ErrInvalidCommitDuration, req.CommitDuration)
		}
		if req.RevealDuration <= 0 {
			return nil, fmt.Errorf("%w: %d", models.ErrInvalidRevealDuration, req.RevealDuration)
		}
		if err := validateInitialize(caller, req); err != nil {
			return nil, err
		}

		e := &models.Election{
			ID:              req.ElectionID,
			Name:            req.Name,
			Admin:           caller,
			VotingAuthority: req.VotingAuthority,
			CommitDuration:  req.CommitDuration,
			RevealDuration:  req.RevealDuration,
		}
		if err := tx.Create(s.keys.Election(e.ID), e); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return nil, fmt.Errorf("%w: %s", models.ErrElectionAlreadyExists, e.ID)
			}
			return nil, fmt.Errorf("failed to create election: %w", err)
		}
		if err := s.registry.CreateRoster(tx, e.ID); err != nil {
			return nil, err
		}

		created = e
		return lifecycleEvent{
			Name:            e.Name,
			VotingAuthority: &e.VotingAuthority,
			CommitDuration:  e.CommitDuration,
			RevealDuration:  e.RevealDuration,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateInitialize(caller models.Identity, req InitializeRequest) error {
	switch {
	case req.ElectionID == "":
		return fmt.Errorf("%w: election id must not be empty", models.ErrInvalidArgument)
	case len(req.ElectionID) > MaxElectionIDLength:
		return fmt.Errorf("%w: election id longer than %d bytes", models.ErrInvalidArgument, MaxElectionIDLength)
	case len(req.Name) > MaxNameLength:
		return fmt.Errorf("%w: name longer than %d bytes", models.ErrInvalidArgument, MaxNameLength)
	case req.VotingAuthority.IsZero():
		return fmt.Errorf("%w: voting authority must be set", models.ErrInvalidArgument)
	case caller.IsZero():
		return fmt.Errorf("%w: admin must be set", models.ErrInvalidArgument)
	}
	return nil
}

// StartElection opens the commit phase.
func (s *ElectionService) StartElection(electionID string, caller models.Identity) (*models.Election, error) {
	var updated *models.Election
	err := s.execute(opStartElection, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if caller != e.Admin {
			return nil, fmt.Errorf("%w: only the admin can start the election", models.ErrUnauthorized)
		}
		if e.Started() {
			return nil, models.ErrVotingAlreadyStarted
		}

		end, err := checkedAdd(now, e.CommitDuration)
		if err != nil {
			return nil, err
		}
		e.Active = true
		e.CommitEndTime = &end
		if err := s.saveElection(tx, e); err != nil {
			return nil, err
		}

		updated = e
		return lifecycleEvent{Phase: e.Phase(), CommitEndTime: e.CommitEndTime}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// EndVoting closes the commit phase and opens the reveal window.
func (s *ElectionService) EndVoting(electionID string, caller models.Identity) (*models.Election, error) {
	var updated *models.Election
	err := s.execute(opEndVoting, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if !e.Active {
			return nil, models.ErrVotingNotActive
		}
		if caller != e.Admin {
			return nil, fmt.Errorf("%w: only the admin can end voting", models.ErrUnauthorized)
		}

		end, err := checkedAdd(now, e.RevealDuration)
		if err != nil {
			return nil, err
		}
		e.Active = false
		e.Committed = true
		e.RevealEndTime = &end
		if err := s.saveElection(tx, e); err != nil {
			return nil, err
		}

		updated = e
		return lifecycleEvent{Phase: e.Phase(), RevealEndTime: e.RevealEndTime}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Election returns a copy of the stored election.
func (s *ElectionService) Election(electionID string) (*models.Election, error) {
	var e *models.Election
	err := s.view(func(tx storage.Tx) error {
		var err error
		e, err = s.loadElection(tx, electionID)
		return err
	})
	return e, err
}

func (s *ElectionService) VotingAuthority(electionID string) (models.Identity, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return models.Identity{}, err
	}
	return e.VotingAuthority, nil
}

// EncryptionKey returns the published ballot key, empty while unset.
func (s *ElectionService) EncryptionKey(electionID string) ([]byte, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return nil, err
	}
	return e.EncryptionKey, nil
}

func (s *ElectionService) Voter(electionID string, voter models.Identity) (*models.Voter, error) {
	var v *models.Voter
	err := s.view(func(tx storage.Tx) error {
		if _, err := s.loadElection(tx, electionID); err != nil {
			return err
		}
		var err error
		v, err = s.registry.Voter(tx, electionID, voter)
		return err
	})
	return v, err
}

// RegisteredVoters lists admitted identities in admission order.
func (s *ElectionService) RegisteredVoters(electionID string) ([]models.Identity, error) {
	var roster []models.Identity
	err := s.view(func(tx storage.Tx) error {
		var err error
		roster, err = s.registry.Roster(tx, electionID)
		return err
	})
	return roster, err
}

// execute runs fn as one atomic operation. The record fn returns is appended
// to the audit trail inside the same transaction.
func (s *ElectionService) execute(
	operation, electionID string,
	caller models.Identity,
	fn func(tx storage.Tx, now int64) (interface{}, error),
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now := s.clock.Now()
	err := s.store.Update(func(tx storage.Tx) error {
		record, err := fn(tx, now)
		if err != nil {
			return err
		}
		return s.appendAudit(tx, electionID, now, operation, caller, record)
	})
	s.observe(operation, electionID, caller, now, start, err)
	return err
}

func (s *ElectionService) view(fn func(tx storage.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.View(fn)
}

func (s *ElectionService) observe(operation, electionID string, caller models.Identity, now int64, start time.Time, err error) {
	elapsed := time.Since(start)
	log := s.log.With().
		Str("request_id", uuid.New().String()).
		Str("operation", operation).
		Str("election_id", electionID).
		Str("caller", caller.String()).
		Int64("now", now).
		Dur("duration", elapsed).
		Logger()

	if err == nil {
		s.metrics.OperationCompleted(operation, outcomeSuccess, elapsed)
		log.Info().Msg("operation completed")
		return
	}

	if code, ok := models.CodeOf(err); ok {
		s.metrics.OperationCompleted(operation, outcomeRejected, elapsed)
		log.Debug().Err(err).Str("code", code.Name()).Msg("operation rejected")
		return
	}
	s.metrics.OperationCompleted(operation, outcomeFailed, elapsed)
	log.Error().Err(err).Msg("operation failed")
}

func (s *ElectionService) loadElection(tx storage.Tx, electionID string) (*models.Election, error) {
	var e models.Election
	if err := tx.Get(s.keys.Election(electionID), &e); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrElectionNotFound, electionID)
		}
		return nil, fmt.Errorf("failed to load election: %w", err)
	}
	return &e, nil
}

func (s *ElectionService) saveElection(tx storage.Tx, e *models.Election) error {
	if err := tx.Update(s.keys.Election(e.ID), e); err != nil {
		return fmt.Errorf("failed to save election: %w", err)
	}
	return nil
}

// checkedAdd returns a+b or ErrOverflow when the sum does not fit an int64.
func checkedAdd(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d + %d", models.ErrOverflow, a, b)
	}
	return a + b, nil
}
