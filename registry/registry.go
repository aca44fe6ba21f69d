package registry

import (
	"errors"
	"fmt"

	"election-backend/models"
	"election-backend/storage"
)

// Roster lists the identities admitted to one election in admission order.
type Roster struct {
	ElectionID string            `json:"election_id"`
	Voters     []models.Identity `json:"voters"`
}

// VoterRegistry reads and writes voter slots and the roster inside the
// caller's transaction. It does not check phases or authorization.
type VoterRegistry struct {
	keys storage.KeySpace
}

func NewVoterRegistry(keys storage.KeySpace) *VoterRegistry {
	return &VoterRegistry{keys: keys}
}

// CreateRoster writes the empty roster of a new election.
func (r *VoterRegistry) CreateRoster(tx storage.Tx, electionID string) error {
	roster := &Roster{ElectionID: electionID, Voters: []models.Identity{}}
	if err := tx.Create(r.keys.Roster(electionID), roster); err != nil {
		return fmt.Errorf("failed to create roster: %w", err)
	}
	return nil
}

// Register claims the slot of voter and appends it to the roster. A taken
// slot fails with ErrVoterAlreadyRegistered whatever the stake.
func (r *VoterRegistry) Register(tx storage.Tx, electionID string, voter models.Identity, stake uint64) (*models.Voter, error) {
	record := models.NewVoter(voter, stake)
	if err := tx.Create(r.keys.Voter(electionID, voter), record); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", models.ErrVoterAlreadyRegistered, voter)
		}
		return nil, fmt.Errorf("failed to create voter record: %w", err)
	}

	var roster Roster
	if err := tx.Get(r.keys.Roster(electionID), &roster); err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	roster.Voters = append(roster.Voters, voter)
	if err := tx.Update(r.keys.Roster(electionID), &roster); err != nil {
		return nil, fmt.Errorf("failed to update roster: %w", err)
	}
	return record, nil
}

// Voter loads the record of voter or fails with ErrVoterNotRegistered.
func (r *VoterRegistry) Voter(tx storage.Tx, electionID string, voter models.Identity) (*models.Voter, error) {
	var record models.Voter
	if err := tx.Get(r.keys.Voter(electionID, voter), &record); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrVoterNotRegistered, voter)
		}
		return nil, fmt.Errorf("failed to load voter record: %w", err)
	}
	return &record, nil
}

// Save overwrites an existing voter record.
func (r *VoterRegistry) Save(tx storage.Tx, electionID string, voter *models.Voter) error {
	if err := tx.Update(r.keys.Voter(electionID, voter.Identity), voter); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", models.ErrVoterNotRegistered, voter.Identity)
		}
		return fmt.Errorf("failed to save voter record: %w", err)
	}
	return nil
}

// Roster returns the admitted identities of an election.
func (r *VoterRegistry) Roster(tx storage.Tx, electionID string) ([]models.Identity, error) {
	var roster Roster
	if err := tx.Get(r.keys.Roster(electionID), &roster); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrElectionNotFound, electionID)
		}
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return roster.Voters, nil
}
