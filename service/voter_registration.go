package service

import (
	"errors"
	"fmt"

	"election-backend/auth"
	"election-backend/models"
	"election-backend/storage"
)

// RegisterVoter admits voter with stake. The voting authority proves its
// endorsement of the registration message with proof.
func (s *ElectionService) RegisterVoter(electionID string, caller, voter models.Identity, stake uint64, proof auth.Proof) (*models.Voter, error) {
	var registered *models.Voter
	err := s.execute(opRegisterVoter, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}

		// 1. Registration closes once the commit phase has been opened
		if e.Started() {
			return nil, models.ErrVotingAlreadyStarted
		}

		// 2. Only the voting authority admits voters
		if caller != e.VotingAuthority {
			return nil, fmt.Errorf("%w: only the voting authority can register voters", models.ErrUnauthorized)
		}

		// 3. The slot must be free, whatever stake is asked for
		if _, err := s.registry.Voter(tx, electionID, voter); err == nil {
			return nil, fmt.Errorf("%w: %s", models.ErrVoterAlreadyRegistered, voter)
		} else if !errors.Is(err, models.ErrVoterNotRegistered) {
			return nil, err
		}
		if stake == 0 {
			return nil, models.ErrInvalidStake
		}
		if voter.IsZero() {
			return nil, fmt.Errorf("%w: voter identity must be set", models.ErrInvalidArgument)
		}

		// 4. The authority endorsed exactly this voter, stake and election
		msg := auth.RegistrationMessage(voter, stake, electionID)
		if err := s.auth.Verify(proof, e.VotingAuthority, msg); err != nil {
			return nil, err
		}

		registered, err = s.registry.Register(tx, electionID, voter, stake)
		if err != nil {
			return nil, err
		}
		return voterEvent{Voter: voter, Stake: stake}, nil
	})
	if err != nil {
		return nil, err
	}
	return registered, nil
}
