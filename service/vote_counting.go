package service

import (
	"fmt"
	"math/bits"

	"election-backend/auth"
	"election-backend/encryption"
	"election-backend/models"
	"election-backend/storage"
)

// VotingResults is the stake-weighted count of the revealed ballots.
type VotingResults struct {
	YesVotes      uint64 `json:"yes_votes"`
	NoVotes       uint64 `json:"no_votes"`
	Counted       int    `json:"counted"`
	Late          int    `json:"late"`
	Undecryptable int    `json:"undecryptable"`
	NotRevealed   int    `json:"not_revealed"`
}

// SubmitFinalResult stores the authority's tallies of an inactive election.
// A later submission replaces the stored counts.
func (s *ElectionService) SubmitFinalResult(electionID string, caller models.Identity, yesVotes, noVotes uint64, proof auth.Proof) (*models.Election, error) {
	var updated *models.Election
	err := s.execute(opSubmitResult, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if e.Active {
			return nil, models.ErrElectionStillActive
		}
		if caller != e.VotingAuthority {
			return nil, fmt.Errorf("%w: only the voting authority can submit results", models.ErrUnauthorized)
		}
		if err := s.auth.Verify(proof, e.VotingAuthority, auth.ResultMessage(electionID, yesVotes, noVotes)); err != nil {
			return nil, err
		}

		e.YesVotes = yesVotes
		e.NoVotes = noVotes
		e.ResultsFinal = true
		if err := s.saveElection(tx, e); err != nil {
			return nil, err
		}
		updated = e
		return resultEvent{YesVotes: yesVotes, NoVotes: noVotes, Winner: e.Winner()}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetWinner compares the submitted tallies of an inactive election.
func (s *ElectionService) GetWinner(electionID string) (models.Winner, error) {
	e, err := s.Election(electionID)
	if err != nil {
		return models.WinnerTie, err
	}
	if e.Active {
		return models.WinnerTie, models.ErrElectionStillActive
	}
	return e.Winner(), nil
}

// CountBallots decrypts every accepted reveal with the released key and sums
// the stakes per choice. Late reveals and ballots that do not decrypt are
// counted separately and carry no weight.
func (s *ElectionService) CountBallots(electionID string) (*VotingResults, error) {
	results := &VotingResults{}
	err := s.view(func(tx storage.Tx) error {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return err
		}
		switch {
		case e.Active:
			return models.ErrElectionStillActive
		case e.RevealEndTime == nil:
			return models.ErrRevealPhaseNotStarted
		case len(e.DecryptionKey) == 0:
			return fmt.Errorf("%w: decryption key not released", models.ErrRevealPhaseStillActive)
		}

		roster, err := s.registry.Roster(tx, electionID)
		if err != nil {
			return err
		}
		for _, id := range roster {
			v, err := s.registry.Voter(tx, electionID, id)
			if err != nil {
				return err
			}
			if err := results.add(s.crypto, v, e.DecryptionKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *VotingResults) add(cs *encryption.CryptoService, v *models.Voter, key []byte) error {
	switch {
	case !v.HasRevealed:
		r.NotRevealed++
		return nil
	case !v.RevealAccepted:
		r.Late++
		return nil
	}

	choice, err := cs.DecryptBallot(v.EncryptedVote, key)
	if err != nil {
		r.Undecryptable++
		return nil
	}

	total := &r.NoVotes
	if choice == encryption.ChoiceYes {
		total = &r.YesVotes
	}
	sum, carry := bits.Add64(*total, v.Stake, 0)
	if carry != 0 {
		return fmt.Errorf("%w: tally exceeds 64 bits", models.ErrOverflow)
	}
	*total = sum
	r.Counted++
	return nil
}
