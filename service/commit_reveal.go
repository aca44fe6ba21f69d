package service

import (
	"fmt"

	"election-backend/auth"
	"election-backend/models"
	"election-backend/storage"
)

// SetEncryptionKey publishes the ballot encryption key of the voting
// authority. It can be set once.
func (s *ElectionService) SetEncryptionKey(electionID string, caller models.Identity, key []byte, proof auth.Proof) (*models.Election, error) {
	var updated *models.Election
	err := s.execute(opSetEncryptionKey, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if caller != e.VotingAuthority {
			return nil, fmt.Errorf("%w: only the voting authority can publish the encryption key", models.ErrUnauthorized)
		}
		if len(e.EncryptionKey) > 0 {
			return nil, models.ErrEncryptionKeyAlreadySet
		}
		if _, err := s.crypto.ParseEncryptionKey(key); err != nil {
			return nil, err
		}
		if err := s.auth.Verify(proof, e.VotingAuthority, auth.EncryptionKeyMessage(electionID, key)); err != nil {
			return nil, err
		}

		e.EncryptionKey = append([]byte{}, key...)
		if err := s.saveElection(tx, e); err != nil {
			return nil, err
		}
		updated = e
		return keyEvent{Key: e.EncryptionKey}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CommitVote stores the commitment digest of caller. certificate is the
// authority's endorsement of the caller's voting weight and log holds the
// caller's own signature over digest.
func (s *ElectionService) CommitVote(electionID string, caller models.Identity, digest, certificate []byte, log auth.SignatureLog) (*models.Voter, error) {
	var committed *models.Voter
	err := s.execute(opCommitVote, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if !e.Active {
			return nil, models.ErrVotingNotActive
		}
		if e.CommitEndTime != nil && now > *e.CommitEndTime {
			return nil, fmt.Errorf("%w: deadline %d, now %d", models.ErrCommitPeriodEnded, *e.CommitEndTime, now)
		}
		if len(digest) != models.CommitmentSize {
			return nil, fmt.Errorf("%w: got %d bytes", models.ErrInvalidCommitment, len(digest))
		}

		v, err := s.registry.Voter(tx, electionID, caller)
		if err != nil {
			return nil, err
		}
		if v.HasCommitted {
			return nil, models.ErrAlreadyCommitted
		}

		msg, err := auth.CommitAuthorizationMessage(caller, v.Stake, s.params.StakeMultiplier, electionID)
		if err != nil {
			return nil, err
		}
		if err := s.auth.VerifyByCertificate(e.VotingAuthority, msg, certificate); err != nil {
			return nil, err
		}
		if err := s.auth.VerifyBySignatureLog(log, caller, digest); err != nil {
			return nil, err
		}

		v.Commitment = append([]byte{}, digest...)
		v.HasCommitted = true
		if err := s.registry.Save(tx, electionID, v); err != nil {
			return nil, err
		}
		committed = v
		return voterEvent{Voter: caller, Commitment: v.Commitment}, nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// RevealVote opens the commitment of caller. A reveal after the window is
// stored but not accepted.
func (s *ElectionService) RevealVote(electionID string, caller models.Identity, payload, nonce []byte) (*models.Voter, error) {
	var revealed *models.Voter
	err := s.execute(opRevealVote, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if e.Active {
			return nil, models.ErrElectionStillActive
		}
		if e.RevealEndTime == nil {
			return nil, models.ErrRevealPhaseNotStarted
		}

		v, err := s.registry.Voter(tx, electionID, caller)
		if err != nil {
			return nil, err
		}
		if !v.HasCommitted || len(v.Commitment) == 0 {
			return nil, models.ErrVoteNotCommitted
		}
		if v.HasRevealed {
			return nil, models.ErrVoteAlreadyRevealed
		}
		if !s.crypto.VerifyCommitment(v.Commitment, payload, nonce) {
			return nil, models.ErrInvalidVoteReveal
		}

		ts := now
		v.RevealTimestamp = &ts
		v.RevealAccepted = now <= *e.RevealEndTime
		v.HasRevealed = true
		v.EncryptedVote = append([]byte{}, payload...)
		if err := s.registry.Save(tx, electionID, v); err != nil {
			return nil, err
		}

		revealed = v
		accepted := v.RevealAccepted
		return voterEvent{Voter: caller, RevealAccepted: &accepted}, nil
	})
	if err != nil {
		return nil, err
	}
	return revealed, nil
}

// ReleaseDecryptionKey publishes the authority's ballot decryption key once
// the reveal window has closed.
func (s *ElectionService) ReleaseDecryptionKey(electionID string, caller models.Identity, key []byte) (*models.Election, error) {
	var updated *models.Election
	err := s.execute(opReleaseKey, electionID, caller, func(tx storage.Tx, now int64) (interface{}, error) {
		e, err := s.loadElection(tx, electionID)
		if err != nil {
			return nil, err
		}
		if caller != e.VotingAuthority {
			return nil, fmt.Errorf("%w: only the voting authority can release the decryption key", models.ErrUnauthorized)
		}
		if len(e.DecryptionKey) > 0 {
			return nil, models.ErrDecryptionKeyAlreadyReleased
		}
		if e.RevealEndTime == nil {
			return nil, models.ErrRevealPhaseNotStarted
		}
		if now < *e.RevealEndTime {
			return nil, fmt.Errorf("%w: reveal window closes at %d, now %d", models.ErrRevealPhaseStillActive, *e.RevealEndTime, now)
		}
		if _, err := s.crypto.ParseDecryptionKey(key); err != nil {
			return nil, err
		}
		if len(e.EncryptionKey) > 0 && !s.crypto.KeysMatch(e.EncryptionKey, key) {
			return nil, models.ErrDecryptionKeyMismatch
		}

		e.DecryptionKey = append([]byte{}, key...)
		e.Revealed = true
		if err := s.saveElection(tx, e); err != nil {
			return nil, err
		}
		updated = e
		return keyEvent{Key: e.DecryptionKey}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
