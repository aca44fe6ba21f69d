package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"election-backend/models"
	"election-backend/storage"
)

// auditHead tracks the tip of an election's audit trail.
type auditHead struct {
	Length   uint64        `json:"length"`
	LastHash hexutil.Bytes `json:"last_hash"`
}

// Audit records. Only the fields an operation touched are set.
type lifecycleEvent struct {
	Phase           models.Phase     `json:"phase,omitempty"`
	Name            string           `json:"name,omitempty"`
	VotingAuthority *models.Identity `json:"voting_authority,omitempty"`
	CommitDuration  int64            `json:"commit_duration,omitempty"`
	RevealDuration  int64            `json:"reveal_duration,omitempty"`
	CommitEndTime   *int64           `json:"commit_end_time,omitempty"`
	RevealEndTime   *int64           `json:"reveal_end_time,omitempty"`
}

type voterEvent struct {
	Voter          models.Identity `json:"voter"`
	Stake          uint64          `json:"stake,omitempty"`
	Commitment     hexutil.Bytes   `json:"commitment,omitempty"`
	RevealAccepted *bool           `json:"reveal_accepted,omitempty"`
}

type keyEvent struct {
	Key hexutil.Bytes `json:"key"`
}

type resultEvent struct {
	YesVotes uint64        `json:"yes_votes"`
	NoVotes  uint64        `json:"no_votes"`
	Winner   models.Winner `json:"winner"`
}

func (s *ElectionService) appendAudit(tx storage.Tx, electionID string, now int64, operation string, actor models.Identity, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	head := auditHead{LastHash: models.GenesisHash}
	exists := true
	if err := tx.Get(s.keys.AuditHead(electionID), &head); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load audit head: %w", err)
		}
		exists = false
	}

	block := models.NewBlock(head.Length, now, operation, actor, data, head.LastHash)
	if err := tx.Create(s.keys.AuditBlock(electionID, block.Index), block); err != nil {
		return fmt.Errorf("failed to save audit block: %w", err)
	}

	head.Length++
	head.LastHash = block.Hash
	if exists {
		err = tx.Update(s.keys.AuditHead(electionID), &head)
	} else {
		err = tx.Create(s.keys.AuditHead(electionID), &head)
	}
	if err != nil {
		return fmt.Errorf("failed to save audit head: %w", err)
	}
	return nil
}

// AuditTrail returns every block recorded for the election, oldest first.
func (s *ElectionService) AuditTrail(electionID string) ([]*models.Block, error) {
	var blocks []*models.Block
	err := s.view(func(tx storage.Tx) error {
		if _, err := s.loadElection(tx, electionID); err != nil {
			return err
		}

		var head auditHead
		if err := tx.Get(s.keys.AuditHead(electionID), &head); err != nil {
			return fmt.Errorf("failed to load audit head: %w", err)
		}
		blocks = make([]*models.Block, 0, head.Length)
		for i := uint64(0); i < head.Length; i++ {
			var b models.Block
			if err := tx.Get(s.keys.AuditBlock(electionID, i), &b); err != nil {
				return fmt.Errorf("failed to load audit block %d: %w", i, err)
			}
			blocks = append(blocks, &b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// VerifyAuditTrail checks that the stored trail is intact.
func (s *ElectionService) VerifyAuditTrail(electionID string) error {
	blocks, err := s.AuditTrail(electionID)
	if err != nil {
		return err
	}
	if err := models.ValidateChain(blocks); err != nil {
		return fmt.Errorf("%w: audit trail: %v", models.ErrMalformedData, err)
	}
	return nil
}
