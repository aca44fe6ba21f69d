package models

// CommitmentSize is the length of a commitment digest (SHA-256).
const CommitmentSize = 32

// Voter is the per-identity record of one election.
type Voter struct {
	Identity     Identity `json:"voter_address"`
	Stake        uint64   `json:"voter_stake"`
	HasCommitted bool     `json:"has_committed"`
	HasRevealed  bool     `json:"has_revealed"`

	// Commitment = SHA-256(encrypted ballot ++ nonce)
	Commitment    []byte `json:"commitment"`
	EncryptedVote []byte `json:"encrypted_vote,omitempty"`

	RevealTimestamp *int64 `json:"reveal_timestamp,omitempty"`
	RevealAccepted  bool   `json:"reveal_accepted"`
}

// NewVoter returns a fresh record with all flags cleared.
func NewVoter(id Identity, stake uint64) *Voter {
	return &Voter{
		Identity:   id,
		Stake:      stake,
		Commitment: []byte{},
	}
}
