package models

// Phase is the lifecycle position of an election, derived from its flags.
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseRegistering Phase = "registering"
	PhaseCommit      Phase = "commit"
	PhaseReveal      Phase = "reveal"
	PhaseFinalized   Phase = "finalized"
)

// Winner encodes the election outcome. The numeric values are part of the
// public result format.
type Winner uint8

const (
	WinnerTie Winner = 0
	WinnerYes Winner = 1
	WinnerNo  Winner = 2
)

func (w Winner) String() string {
	switch w {
	case WinnerYes:
		return "yes"
	case WinnerNo:
		return "no"
	default:
		return "tie"
	}
}

// Election is the persisted state of one election.
type Election struct {
	ID              string   `json:"election_id"`
	Name            string   `json:"name"`
	Admin           Identity `json:"admin"`
	VotingAuthority Identity `json:"voting_authority"`

	EncryptionKey []byte `json:"va_encryption_key,omitempty"`
	DecryptionKey []byte `json:"va_decryption_key,omitempty"`

	Active       bool `json:"is_active"`
	Committed    bool `json:"votes_committed"`
	Revealed     bool `json:"votes_revealed"`
	ResultsFinal bool `json:"results_final"`

	YesVotes uint64 `json:"yes_votes"`
	NoVotes  uint64 `json:"no_votes"`

	CommitDuration int64  `json:"commit_duration"`
	RevealDuration int64  `json:"reveal_duration"`
	CommitEndTime  *int64 `json:"commit_end_time,omitempty"`
	RevealEndTime  *int64 `json:"reveal_end_time,omitempty"`
}

// Phase derives the lifecycle phase from the stored flags and end times.
func (e *Election) Phase() Phase {
	switch {
	case e == nil || e.ID == "":
		return PhaseCreated
	case e.Active:
		return PhaseCommit
	case e.RevealEndTime != nil && e.ResultsFinal:
		return PhaseFinalized
	case e.RevealEndTime != nil:
		return PhaseReveal
	default:
		return PhaseRegistering
	}
}

// Started reports whether the commit phase was ever opened.
func (e *Election) Started() bool {
	return e.Active || e.CommitEndTime != nil
}

// Winner compares the submitted tallies.
func (e *Election) Winner() Winner {
	switch {
	case e.YesVotes > e.NoVotes:
		return WinnerYes
	case e.NoVotes > e.YesVotes:
		return WinnerNo
	default:
		return WinnerTie
	}
}
