package models

import (
	"errors"
	"fmt"
)

// ErrorCode is a distinct, enumerable failure cause. Codes start at 6000 so
// they never collide with host-level status values.
type ErrorCode uint32

const (
	ErrInvalidCommitDuration ErrorCode = iota + 6000
	ErrInvalidRevealDuration
	ErrVotingAlreadyStarted
	ErrVotingNotActive
	ErrElectionStillActive
	ErrCommitPeriodEnded
	ErrRevealPhaseNotStarted
	ErrRevealPhaseStillActive
	ErrUnauthorized
	ErrInvalidSignature
	ErrInvalidCertificate
	ErrVoterAlreadyRegistered
	ErrVoterNotRegistered
	ErrInvalidStake
	ErrAlreadyCommitted
	ErrInvalidCommitment
	ErrVoteNotCommitted
	ErrVoteAlreadyRevealed
	ErrInvalidVoteReveal
	ErrEncryptionKeyAlreadySet
	ErrDecryptionKeyAlreadyReleased
	ErrDecryptionKeyMismatch
	ErrOverflow
	ErrInvalidArgument
	ErrMalformedData
	ErrElectionNotFound
	ErrElectionAlreadyExists
)

// Category groups error codes by the concern that raised them.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryLifecycle     Category = "lifecycle"
	CategoryRegistration  Category = "registration"
	CategoryVote          Category = "vote"
	CategoryArithmetic    Category = "arithmetic"
	CategoryData          Category = "data"
)

type codeInfo struct {
	name     string
	message  string
	category Category
}

var codes = map[ErrorCode]codeInfo{
	ErrInvalidCommitDuration:        {"InvalidCommitDuration", "invalid commit duration", CategoryLifecycle},
	ErrInvalidRevealDuration:        {"InvalidRevealDuration", "invalid reveal duration", CategoryLifecycle},
	ErrVotingAlreadyStarted:         {"VotingAlreadyStarted", "voting has already started", CategoryLifecycle},
	ErrVotingNotActive:              {"VotingNotActive", "voting is not active", CategoryLifecycle},
	ErrElectionStillActive:          {"ElectionStillActive", "election is still active", CategoryLifecycle},
	ErrCommitPeriodEnded:            {"CommitPeriodEnded", "commit period has ended", CategoryLifecycle},
	ErrRevealPhaseNotStarted:        {"RevealPhaseNotStarted", "reveal phase has not started", CategoryLifecycle},
	ErrRevealPhaseStillActive:       {"RevealPhaseStillActive", "reveal phase is still active", CategoryLifecycle},
	ErrUnauthorized:                 {"Unauthorized", "caller is not authorized to perform this action", CategoryAuthorization},
	ErrInvalidSignature:             {"InvalidSignature", "no matching signature record", CategoryAuthorization},
	ErrInvalidCertificate:           {"InvalidCertificate", "invalid certificate", CategoryAuthorization},
	ErrVoterAlreadyRegistered:       {"VoterAlreadyRegistered", "voter is already registered", CategoryRegistration},
	ErrVoterNotRegistered:           {"VoterNotRegistered", "voter is not registered", CategoryRegistration},
	ErrInvalidStake:                 {"InvalidStake", "stake must be positive", CategoryRegistration},
	ErrAlreadyCommitted:             {"AlreadyCommitted", "vote already committed", CategoryVote},
	ErrInvalidCommitment:            {"InvalidCommitment", "commitment must be a 32-byte digest", CategoryVote},
	ErrVoteNotCommitted:             {"VoteNotCommitted", "vote not committed", CategoryVote},
	ErrVoteAlreadyRevealed:          {"VoteAlreadyRevealed", "vote already revealed", CategoryVote},
	ErrInvalidVoteReveal:            {"InvalidVoteReveal", "revealed vote does not match commitment", CategoryVote},
	ErrEncryptionKeyAlreadySet:      {"EncryptionKeyAlreadySet", "encryption key already set", CategoryLifecycle},
	ErrDecryptionKeyAlreadyReleased: {"DecryptionKeyAlreadyReleased", "decryption key already released", CategoryLifecycle},
	ErrDecryptionKeyMismatch:        {"DecryptionKeyMismatch", "decryption key does not match the published encryption key", CategoryData},
	ErrOverflow:                     {"Overflow", "arithmetic overflow", CategoryArithmetic},
	ErrInvalidArgument:              {"InvalidArgument", "invalid argument", CategoryData},
	ErrMalformedData:                {"MalformedData", "malformed input data", CategoryData},
	ErrElectionNotFound:             {"ElectionNotFound", "election not found", CategoryLifecycle},
	ErrElectionAlreadyExists:        {"ElectionAlreadyExists", "election already exists", CategoryLifecycle},
}

func (c ErrorCode) Error() string {
	if info, ok := codes[c]; ok {
		return info.message
	}
	return fmt.Sprintf("unknown error code %d", uint32(c))
}

// Name returns the stable identifier of the code, e.g. "VoterAlreadyRegistered".
func (c ErrorCode) Name() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Code%d", uint32(c))
}

func (c ErrorCode) Category() Category {
	return codes[c].category
}

// CodeOf extracts the ErrorCode carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var code ErrorCode
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

// AllErrorCodes lists every defined code in numeric order.
func AllErrorCodes() []ErrorCode {
	out := make([]ErrorCode, 0, len(codes))
	for c := ErrInvalidCommitDuration; c <= ErrElectionAlreadyExists; c++ {
		out = append(out, c)
	}
	return out
}
