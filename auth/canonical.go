package auth

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"

	"election-backend/models"
)

// DefaultStakeMultiplier is the weight applied to a registered stake before
// the commit authorization is signed.
const DefaultStakeMultiplier uint64 = 2

// RegistrationMessage is the message the voting authority endorses when it
// admits voter with stake: base58(voter) "-" decimal(stake) "-" electionID.
func RegistrationMessage(voter models.Identity, stake uint64, electionID string) []byte {
	return stakeMessage(voter, stake, electionID)
}

// CommitAuthorizationMessage is the message the voting authority certifies
// for a commit. It carries the voting weight instead of the raw stake.
func CommitAuthorizationMessage(voter models.Identity, stake, multiplier uint64, electionID string) ([]byte, error) {
	weight, err := VotingWeight(stake, multiplier)
	if err != nil {
		return nil, err
	}
	return stakeMessage(voter, weight, electionID), nil
}

// VotingWeight multiplies stake by multiplier and fails on 64-bit overflow.
func VotingWeight(stake, multiplier uint64) (uint64, error) {
	hi, lo := bits.Mul64(stake, multiplier)
	if hi != 0 {
		return 0, fmt.Errorf("%w: stake %d times %d", models.ErrOverflow, stake, multiplier)
	}
	return lo, nil
}

// EncryptionKeyMessage is electionID followed by the raw key bytes.
func EncryptionKeyMessage(electionID string, key []byte) []byte {
	msg := make([]byte, 0, len(electionID)+len(key))
	msg = append(msg, electionID...)
	return append(msg, key...)
}

// ResultMessage is electionID followed by both tallies as little-endian u64.
func ResultMessage(electionID string, yes, no uint64) []byte {
	msg := make([]byte, 0, len(electionID)+16)
	msg = append(msg, electionID...)
	msg = binary.LittleEndian.AppendUint64(msg, yes)
	return binary.LittleEndian.AppendUint64(msg, no)
}

func stakeMessage(voter models.Identity, amount uint64, electionID string) []byte {
	encoded := voter.String()
	msg := make([]byte, 0, len(encoded)+len(electionID)+22)
	msg = append(msg, encoded...)
	msg = append(msg, '-')
	msg = strconv.AppendUint(msg, amount, 10)
	msg = append(msg, '-')
	return append(msg, electionID...)
}
