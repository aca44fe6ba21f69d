package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-backend/auth"
	"election-backend/models"
	"election-backend/storage"
)

// Registration is only open before the commit phase, so the voter is admitted
// first and the election started afterwards.
func TestElectionEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.initialize(60, 60)

	v1 := newIssuer(t)
	require.NoError(t, f.register(v1.Identity(), 10))
	f.start()

	payload, nonce, digest := f.ballot([]byte("sealed ballot"))
	require.NoError(t, f.commit(v1, 10, digest))
	f.end()

	f.clock.Advance(61)
	v, err := f.svc.RevealVote(testElectionID, v1.Identity(), payload, nonce)
	require.NoError(t, err)
	assert.False(t, v.RevealAccepted)
	assert.True(t, v.HasRevealed)

	_, err = f.svc.SubmitFinalResult(testElectionID, f.va.Identity(), 1, 0, resultProof(f, 1, 0))
	require.NoError(t, err)

	winner, err := f.svc.GetWinner(testElectionID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerYes, winner)

	trail, err := f.svc.AuditTrail(testElectionID)
	require.NoError(t, err)
	ops := make([]string, len(trail))
	for i, b := range trail {
		ops[i] = b.Operation
	}
	assert.Equal(t, []string{
		opInitialize, opRegisterVoter, opStartElection, opCommitVote, opEndVoting, opRevealVote, opSubmitResult,
	}, ops)
	require.NoError(t, f.svc.VerifyAuditTrail(testElectionID))
}

func TestFailedOperationsLeaveNoTrace(t *testing.T) {
	f, voter := committedFixture(t)
	before := f.election()
	trail, err := f.svc.AuditTrail(testElectionID)
	require.NoError(t, err)

	_, _, digest := f.ballot([]byte("ballot"))
	_, err = f.svc.CommitVote(testElectionID, voter.Identity(), digest, f.commitCert(voter.Identity(), 10), nil)
	require.ErrorIs(t, err, models.ErrInvalidSignature)
	_, err = f.svc.StartElection(testElectionID, f.admin.Identity())
	require.ErrorIs(t, err, models.ErrVotingAlreadyStarted)

	assert.Equal(t, before, f.election())
	assert.False(t, f.voter(voter.Identity()).HasCommitted)
	after, err := f.svc.AuditTrail(testElectionID)
	require.NoError(t, err)
	assert.Len(t, after, len(trail))
}

func TestAuditTrailDetectsTampering(t *testing.T) {
	f, _ := committedFixture(t)
	require.NoError(t, f.svc.VerifyAuditTrail(testElectionID))

	// Rewrite the registration block behind the service's back.
	key := f.svc.keys.AuditBlock(testElectionID, 1)
	require.NoError(t, f.store.Update(func(tx storage.Tx) error {
		var b models.Block
		if err := tx.Get(key, &b); err != nil {
			return err
		}
		b.Data = []byte(`{"voter":"forged","stake":1000}`)
		return tx.Update(key, &b)
	}))

	require.ErrorIs(t, f.svc.VerifyAuditTrail(testElectionID), models.ErrMalformedData)
}

func TestAuditTrailUnknownElection(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AuditTrail("missing")
	require.ErrorIs(t, err, models.ErrElectionNotFound)
}

func TestPrometheusCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewPrometheusCollector(registry)
	f := newFixture(t, WithMetrics(collector))

	f.initialize(60, 60)
	_, err := f.svc.StartElection(testElectionID, f.va.Identity())
	require.ErrorIs(t, err, models.ErrUnauthorized)
	f.start()

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.operations.WithLabelValues(opInitialize, outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.operations.WithLabelValues(opStartElection, outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.operations.WithLabelValues(opStartElection, outcomeRejected)))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.operations.WithLabelValues(opStartElection, outcomeFailed)))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.duration))
}

func TestProofKinds(t *testing.T) {
	f := newFixture(t)
	f.initialize(60, 60)
	voter := newIssuer(t).Identity()

	// Empty proof carries no endorsement at all.
	_, err := f.svc.RegisterVoter(testElectionID, f.va.Identity(), voter, 1, auth.Proof{})
	require.ErrorIs(t, err, models.ErrInvalidSignature)
}
