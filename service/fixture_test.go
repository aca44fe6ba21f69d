package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"election-backend/auth"
	"election-backend/encryption"
	"election-backend/models"
	"election-backend/storage"
)

const (
	testElectionID = "2f1d3c4b-5a69-4788-9a0b-1c2d3e4f5a6b"
	startTime      = int64(1_700_000_000)
)

type manualClock struct {
	now int64
}

func (c *manualClock) Now() int64 {
	return c.now
}

func (c *manualClock) Advance(seconds int64) {
	c.now += seconds
}

type fixture struct {
	t      *testing.T
	svc    *ElectionService
	store  storage.Store
	clock  *manualClock
	admin  *auth.Issuer
	va     *auth.Issuer
	crypto *encryption.CryptoService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	return newFixtureWithStore(t, storage.NewMemoryStore(), opts...)
}

func newFixtureWithStore(t *testing.T, store storage.Store, opts ...Option) *fixture {
	clock := &manualClock{now: startTime}
	svc, err := NewElectionService(store, DefaultParams(), append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)

	return &fixture{
		t:      t,
		svc:    svc,
		store:  store,
		clock:  clock,
		admin:  newIssuer(t),
		va:     newIssuer(t),
		crypto: encryption.NewCryptoService(),
	}
}

func newIssuer(t testing.TB) *auth.Issuer {
	issuer, err := auth.GenerateIssuer()
	require.NoError(t, err)
	return issuer
}

func (f *fixture) initialize(commit, reveal int64) *models.Election {
	e, err := f.svc.Initialize(f.admin.Identity(), InitializeRequest{
		ElectionID:      testElectionID,
		Name:            "Board seat",
		VotingAuthority: f.va.Identity(),
		CommitDuration:  commit,
		RevealDuration:  reveal,
	})
	require.NoError(f.t, err)
	return e
}

func (f *fixture) start() {
	_, err := f.svc.StartElection(testElectionID, f.admin.Identity())
	require.NoError(f.t, err)
}

func (f *fixture) end() {
	_, err := f.svc.EndVoting(testElectionID, f.admin.Identity())
	require.NoError(f.t, err)
}

func (f *fixture) registrationCert(voter models.Identity, stake uint64) []byte {
	cert, err := f.va.IssueCertificate(auth.RegistrationMessage(voter, stake, testElectionID))
	require.NoError(f.t, err)
	return cert
}

func (f *fixture) register(voter models.Identity, stake uint64) error {
	proof := auth.Proof{Certificate: f.registrationCert(voter, stake)}
	_, err := f.svc.RegisterVoter(testElectionID, f.va.Identity(), voter, stake, proof)
	return err
}

func (f *fixture) commitCert(voter models.Identity, stake uint64) []byte {
	msg, err := auth.CommitAuthorizationMessage(voter, stake, auth.DefaultStakeMultiplier, testElectionID)
	require.NoError(f.t, err)
	cert, err := f.va.IssueCertificate(msg)
	require.NoError(f.t, err)
	return cert
}

func (f *fixture) commit(voter *auth.Issuer, stake uint64, digest []byte) error {
	_, err := f.svc.CommitVote(testElectionID, voter.Identity(), digest, f.commitCert(voter.Identity(), stake), voter.SignLog(digest))
	return err
}

// ballot returns a payload, nonce and the matching commitment.
func (f *fixture) ballot(payload []byte) ([]byte, []byte, []byte) {
	nonce, err := f.crypto.GenerateNonce()
	require.NoError(f.t, err)
	return payload, nonce, f.crypto.Commitment(payload, nonce)
}

func (f *fixture) election() *models.Election {
	e, err := f.svc.Election(testElectionID)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) voter(id models.Identity) *models.Voter {
	v, err := f.svc.Voter(testElectionID, id)
	require.NoError(f.t, err)
	return v
}
