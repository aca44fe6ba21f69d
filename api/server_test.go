package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-backend/auth"
	"election-backend/models"
	"election-backend/service"
	"election-backend/storage"
)

type testEnv struct {
	srv   *httptest.Server
	svc   *service.ElectionService
	admin *auth.Issuer
	va    *auth.Issuer
	voter *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	registry := prometheus.NewRegistry()
	svc, err := service.NewElectionService(storage.NewMemoryStore(), service.DefaultParams(),
		service.WithMetrics(service.NewPrometheusCollector(registry)))
	require.NoError(t, err)

	env := &testEnv{svc: svc}
	for _, i := range []**auth.Issuer{&env.admin, &env.va, &env.voter} {
		*i, err = auth.GenerateIssuer()
		require.NoError(t, err)
	}

	_, err = svc.Initialize(env.admin.Identity(), service.InitializeRequest{
		ElectionID:      "e1",
		Name:            "board",
		VotingAuthority: env.va.Identity(),
		CommitDuration:  60,
		RevealDuration:  60,
	})
	require.NoError(t, err)

	cert, err := env.va.IssueCertificate(auth.RegistrationMessage(env.voter.Identity(), 7, "e1"))
	require.NoError(t, err)
	_, err = svc.RegisterVoter("e1", env.va.Identity(), env.voter.Identity(), 7, auth.Proof{Certificate: cert})
	require.NoError(t, err)

	env.srv = httptest.NewServer(NewServer(svc, registry, zerolog.Nop()).Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (env *testEnv) get(t *testing.T, path string, params url.Values, out interface{}) int {
	resp, err := http.Get(env.srv.URL + path + "?" + params.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestGetElection(t *testing.T) {
	env := newTestEnv(t)

	var resp ElectionResponse
	status := env.get(t, "/api/election", url.Values{"election": {"e1"}}, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "board", resp.Election.Name)
	assert.Equal(t, env.admin.Identity(), resp.Election.Admin)
	assert.Equal(t, models.PhaseRegistering, resp.Phase)

	var errResp ErrorResponse
	status = env.get(t, "/api/election", url.Values{"election": {"missing"}}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ElectionNotFound", errResp.Name)
	assert.Equal(t, uint32(models.ErrElectionNotFound), errResp.Code)

	status = env.get(t, "/api/election", url.Values{}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetVoters(t *testing.T) {
	env := newTestEnv(t)

	var voters []models.Identity
	require.Equal(t, http.StatusOK, env.get(t, "/api/voters", url.Values{"election": {"e1"}}, &voters))
	assert.Equal(t, []models.Identity{env.voter.Identity()}, voters)

	var v models.Voter
	params := url.Values{"election": {"e1"}, "identity": {env.voter.Identity().String()}}
	require.Equal(t, http.StatusOK, env.get(t, "/api/voter", params, &v))
	assert.Equal(t, uint64(7), v.Stake)
	assert.False(t, v.HasCommitted)

	params.Set("identity", env.admin.Identity().String())
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/voter", params, nil))
	params.Set("identity", "0OIl")
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/api/voter", params, nil))
}

func TestLifecycleErrorsMapToConflict(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.StartElection("e1", env.admin.Identity())
	require.NoError(t, err)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusConflict, env.get(t, "/api/winner", url.Values{"election": {"e1"}}, &errResp))
	assert.Equal(t, "ElectionStillActive", errResp.Name)
	assert.Equal(t, http.StatusConflict, env.get(t, "/api/results", url.Values{"election": {"e1"}}, nil))
}

func TestGetAudit(t *testing.T) {
	env := newTestEnv(t)

	var resp AuditResponse
	require.Equal(t, http.StatusOK, env.get(t, "/api/audit", url.Values{"election": {"e1"}}, &resp))
	assert.True(t, resp.IsValid)
	assert.Equal(t, 2, resp.Length)
	assert.Equal(t, "initialize", resp.Blocks[0].Operation)
	assert.Equal(t, "register_voter", resp.Blocks[1].Operation)
}

func TestGetErrorCodes(t *testing.T) {
	env := newTestEnv(t)

	var codes []ErrorCodeResponse
	require.Equal(t, http.StatusOK, env.get(t, "/api/errors", url.Values{}, &codes))
	require.Len(t, codes, len(models.AllErrorCodes()))
	assert.Equal(t, uint32(6000), codes[0].Code)
	assert.Equal(t, "InvalidCommitDuration", codes[0].Name)
	assert.Equal(t, models.CategoryLifecycle, codes[0].Category)

	last := codes[len(codes)-1]
	assert.Equal(t, uint32(models.ErrElectionAlreadyExists), last.Code)
	assert.Equal(t, "election already exists", last.Message)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Post(env.srv.URL+"/api/election?election=e1", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `election_operations_total{operation="register_voter",outcome="success"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, statusFor(models.ErrUnauthorized))
	assert.Equal(t, http.StatusForbidden, statusFor(models.ErrInvalidCertificate))
	assert.Equal(t, http.StatusBadRequest, statusFor(models.ErrOverflow))
	assert.Equal(t, http.StatusNotFound, statusFor(models.ErrVoterNotRegistered))
	assert.Equal(t, http.StatusConflict, statusFor(models.ErrAlreadyCommitted))
}
