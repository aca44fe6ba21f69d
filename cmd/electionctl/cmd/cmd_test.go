package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"election-backend/auth"
	"election-backend/models"
)

type cli struct {
	t   *testing.T
	dir string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, dir: t.TempDir()}
}

func (c *cli) path(name string) string {
	return filepath.Join(c.dir, name)
}

func (c *cli) run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--datadir", c.path("store"), "--backend", "json", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	out, err := c.run(args...)
	require.NoError(c.t, err, "electionctl %s", strings.Join(args, " "))
	return out
}

func (c *cli) keygen(name string) string {
	var res map[string]string
	require.NoError(c.t, json.Unmarshal([]byte(c.mustRun("keygen", "--out", c.path(name))), &res))
	return res["identity"]
}

func TestElectionWorkflow(t *testing.T) {
	c := newCLI(t)
	c.keygen("admin.json")
	authority := c.keygen("authority.json")
	voter := c.keygen("voter.json")

	admin, va, vk := c.path("admin.json"), c.path("authority.json"), c.path("voter.json")
	c.mustRun("init", "--key", admin, "--authority", authority, "--election", "e1",
		"--name", "board", "--commit-duration", "1h", "--reveal-duration", "2s")
	c.mustRun("set-encryption-key", "--key", va, "--election", "e1", "--ballot-key", c.path("ballot-key.json"))
	c.mustRun("register", "--key", va, "--election", "e1", "--voter", voter, "--stake", "5")
	c.mustRun("start", "--key", admin, "--election", "e1")

	cert := strings.TrimSpace(c.mustRun("issue-cert", "--key", va, "--election", "e1",
		"--voter", voter, "--stake", "5", "--purpose", "commit"))
	c.mustRun("commit", "--key", vk, "--election", "e1", "--choice", "yes",
		"--cert", cert, "--ballot", c.path("ballot.json"))
	c.mustRun("end", "--key", admin, "--election", "e1")

	var revealed models.Voter
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("reveal", "--key", vk, "--ballot", c.path("ballot.json"))), &revealed))
	assert.True(t, revealed.RevealAccepted)

	time.Sleep(2100 * time.Millisecond)
	c.mustRun("release-key", "--key", va, "--election", "e1", "--ballot-key", c.path("ballot-key.json"))

	var results map[string]int
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("count", "--election", "e1")), &results))
	assert.Equal(t, 5, results["yes_votes"])
	assert.Equal(t, 0, results["no_votes"])
	assert.Equal(t, 1, results["counted"])

	c.mustRun("submit-result", "--key", va, "--election", "e1", "--from-count")
	assert.Contains(t, c.mustRun("winner", "--election", "e1"), `"winner": "yes"`)

	var status struct {
		Phase  string   `json:"phase"`
		Voters []string `json:"voters"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("status", "--election", "e1")), &status))
	assert.Equal(t, string(models.PhaseFinalized), status.Phase)
	assert.Equal(t, []string{voter}, status.Voters)

	var report struct {
		Valid  bool              `json:"valid"`
		Blocks []json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("audit", "--election", "e1")), &report))
	assert.True(t, report.Valid)
	assert.Len(t, report.Blocks, 9)
}

func TestCommandErrors(t *testing.T) {
	c := newCLI(t)
	c.keygen("admin.json")
	authority := c.keygen("authority.json")
	admin := c.path("admin.json")

	_, err := c.run("start", "--key", admin, "--election", "missing")
	require.ErrorIs(t, err, models.ErrElectionNotFound)

	_, err = c.run("init", "--key", admin, "--authority", "not-base58!", "--election", "e2")
	require.Error(t, err)

	c.mustRun("init", "--key", admin, "--authority", authority, "--election", "e2")
	_, err = c.run("init", "--key", admin, "--authority", authority, "--election", "e2")
	require.ErrorIs(t, err, models.ErrElectionAlreadyExists)

	// Only the authority key can register voters.
	_, err = c.run("register", "--key", admin, "--election", "e2", "--voter", authority, "--stake", "1")
	require.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = c.run("issue-cert", "--key", admin, "--election", "e2", "--voter", authority,
		"--stake", "1", "--purpose", "vote")
	require.Error(t, err)
}

func TestLoadIssuerRejectsMismatchedIdentity(t *testing.T) {
	c := newCLI(t)
	c.keygen("a.json")
	other := c.keygen("b.json")

	var kf map[string]string
	data, err := os.ReadFile(c.path("a.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &kf))
	kf["identity"] = other
	require.NoError(t, writeJSON(c.path("a.json"), kf))

	_, err = loadIssuer(c.path("a.json"))
	require.Error(t, err)
}

func TestSign(t *testing.T) {
	c := newCLI(t)
	c.keygen("k.json")
	issuer, err := loadIssuer(c.path("k.json"))
	require.NoError(t, err)

	msg := []byte("endorse me")
	out := strings.TrimSpace(c.mustRun("sign", "--key", c.path("k.json"), "--message", hexutil.Encode(msg)))
	cert, err := hexutil.Decode(out)
	require.NoError(t, err)
	require.NoError(t, auth.NewAuthenticator().VerifyByCertificate(issuer.Identity(), msg, cert))

	out = c.mustRun("sign", "--key", c.path("k.json"), "--message", hexutil.Encode(msg), "--format", "log")
	var sigLog auth.SignatureLog
	require.NoError(t, json.Unmarshal([]byte(out), &sigLog))
	require.NoError(t, auth.NewAuthenticator().VerifyBySignatureLog(sigLog, issuer.Identity(), msg))

	_, err = c.run("sign", "--key", c.path("k.json"), "--message", "zz")
	require.Error(t, err)
	// Reset for later tests sharing the flag.
	flagFormat = "certificate"
}
