package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericksa/contractai/internal/audit"
	"github.com/ericksa/contractai/internal/billing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreditCommands(t *testing.T) {
	dir := chdirTemp(t)
	data := filepath.Join(dir, "data")

	out, err := run(t, "", "--data-dir", data, "add", "User@Example.com", "10")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com: 10\n", out)

	out, err = run(t, "", "--data-dir", data, "add", "--", "user@example.com", "-3")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com: 7\n", out)

	out, err = run(t, "", "--data-dir", data, "--json", "get", "USER@example.com")
	require.NoError(t, err)
	var b balance
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, balance{"user@example.com", 7}, b)

	_, err = run(t, "", "--data-dir", data, "set", "user@example.com", "1")
	require.NoError(t, err)
	out, err = run(t, "", "--data-dir", data, "get", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com: 1\n", out)

	_, err = run(t, "", "--data-dir", data, "add", "user@example.com", "ten")
	assert.Error(t, err)
}

func TestCreditCommands_SQLite(t *testing.T) {
	dir := chdirTemp(t)
	dsn := filepath.Join(dir, "ledger.db")

	_, err := run(t, "", "--backend", "sqlite", "--dsn", dsn, "add", "a@b.io", "4")
	require.NoError(t, err)
	out, err := run(t, "", "--backend", "sqlite", "--dsn", dsn, "get", "a@b.io")
	require.NoError(t, err)
	assert.Equal(t, "a@b.io: 4\n", out)
}

func TestProcessedCommand(t *testing.T) {
	dir := chdirTemp(t)
	data := filepath.Join(dir, "data")

	out, err := run(t, "", "--data-dir", data, "processed", "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "evt_1: processed=false\n", out)

	out, err = run(t, "", "--data-dir", data, "processed", "evt_1", "--mark")
	require.NoError(t, err)
	assert.Equal(t, "evt_1: processed=true\n", out)

	out, err = run(t, "", "--data-dir", data, "processed", "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "evt_1: processed=true\n", out)
}

func TestAuditCommand(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "audit.db")
	a, err := audit.Open(path)
	require.NoError(t, err)
	a.Log(audit.KindWebhook, "evt_7", "payment.completed", "granted=10", nil)
	a.Log(audit.KindAnalyze, "", "contract", "{}", nil)
	require.NoError(t, a.Close())

	out, err := run(t, "", "--audit-db", path, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "evt_7")

	out, err = run(t, "", "--audit-db", path, "--json", "audit", "--kind", "webhook", "--limit", "1")
	require.NoError(t, err)
	var entries []audit.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "webhook", entries[0].Kind)
}

func TestSignCommand(t *testing.T) {
	chdirTemp(t)
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("cli-secret"))
	t.Setenv("DODO_WEBHOOK_SECRET", secret)
	payload := `{"id":"evt_1"}`

	out, err := run(t, payload, "--json", "sign", "--id", "msg_cli", "-")
	require.NoError(t, err)
	var headers map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &headers))
	assert.Equal(t, "msg_cli", headers[billing.HeaderID])

	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	ts, err := strconv.ParseInt(headers[billing.HeaderTimestamp], 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), ts, 60)
	assert.NoError(t, billing.NewVerifier(secret, time.Minute).Verify(h, []byte(payload)))
}

func TestSignCommand_NoSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DODO_WEBHOOK_SECRET", "")
	t.Setenv("CONTRACTAI_BILLING_WEBHOOK_SECRET", "")
	_, err := run(t, "{}", "sign", "-")
	assert.ErrorIs(t, err, billing.ErrNotConfigured)
}
