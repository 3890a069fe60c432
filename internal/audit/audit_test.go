package audit

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditor_LogAndGet(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "nested", "audit.db"))
	require.NoError(t, err)
	defer a.Close()

	a.Log(KindAnalyze, "", "contract text", `{"risk_score":10}`, nil)
	a.Log(KindWebhook, "evt_1", "", "", errors.New("invalid signature"))

	entries, err := a.Recent("", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, KindWebhook, entries[0].Kind)
	assert.Equal(t, "evt_1", entries[0].Subject)
	assert.Equal(t, "invalid signature", entries[0].Error)
	assert.Equal(t, KindAnalyze, entries[1].Kind)
	assert.Equal(t, `{"risk_score":10}`, entries[1].Output)
}

func TestAuditor_RecentByKind(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer a.Close()

	a.Log(KindAnalyze, "", "a", "", nil)
	a.Log(KindWebhook, "evt_1", "", "granted=10", nil)
	a.Log(KindAnalyze, "", "b", "", nil)

	entries, err := a.Recent(KindWebhook, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt_1", entries[0].Subject)

	entries, err = a.Recent(KindEmail, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditor_ClipsLargeFields(t *testing.T) {
	a, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer a.Close()

	a.Log(KindQuestion, "", strings.Repeat("x", maxField*2), "", nil)

	entries, err := a.Recent("", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Input, maxField+3)
}

func TestClip_RuneBoundary(t *testing.T) {
	in := "a" + strings.Repeat("é", maxField)
	out := clip(in)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), maxField+3)
	assert.Equal(t, "short", clip("short"))
}

func TestAuditor_Nop(t *testing.T) {
	a := Nop()
	a.Log(KindEmail, "", "in", "out", nil)
	entries, err := a.Recent("", 5)
	assert.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, a.Close())
}
