package accounts_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	fn()
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestDefaultLoggerWritesKeyValuePairs(t *testing.T) {
	out := captureStdout(t, func() {
		logger := accounts.DefaultLogger()
		logger.Info("signup created", "email", "a@b.com")
		logger.Warn("lockout disabled")
		logger.Error("provider call", "operation", "confirm", "attempt", 2)
		logger.Debug("dangling", "key")
	})

	assert.Equal(t, "[INF] ACCOUNTS signup created email=a@b.com\n"+
		"[WRN] ACCOUNTS lockout disabled\n"+
		"[ERR] ACCOUNTS provider call operation=confirm attempt=2\n"+
		"[DBG] ACCOUNTS dangling key\n", out)
}

func TestNopLoggerSatisfiesLogger(t *testing.T) {
	var logger accounts.Logger = accounts.NopLogger{}
	out := captureStdout(t, func() {
		logger.Info("ignored", "k", "v")
	})
	assert.Empty(t, out)
}
