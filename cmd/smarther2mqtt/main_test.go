package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"smarther2mqtt/config"
	"smarther2mqtt/internal/logging"
	"smarther2mqtt/internal/metrics"
	"smarther2mqtt/internal/storage"
	"smarther2mqtt/internal/storage/sqlite"
	"smarther2mqtt/internal/thermostat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRecorder(t *testing.T) {
	journal, err := sqlite.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer journal.Close()

	recorder := &commandRecorder{
		journal: journal,
		metrics: metrics.New(),
		homeID:  "home-1",
		roomID:  "room-1",
		logger:  logging.Discard(),
	}

	temp := 21.0
	mode := thermostat.ModeManual
	recorder.RecordSend(context.Background(), thermostat.Command{Temperature: &temp, Mode: &mode}, nil)
	recorder.RecordSend(context.Background(), thermostat.Command{Mode: &mode}, errors.New("provider unavailable"))

	entries, err := journal.ListCommands(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	statuses := map[string]*storage.JournalEntry{}
	for _, e := range entries {
		statuses[e.Status] = e
	}
	require.Contains(t, statuses, storage.StatusSent)
	require.Contains(t, statuses, storage.StatusFailed)
	assert.Equal(t, 21.0, *statuses[storage.StatusSent].Temperature)
	assert.Equal(t, "manual", statuses[storage.StatusSent].Mode)
	assert.Equal(t, "provider unavailable", statuses[storage.StatusFailed].Error)
	assert.Equal(t, "home-1", statuses[storage.StatusFailed].HomeID)
}

func TestCommandRecorder_NoJournal(t *testing.T) {
	recorder := &commandRecorder{metrics: metrics.New(), logger: logging.Discard()}
	mode := thermostat.ModeHome
	assert.NotPanics(t, func() {
		recorder.RecordSend(context.Background(), thermostat.Command{Mode: &mode}, nil)
	})
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "abcd...wxyz", mask("abcdefghijklmnopqrstuvwxyz"))
}

func writeSettings(t *testing.T, tokenFile string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `netatmo:
  clientid: id
  clientsecret: secret
  homeid: home-1
  roomid: room-1
  token_file: ` + tokenFile + `
mqtt:
  broker:
    ipaddress: 127.0.0.1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTokenShow(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(tokenFile,
		[]byte(`{"access_token":"access-0123456789","refresh_token":"refresh-0123456789","expires_in":10800}`), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "show", "--config", writeSettings(t, tokenFile)})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "acce...6789")
	assert.Contains(t, out.String(), "3h0m0s")
	assert.NotContains(t, out.String(), "access-0123456789")
}

func TestTokenShow_NoToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "missing.json")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "show", "--config", writeSettings(t, tokenFile)})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "No token stored")
}

func TestBusRegistry(t *testing.T) {
	registry, err := busRegistry(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{config.BusMQTT, config.BusNATS}, registry.List())
}
