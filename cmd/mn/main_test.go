package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/mailnudge/internal/types"
)

func runCLI(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), "mn %v: %s", args, out.String())
	return out.Bytes()
}

func TestEnsureGitignore(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("bin/"), 0o644))

	require.NoError(t, ensureGitignore(root))
	require.NoError(t, ensureGitignore(root))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bin/\n\n# Mailnudge database and config (may hold credentials)\n.mailnudge/\n", string(data))
}

func TestIngestTestModeEndToEnd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	t.Chdir(root)

	runCLI(t, "init", "--quiet")
	assert.FileExists(t, filepath.Join(root, ".mailnudge", "mail.db"))
	assert.FileExists(t, filepath.Join(root, ".mailnudge", "config.yaml"))

	var first types.IngestSummary
	require.NoError(t, json.Unmarshal(runCLI(t, "ingest", "--test", "--json"), &first))
	assert.Equal(t, 1, first.Processed)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, types.KindAddNudge, first.Messages[0].Command)

	var second types.IngestSummary
	require.NoError(t, json.Unmarshal(runCLI(t, "ingest", "--test", "--json"), &second))
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Skipped)

	var reminders []types.Reminder
	require.NoError(t, json.Unmarshal(runCLI(t, "nudge", "list", "--json", "--status", "all"), &reminders))
	require.Len(t, reminders, 1)
	assert.Equal(t, "Print CO2 car rubrics tomorrow at 7:15am", reminders[0].Content)
	assert.Equal(t, types.SourceEmail, reminders[0].Source)
	assert.NotNil(t, reminders[0].DueAt)

	var recs []types.IngestRecord
	require.NoError(t, json.Unmarshal(runCLI(t, "log", "ingest", "--json"), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "<mock1@example.com>", recs[0].MessageID)
}

func TestPrintIngestSummary_WritesToOneWriter(t *testing.T) {
	var out bytes.Buffer
	printIngestSummary(&out, &types.IngestSummary{
		RunID:     "0123456789abcdef",
		Seen:      2,
		Processed: 1,
		Skipped:   1,
		Messages: []types.MessageOutcome{
			{MessageID: "<a@mail>", Subject: "NOTE: keep", Command: types.KindNote, Status: types.IngestProcessed},
			{MessageID: "<b@mail>", Subject: "TODAY?", Command: types.KindToday, Status: "skipped", Detail: "already processed"},
		},
	})

	got := out.String()
	assert.Contains(t, got, "Ingest run 01234567")
	assert.Contains(t, got, "NOTE: keep")
	assert.Contains(t, got, "already processed")
	assert.Contains(t, got, "1 processed, 0 errored, 1 skipped")
}
