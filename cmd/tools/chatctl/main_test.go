package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/export"
	"github.com/zhouzirui/compeq-chat/backend/internal/storage"
)

func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	conv, err := chatservice.NewService(storage.NewFileStore(dir), nil).Open(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, conv.Append(ctx, conv.Active(), chat.Turn{Question: "q1", Answer: "a1"}))
	require.NoError(t, conv.Create(ctx, "工作"))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHAT_CONFIG_FILE", "")
	t.Setenv("STORE_BACKEND", "file")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSessionsListsSortedNamesWithCounts(t *testing.T) {
	dir := seedStore(t)

	out, err := run(t, "sessions", "--user", "alice", "--dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Sessions of alice")
	assert.Contains(t, out, "預設對話")
	assert.Contains(t, out, "1 turns")
	assert.Less(t, strings.Index(out, "工作"), strings.Index(out, "預設對話"))
}

func TestExportToStdout(t *testing.T) {
	dir := seedStore(t)

	out, err := run(t, "export", "--user", "alice", "--dir", dir, "--session", "預設對話", "--out", "-")
	require.NoError(t, err)
	assert.Equal(t, "你：q1\nGPT：a1", out)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	dir := seedStore(t)

	_, err := run(t, "export", "--user", "alice", "--dir", dir, "--format", "pdf", "--out", "-")
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
}

func TestUserFlagRequired(t *testing.T) {
	_, err := run(t, "sessions")
	assert.Error(t, err)
}
