package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poet-chat/backend/internal/client"
	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
)

type scriptedChat struct{}

func (scriptedChat) Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	return chat.Turn{Role: chat.RoleAssistant, Content: "la mer, " + turns[len(turns)-1].Content}, nil
}

type scriptedSpeech struct{}

func (scriptedSpeech) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	return string(clip.Data), nil
}

func (scriptedSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte("mp3"), nil
}

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &cli{
		session:  client.NewSession("Whomp", scriptedChat{}, scriptedSpeech{}),
		speakDir: t.TempDir(),
		timeout:  time.Second,
		out:      out,
	}, out
}

func TestCLIConversation(t *testing.T) {
	c, out := newTestCLI(t)

	audio := filepath.Join(t.TempDir(), "clip.webm")
	require.NoError(t, os.WriteFile(audio, []byte("bonjour"), 0o644))

	c.run(strings.NewReader("Hello\n/record " + audio + "\n\n/speak\n/history\n/quit\nignored\n"))

	text := out.String()
	assert.Contains(t, text, "Whomp: la mer, Hello")
	assert.Contains(t, text, "transcribed: bonjour")
	assert.Contains(t, text, "Whomp: la mer, bonjour")
	assert.Contains(t, text, "user: Hello")
	assert.NotContains(t, text, "ignored")

	files, err := os.ReadDir(c.speakDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "assistant-"))

	assert.Len(t, c.session.Visible(), 4)
}

func TestClipFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.MP3")
	require.NoError(t, os.WriteFile(path, []byte("id3"), 0o644))

	clip, err := clipFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "voice.MP3", clip.Filename)
	assert.Equal(t, "audio/mpeg", clip.ContentType)
	assert.Equal(t, []byte("id3"), clip.Data)

	_, err = clipFromFile(filepath.Join(dir, "missing.webm"))
	assert.Error(t, err)
}
