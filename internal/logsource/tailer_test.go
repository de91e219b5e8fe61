package logsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(path string) Config {
	cfg := DefaultConfig(path)
	cfg.PollInterval = 20 * time.Millisecond
	cfg.RetryBaseDelay = 10 * time.Millisecond
	cfg.RetryMaxDelay = 50 * time.Millisecond
	return cfg
}

func startTailer(t *testing.T, cfg Config, offset int64, status StatusFunc) *Tailer {
	t.Helper()
	tailer := New(cfg, offset, status, nil)
	require.NoError(t, tailer.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tailer.Stop(ctx)
	})
	return tailer
}

func collectLines(t *testing.T, tailer *Tailer, n int) []Line {
	t.Helper()
	var out []Line
	deadline := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case line, ok := <-tailer.Lines():
			if !ok {
				t.Fatalf("lines channel closed after %d of %d lines", len(out), n)
			}
			out = append(out, line)
		case <-deadline:
			t.Fatalf("timed out after %d of %d lines", len(out), n)
		}
	}
	return out
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestEmitsCompleteLinesWithOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "alpha\nbeta\n")

	tailer := startTailer(t, testConfig(path), 0, nil)
	lines := collectLines(t, tailer, 2)

	assert.Equal(t, "alpha", lines[0].Text)
	assert.Equal(t, int64(6), lines[0].Offset)
	assert.Equal(t, "beta", lines[1].Text)
	assert.Equal(t, int64(11), lines[1].Offset)
}

func TestPartialLineHeldUntilComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "alpha\npart")

	tailer := startTailer(t, testConfig(path), 0, nil)
	lines := collectLines(t, tailer, 1)
	assert.Equal(t, "alpha", lines[0].Text)

	// No truncated emission while the writer is mid-line.
	select {
	case line := <-tailer.Lines():
		t.Fatalf("unexpected line %q", line.Text)
	case <-time.After(100 * time.Millisecond):
	}

	appendFile(t, path, "ial\n")
	lines = collectLines(t, tailer, 1)
	assert.Equal(t, "partial", lines[0].Text)
}

func TestResumesFromPersistedOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "old-one\nold-two\nnew\n")

	// Resume just past "old-one\nold-two\n" (16 bytes).
	tailer := startTailer(t, testConfig(path), 16, nil)
	lines := collectLines(t, tailer, 1)
	assert.Equal(t, "new", lines[0].Text)
	assert.Equal(t, int64(20), lines[0].Offset)
}

func TestCRLFStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "alpha\r\nbeta\r\n")

	tailer := startTailer(t, testConfig(path), 0, nil)
	lines := collectLines(t, tailer, 2)
	assert.Equal(t, "alpha", lines[0].Text)
	assert.Equal(t, "beta", lines[1].Text)
}

func TestTailPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "first\n")

	tailer := startTailer(t, testConfig(path), 0, nil)
	collectLines(t, tailer, 1)

	appendFile(t, path, "second\n")
	lines := collectLines(t, tailer, 1)
	assert.Equal(t, "second", lines[0].Text)
}

func TestTruncationRestartsFromZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "before-one\nbefore-two\n")

	tailer := startTailer(t, testConfig(path), 0, nil)
	collectLines(t, tailer, 2)

	// Truncate to zero and rewrite: classic in-place rotation.
	require.NoError(t, os.WriteFile(path, []byte("after\n"), 0o644))

	lines := collectLines(t, tailer, 1)
	assert.Equal(t, "after", lines[0].Text)
	assert.Equal(t, int64(6), lines[0].Offset, "offsets restart at zero after rotation")
	assert.GreaterOrEqual(t, tailer.Stats().Rotations, int64(1))
}

func TestRotationByReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.txt")
	appendFile(t, path, "old\n")

	tailer := startTailer(t, testConfig(path), 0, nil)
	collectLines(t, tailer, 1)

	// Replace the file wholesale (rename-in rotation).
	side := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(side, []byte("fresh\n"), 0o644))
	require.NoError(t, os.Rename(side, path))

	lines := collectLines(t, tailer, 1)
	assert.Equal(t, "fresh", lines[0].Text)
}

func TestMissingFileRetriesUntilCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.txt")

	tailer := startTailer(t, testConfig(path), 0, nil)

	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "born\n")

	lines := collectLines(t, tailer, 1)
	assert.Equal(t, "born", lines[0].Text)
}

func TestUnavailableStatusReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.txt")

	statusCh := make(chan bool, 8)
	cfg := testConfig(path)
	cfg.UnavailableAfter = 30 * time.Millisecond

	startTailer(t, cfg, 0, func(available bool) { statusCh <- available })

	select {
	case available := <-statusCh:
		assert.False(t, available)
	case <-time.After(2 * time.Second):
		t.Fatal("no unavailable status reported")
	}

	appendFile(t, path, "back\n")
	select {
	case available := <-statusCh:
		assert.True(t, available)
	case <-time.After(2 * time.Second):
		t.Fatal("no recovery status reported")
	}
}

func TestStopClosesLinesChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.txt")
	appendFile(t, path, "x\n")

	tailer := New(testConfig(path), 0, nil, nil)
	require.NoError(t, tailer.Start(context.Background()))
	collectLines(t, tailer, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tailer.Stop(ctx))

	_, ok := <-tailer.Lines()
	assert.False(t, ok)
}
