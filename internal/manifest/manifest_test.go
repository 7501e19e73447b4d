package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xlog "transcode-session/internal/log"
)

const healthyPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-ALLOW-CACHE:NO
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-TARGETDURATION:2

#EXTINF:2.0,
0.ts
`

const brokenPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-TARGETDURATION:4294967

#EXTINF:2.0,
0.ts
`

func manySegments(n int) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:2\n")
	for i := range n {
		fmt.Fprintf(&b, "#EXTINF:2.0,\n%d.ts\n", i)
	}
	return b.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.m3u8")

	assert.False(t, Exists(path))
	assert.False(t, Exists(dir), "directories are not manifests")

	writeFile(t, path, healthyPlaylist)
	assert.True(t, Exists(path))
}

func TestLooksValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.m3u8")

	cases := []struct {
		name    string
		content string
		seg     int
		want    bool
	}{
		{"healthy", healthyPlaylist, 2, true},
		{"wrong expected duration", healthyPlaylist, 6, false},
		{"broken hardware decoder output", brokenPlaylist, 2, false},
		{"empty file", "", 2, false},
		{"crlf line endings", "#EXTM3U\r\n#EXT-X-TARGETDURATION:2\r\n", 2, true},
		{"tag prefix only", "#EXT-X-TARGETDURATION:20\n", 2, false},
		{"no target duration", "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:2.0,\n0.ts\n", 2, false},
		{"unparseable target duration", "#EXTM3U\n#EXT-X-TARGETDURATION:two\n", 2, false},
		{"many segments", manySegments(500), 2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writeFile(t, path, tc.content)
			assert.Equal(t, tc.want, LooksValid(path, tc.seg))
		})
	}
}

func TestLooksValidMissingFile(t *testing.T) {
	assert.False(t, LooksValid(filepath.Join(t.TempDir(), "nope.m3u8"), 2))
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.m3u8")

	assert.Equal(t, Missing, Inspect(path, 2))
	writeFile(t, path, brokenPlaylist)
	assert.Equal(t, Broken, Inspect(path, 2))
	writeFile(t, path, healthyPlaylist)
	assert.Equal(t, Valid, Inspect(path, 2))
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "manifest.m3u8"), healthyPlaylist)
	writeFile(t, filepath.Join(dir, "0.ts"), "x")
	writeFile(t, filepath.Join(dir, "1.ts"), "x")
	writeFile(t, filepath.Join(dir, "keep.txt"), "x")

	require.NoError(t, RemoveArtifacts(dir, "manifest.m3u8"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Name())

	// Second call on a clean directory is a no-op.
	require.NoError(t, RemoveArtifacts(dir, "manifest.m3u8"))
}

func TestMonitorWithoutWatcherAlwaysReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.m3u8")
	m := NewMonitor(path, 2, xlog.Nop())

	assert.Equal(t, Missing, m.Check())
	writeFile(t, path, healthyPlaylist)
	assert.Equal(t, Valid, m.Check())
	require.NoError(t, m.Close())
}

func TestMonitorWatcherPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.m3u8")
	m := NewMonitor(path, 2, xlog.Nop())
	require.NoError(t, m.Watch())
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, Missing, m.Check())

	writeFile(t, path, brokenPlaylist)
	require.Eventually(t, func() bool { return m.Check() == Broken }, 2*time.Second, 10*time.Millisecond)

	writeFile(t, path, healthyPlaylist)
	require.Eventually(t, func() bool { return m.Check() == Valid }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	m.Invalidate()
	assert.Equal(t, Missing, m.Check())
}

func TestMonitorWatchMissingDirectory(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "absent", "manifest.m3u8"), 2, xlog.Nop())
	assert.Error(t, m.Watch())
	assert.NoError(t, m.Close())
}
