package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-vision/pace"
	"github.com/nijaru/yt-vision/tools"
)

type gitRecorder struct {
	mu       sync.Mutex
	commands []string
	pushFail int
	status   string
}

func (r *gitRecorder) run(ctx context.Context, dir, name string, args ...string) (tools.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := strings.Join(args, " ")
	r.commands = append(r.commands, cmd)

	switch {
	case args[0] == "clone":
		return tools.Output{}, os.MkdirAll(filepath.Join(args[2], ".git"), 0o755)
	case args[0] == "status":
		return tools.Output{Stdout: []byte(r.status)}, nil
	case args[0] == "push":
		if r.pushFail > 0 {
			r.pushFail--
			return tools.Output{}, &tools.Error{Tool: name, Err: errors.New("exit status 1"), Output: "! [rejected] HEAD -> main (fetch first)"}
		}
	}
	return tools.Output{}, nil
}

func (r *gitRecorder) has(prefix string) int {
	n := 0
	for _, c := range r.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newTestGitStore(t *testing.T, rec *gitRecorder, clock pace.Clock) *GitStore {
	t.Helper()
	g := NewGitStore(GitConfig{
		Binary:    "git",
		RepoURL:   "https://github.com/example/video-frames.git",
		LocalPath: filepath.Join(t.TempDir(), "video-frames"),
		Branch:    "main",
		Prefix:    "video-frames/frames",
		BaseURL:   "https://raw.githubusercontent.com/example/video-frames/main/",
	})
	g.Run = rec.run
	g.Clock = clock
	return g
}

func writeFrames(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i := 1; i <= n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i))
		require.NoError(t, os.WriteFile(p, []byte{byte(i)}, 0o644))
		files = append(files, p)
	}
	return files
}

func TestGitStoreEnsureClonesOnce(t *testing.T) {
	rec := &gitRecorder{}
	g := newTestGitStore(t, rec, pace.NewFakeClock(time.Unix(0, 0)))

	require.NoError(t, g.Ensure(context.Background()))
	require.NoError(t, g.Ensure(context.Background()))
	assert.Equal(t, 1, rec.has("clone"))
}

func TestGitStorePutCopiesCommitsAndPushes(t *testing.T) {
	rec := &gitRecorder{status: "A  video-frames/frames/task-1/frame_000001.png\n"}
	g := newTestGitStore(t, rec, pace.NewFakeClock(time.Unix(0, 0)))
	require.NoError(t, g.Ensure(context.Background()))

	files := writeFrames(t, 2)
	keys, err := g.Put(context.Background(), "task-1", files)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"video-frames/frames/task-1/frame_000001.png",
		"video-frames/frames/task-1/frame_000002.png",
	}, keys)
	for _, k := range keys {
		_, err := os.Stat(filepath.Join(g.LocalPath, filepath.FromSlash(k)))
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, rec.has("add"))
	assert.Equal(t, 1, rec.has("-c user.name=yt-vision -c user.email=yt-vision@localhost commit"))
	assert.Equal(t, 1, rec.has("push origin HEAD:main"))

	assert.Equal(t,
		"https://raw.githubusercontent.com/example/video-frames/main/video-frames/frames/task-1/frame_000001.png",
		g.URL(keys[0]))
}

func TestGitStoreSkipsEmptyCommit(t *testing.T) {
	rec := &gitRecorder{}
	g := newTestGitStore(t, rec, pace.NewFakeClock(time.Unix(0, 0)))
	require.NoError(t, g.Ensure(context.Background()))

	_, err := g.Put(context.Background(), "task-1", writeFrames(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.has("-c"))
}

func TestGitStoreRetriesRejectedPush(t *testing.T) {
	rec := &gitRecorder{status: "A x\n", pushFail: 2}
	clock := pace.NewFakeClock(time.Unix(0, 0))
	g := newTestGitStore(t, rec, clock)
	require.NoError(t, g.Ensure(context.Background()))

	_, err := g.Put(context.Background(), "task-1", writeFrames(t, 1))
	require.NoError(t, err)

	assert.Equal(t, 3, rec.has("push"))
	assert.Equal(t, 2, rec.has("pull --rebase origin main"))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestGitStorePushGivesUp(t *testing.T) {
	rec := &gitRecorder{status: "A x\n", pushFail: 10}
	clock := pace.NewFakeClock(time.Unix(0, 0))
	g := newTestGitStore(t, rec, clock)
	require.NoError(t, g.Ensure(context.Background()))

	_, err := g.Put(context.Background(), "task-1", writeFrames(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, rec.has("push"))
}
