package publisher

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-vision/pace"
	"github.com/nijaru/yt-vision/tools"
)

const (
	defaultPushAttempts = 3
	defaultPushBackoff  = 2 * time.Second
	maxPushBackoff      = 30 * time.Second
)

// GitStore publishes frames by committing them to a clone of a remote
// repository and pushing. URLs are formed from a raw-content base URL.
type GitStore struct {
	Binary    string
	RepoURL   string
	LocalPath string
	Branch    string
	Prefix    string
	BaseURL   string

	AuthorName  string
	AuthorEmail string

	PushAttempts int
	PushBackoff  time.Duration

	Run   tools.RunFunc
	Clock pace.Clock
}

type GitConfig struct {
	Binary    string
	RepoURL   string
	LocalPath string
	Branch    string
	Prefix    string
	BaseURL   string
}

func NewGitStore(cfg GitConfig) *GitStore {
	return &GitStore{
		Binary:       cfg.Binary,
		RepoURL:      cfg.RepoURL,
		LocalPath:    cfg.LocalPath,
		Branch:       cfg.Branch,
		Prefix:       cfg.Prefix,
		BaseURL:      cfg.BaseURL,
		AuthorName:   "yt-vision",
		AuthorEmail:  "yt-vision@localhost",
		PushAttempts: defaultPushAttempts,
		PushBackoff:  defaultPushBackoff,
		Run:          tools.Run,
		Clock:        pace.RealClock{},
	}
}

func (g *GitStore) Name() string   { return "git" }
func (g *GitStore) Remote() string { return g.RepoURL }

func (g *GitStore) URL(key string) string {
	return joinURL(g.BaseURL, key)
}

// Ensure clones the repository when the local copy does not exist yet.
func (g *GitStore) Ensure(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(g.LocalPath, ".git")); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "stat local repository")
	}

	if err := os.MkdirAll(filepath.Dir(g.LocalPath), 0o755); err != nil {
		return errors.Wrap(err, "create repository parent directory")
	}

	logrus.WithFields(logrus.Fields{
		"remote": g.RepoURL,
		"path":   g.LocalPath,
	}).Info("Cloning frames repository")
	if _, err := g.Run(ctx, "", g.Binary, "clone", g.RepoURL, g.LocalPath); err != nil {
		return errors.Wrap(err, "clone frames repository")
	}
	return nil
}

func (g *GitStore) Put(ctx context.Context, namespace string, files []string) ([]string, error) {
	rel := filepath.Join(filepath.FromSlash(strings.Trim(g.Prefix, "/")), namespace)
	dest := filepath.Join(g.LocalPath, rel)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, errors.Wrap(err, "create frames directory in repository")
	}

	keys := make([]string, len(files))
	for i, f := range files {
		if err := copyFile(f, filepath.Join(dest, filepath.Base(f))); err != nil {
			return nil, err
		}
		keys[i] = objectKey(g.Prefix, namespace, f)
	}

	if _, err := g.git(ctx, "add", "--", rel); err != nil {
		return nil, errors.Wrap(err, "stage frames")
	}

	status, err := g.git(ctx, "status", "--porcelain", "--", rel)
	if err != nil {
		return nil, errors.Wrap(err, "inspect repository status")
	}
	if strings.TrimSpace(string(status.Stdout)) == "" {
		logrus.WithField("namespace", namespace).Info("Frames already committed, skipping commit")
	} else {
		_, err = g.git(ctx,
			"-c", "user.name="+g.AuthorName,
			"-c", "user.email="+g.AuthorEmail,
			"commit", "-m", "Add frames "+namespace,
		)
		if err != nil {
			return nil, errors.Wrap(err, "commit frames")
		}
	}

	if err := g.push(ctx); err != nil {
		return nil, err
	}
	return keys, nil
}

// push retries a rejected push after rebasing onto the remote branch.
func (g *GitStore) push(ctx context.Context) error {
	attempts := g.PushAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err = g.git(ctx, "push", "origin", "HEAD:"+g.Branch)
		if err == nil {
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"attempt":     attempt,
			"maxAttempts": attempts,
			"remote":      g.RepoURL,
			"error":       err,
		}).Warn("Push to frames repository failed")

		if attempt == attempts {
			break
		}

		if _, perr := g.git(ctx, "pull", "--rebase", "origin", g.Branch); perr != nil {
			logrus.WithError(perr).Warn("Rebase onto remote branch failed")
		}

		backoff := time.Duration(float64(g.PushBackoff) * math.Pow(2, float64(attempt-1)))
		if backoff > maxPushBackoff {
			backoff = maxPushBackoff
		}
		if serr := g.Clock.Sleep(ctx, backoff); serr != nil {
			return errors.Wrap(serr, "push cancelled")
		}
	}
	return errors.Wrapf(err, "push frames after %d attempts", attempts)
}

func (g *GitStore) git(ctx context.Context, args ...string) (tools.Output, error) {
	return g.Run(ctx, g.LocalPath, g.Binary, args...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open frame")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "create frame copy")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "copy frame")
	}
	return errors.Wrap(out.Close(), "close frame copy")
}
