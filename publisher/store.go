package publisher

import (
	"context"
	"path"
	"path/filepath"
	"strings"
)

// Store is a remote location frames can be written to and addressed by URL.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Remote identifies the shared remote. Writes to the same remote are
	// serialized across tasks.
	Remote() string

	// Ensure prepares the remote on first use.
	Ensure(ctx context.Context) error

	// Put uploads files under namespace and returns one key per file in
	// input order.
	Put(ctx context.Context, namespace string, files []string) ([]string, error)

	URL(key string) string
}

func objectKey(prefix, namespace, file string) string {
	return path.Join(strings.Trim(prefix, "/"), namespace, filepath.Base(file))
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
