package fs

import (
	"context"
	"os"
)

// wraps os.Remove with retry logic.

func removeWithRetry(ctx context.Context, path string) error {
	return retry(ctx, "remove", func() error {
		return os.Remove(path)
	})
}
