package keyword

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/ColonelBlimp/clapdetector/internal/cache"
)

// PruneCache removes cached spectra whose template file no longer exists.
// It returns the number of entries removed.
func PruneCache(ctx context.Context, store cache.Store) (int, error) {
	keys, err := store.Keys(ctx, cache.Key{"spectrum"})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, k := range keys {
		if len(k) < 2 {
			continue
		}
		// Paths may contain the separator; rejoin everything after the namespace.
		path := strings.Join(k[1:], cache.Separator)
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := store.Delete(ctx, k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
