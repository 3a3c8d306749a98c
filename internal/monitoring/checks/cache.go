package checks

import (
	"context"
	"errors"

	"github.com/charlesng35/partyfinder/internal/monitoring"
)

// Pinger is satisfied by cache.RedisStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache probes the shared cache. A nil pinger means the database-backed
// fallback is in use, which the database probe already covers.
func Cache(pinger Pinger) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) error {
		if pinger == nil {
			return nil
		}
		if err := pinger.Ping(ctx); err != nil {
			return errors.Join(errors.New("redis unreachable"), err)
		}
		return nil
	})
}
