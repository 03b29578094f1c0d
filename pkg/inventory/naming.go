package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"
)

// DefaultNameProbeLimit bounds how many numbered candidates are tried.
const DefaultNameProbeLimit = 1000

var numberedSuffix = regexp.MustCompile(`^(.*) \((\d+)\)$`)

type nameLookup interface {
	FindByNameAndParent(ctx context.Context, name string, parentID *string) (*Asset, error)
}

// NamePolicy resolves sibling-name collisions.
type NamePolicy struct {
	MaxAttempts int
	Now         func() time.Time
	Logger      *slog.Logger
}

// DefaultNamePolicy returns a policy with the default probe bound.
func DefaultNamePolicy() NamePolicy {
	return NamePolicy{MaxAttempts: DefaultNameProbeLimit, Now: time.Now, Logger: slog.Default()}
}

func (p NamePolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultNameProbeLimit
	}
	return p.MaxAttempts
}

func (p NamePolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p NamePolicy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func nameTaken(ctx context.Context, store nameLookup, name string, parentID *string) (bool, error) {
	existing, err := store.FindByNameAndParent(ctx, name, parentID)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// ResolveUnique returns candidate if no sibling under parentID uses it.
// Otherwise it probes "<base> (k)", continuing from an existing numeric
// suffix when candidate already has one. When the probe bound is exhausted a
// timestamp suffix is used.
func (p NamePolicy) ResolveUnique(ctx context.Context, store nameLookup, candidate string, parentID *string) (string, error) {
	taken, err := nameTaken(ctx, store, candidate, parentID)
	if err != nil {
		return "", fmt.Errorf("resolve name: %w", err)
	}
	if !taken {
		return candidate, nil
	}

	base, next := candidate, 2
	if m := numberedSuffix.FindStringSubmatch(candidate); m != nil {
		if n, convErr := strconv.Atoi(m[2]); convErr == nil {
			base, next = m[1], n+1
		}
	}

	for i := 0; i < p.maxAttempts(); i++ {
		name := fmt.Sprintf("%s (%d)", base, next+i)
		taken, err := nameTaken(ctx, store, name, parentID)
		if err != nil {
			return "", fmt.Errorf("resolve name: %w", err)
		}
		if !taken {
			return name, nil
		}
	}

	fallback := fmt.Sprintf("%s (%d)", base, p.now().Unix())
	p.logger().Warn("name probe exhausted, using timestamp suffix",
		"candidate", candidate, "attempts", p.maxAttempts(), "name", fallback)
	return fallback, nil
}

// ResolveCopyName probes candidate, then "<candidate> (k)" for k = 2, 3, ...
// It fails with ErrInvalidOperation once the probe bound is exhausted.
func (p NamePolicy) ResolveCopyName(ctx context.Context, store nameLookup, candidate string, parentID *string) (string, error) {
	taken, err := nameTaken(ctx, store, candidate, parentID)
	if err != nil {
		return "", fmt.Errorf("resolve copy name: %w", err)
	}
	if !taken {
		return candidate, nil
	}
	for k := 2; k < 2+p.maxAttempts(); k++ {
		name := fmt.Sprintf("%s (%d)", candidate, k)
		taken, err := nameTaken(ctx, store, name, parentID)
		if err != nil {
			return "", fmt.Errorf("resolve copy name: %w", err)
		}
		if !taken {
			return name, nil
		}
	}
	return "", invalidf("no free name for %q after %d attempts", candidate, p.maxAttempts())
}
