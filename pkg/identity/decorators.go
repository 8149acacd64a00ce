package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitedDirectory waits on a limiter before every call to the
// underlying directory. Calls are still made one at a time by the caller;
// the limiter caps how fast that sequence may run.
type RateLimitedDirectory struct {
	dir     Directory
	limiter *rate.Limiter
}

var _ Directory = &RateLimitedDirectory{}

// NewRateLimitedDirectory limits dir to qps calls per second. A qps of 0
// or less returns dir unchanged.
func NewRateLimitedDirectory(dir Directory, qps float64) Directory {
	if qps <= 0 {
		return dir
	}
	return &RateLimitedDirectory{dir: dir, limiter: rate.NewLimiter(rate.Limit(qps), 1)}
}

func (d *RateLimitedDirectory) List(ctx context.Context) ([]Account, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return d.dir.List(ctx)
}

func (d *RateLimitedDirectory) LookupByEmail(ctx context.Context, email string) (Account, bool, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return Account{}, false, err
	}
	return d.dir.LookupByEmail(ctx, email)
}

func (d *RateLimitedDirectory) Create(ctx context.Context, a NewAccount) (Account, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return Account{}, err
	}
	return d.dir.Create(ctx, a)
}

// DryRunDirectory reads from the underlying directory but only logs
// creates, returning a placeholder id so dependent rows can still be
// resolved and logged.
type DryRunDirectory struct {
	Directory
}

// NewDryRunDirectory wraps dir
func NewDryRunDirectory(dir Directory) *DryRunDirectory {
	return &DryRunDirectory{Directory: dir}
}

func (d *DryRunDirectory) Create(_ context.Context, a NewAccount) (Account, error) {
	if a.Email == "" {
		return Account{}, ErrEmailRequired
	}
	acct := Account{ID: "dry-run-" + uuid.NewString(), Email: NormalizeEmail(a.Email), DisplayName: a.DisplayName}
	log.Info().Str("email", acct.Email).Str("display_name", acct.DisplayName).Msg("account create skipped")
	return acct, nil
}
