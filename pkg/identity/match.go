package identity

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Matcher finds the existing account for an email, ignoring case
type Matcher interface {
	Match(ctx context.Context, email string) (Account, bool, error)
	// Remember records an account created during this run
	Remember(a Account)
}

// Match strategies
const (
	MatchIndex  = "index"
	MatchLookup = "lookup"
)

// NewMatcher builds the matcher for strategy
func NewMatcher(ctx context.Context, strategy string, dir Directory, cacheSize int) (Matcher, error) {
	switch strategy {
	case "", MatchIndex:
		return NewIndexMatcher(ctx, dir)
	case MatchLookup:
		return NewLookupMatcher(dir, cacheSize)
	default:
		return nil, fmt.Errorf("unknown account match strategy %q", strategy)
	}
}

// IndexMatcher lists every account once and matches from memory
type IndexMatcher struct {
	byEmail map[string]Account
}

// NewIndexMatcher lists all accounts in dir
func NewIndexMatcher(ctx context.Context, dir Directory) (*IndexMatcher, error) {
	accounts, err := dir.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	m := &IndexMatcher{byEmail: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if a.Email == "" {
			continue
		}
		m.Remember(a)
	}
	log.Info().Int("accounts", len(m.byEmail)).Msg("indexed existing accounts")
	return m, nil
}

func (m *IndexMatcher) Match(_ context.Context, email string) (Account, bool, error) {
	a, ok := m.byEmail[NormalizeEmail(email)]
	return a, ok, nil
}

func (m *IndexMatcher) Remember(a Account) {
	m.byEmail[NormalizeEmail(a.Email)] = a
}

// LookupMatcher asks the directory per email and keeps recent answers in
// an LRU cache. Only hits are cached.
type LookupMatcher struct {
	dir   Directory
	cache *lru.Cache[string, Account]
}

// NewLookupMatcher returns a matcher caching up to size hits
func NewLookupMatcher(dir Directory, size int) (*LookupMatcher, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, Account](size)
	if err != nil {
		return nil, err
	}
	return &LookupMatcher{dir: dir, cache: cache}, nil
}

func (m *LookupMatcher) Match(ctx context.Context, email string) (Account, bool, error) {
	email = NormalizeEmail(email)
	if a, ok := m.cache.Get(email); ok {
		return a, true, nil
	}
	a, ok, err := m.dir.LookupByEmail(ctx, email)
	if err != nil || !ok {
		return Account{}, false, err
	}
	m.cache.Add(email, a)
	return a, true, nil
}

func (m *LookupMatcher) Remember(a Account) {
	m.cache.Add(NormalizeEmail(a.Email), a)
}
