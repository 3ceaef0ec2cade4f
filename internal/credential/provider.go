// Package credential produces OAuth credentials for the Drive account: it
// reuses a persisted token while valid, refreshes it when expired, and falls
// back to interactive authorization when nothing usable is stored.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/tokenfile"
)

// acquireTimeout bounds a shared refresh or authorization once every caller
// waiting on it has gone away.
const acquireTimeout = 5 * time.Minute

// ErrAuth is gdrive.ErrAuth, re-exported so callers of this package need not
// import gdrive to test for it.
var ErrAuth = gdrive.ErrAuth

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
}

// Authorizer obtains a brand-new credential from the account owner.
type Authorizer interface {
	Authorize(ctx context.Context) (*oauth2.Token, error)
}

// Options configure a Provider.
type Options struct {
	Store    *tokenfile.Store
	Identity string
	Scopes   []string

	Refresher Refresher
	// Authorizer is nil in non-interactive mode; Obtain then fails with
	// ErrAuth instead of prompting.
	Authorizer Authorizer

	Logger *slog.Logger
}

// Provider hands out credentials for one application identity.
type Provider struct {
	store      *tokenfile.Store
	identity   string
	scopes     []string
	refresher  Refresher
	authorizer Authorizer
	logger     *slog.Logger

	group     singleflight.Group
	persistMu sync.Mutex
}

// NewProvider validates opts and returns a Provider.
func NewProvider(opts Options) (*Provider, error) {
	if opts.Store == nil {
		return nil, errors.New("credential: token store is required")
	}

	if opts.Identity == "" {
		return nil, errors.New("credential: identity is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		store:      opts.Store,
		identity:   opts.Identity,
		scopes:     slices.Clone(opts.Scopes),
		refresher:  opts.Refresher,
		authorizer: opts.Authorizer,
		logger:     logger,
	}, nil
}

// Identity returns the application identity the provider persists under.
func (p *Provider) Identity() string {
	return p.identity
}

// Interactive reports whether an Authorizer is configured.
func (p *Provider) Interactive() bool {
	return p.authorizer != nil
}

// Obtain returns a valid credential. A stored unexpired credential is
// returned without any network call. Concurrent callers share one in-flight
// refresh or authorization; a caller whose ctx ends stops waiting without
// cancelling the shared attempt for the others.
func (p *Provider) Obtain(ctx context.Context) (*oauth2.Token, error) {
	if tok, ok := p.usable(); ok {
		return tok, nil
	}

	ch := p.group.DoChan(p.identity, func() (any, error) {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), acquireTimeout)
		defer cancel()

		return p.acquire(actx)
	})

	var res singleflight.Result

	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.Err != nil {
		return nil, res.Err
	}

	if res.Shared {
		p.logger.Debug("shared in-flight credential acquisition", slog.String("identity", p.identity))
	}

	tok, ok := res.Val.(*oauth2.Token)
	if !ok {
		return nil, fmt.Errorf("credential: unexpected result type %T", res.Val)
	}

	return tok, nil
}

// acquire runs at most once per identity at a time.
func (p *Provider) acquire(ctx context.Context) (*oauth2.Token, error) {
	// Another caller may have persisted a fresh credential while we waited.
	if tok, ok := p.usable(); ok {
		return tok, nil
	}

	stored, err := p.load()
	if err != nil {
		return nil, err
	}

	if stored != nil && stored.RefreshToken != "" && p.refresher != nil {
		tok, refreshErr := p.refresh(ctx, stored)
		if refreshErr == nil {
			return tok, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		p.logger.Warn("token refresh failed, falling back to authorization",
			slog.String("identity", p.identity),
			slog.String("error", refreshErr.Error()),
		)
	}

	return p.authorize(ctx)
}

// usable returns the stored credential when it is unexpired and was granted
// for the configured scopes.
func (p *Provider) usable() (*oauth2.Token, bool) {
	tok, err := p.load()
	if err != nil || tok == nil {
		return nil, false
	}

	return tok, tok.Valid()
}

// load returns the stored credential, or nil when none exists or it was
// granted for different scopes.
func (p *Provider) load() (*oauth2.Token, error) {
	f, err := p.store.Load(p.identity)
	if err != nil {
		p.logger.Warn("ignoring unreadable token file",
			slog.String("path", p.store.Path(p.identity)),
			slog.String("error", err.Error()),
		)

		return nil, nil //nolint:nilnil // unreadable counts as absent
	}

	if f == nil {
		return nil, nil //nolint:nilnil // nothing stored yet
	}

	if !sameScopes(f.Scopes, p.scopes) {
		p.logger.Info("stored token scopes differ from configuration, re-authorization required",
			slog.Any("stored", f.Scopes),
			slog.Any("configured", p.scopes),
		)

		return nil, nil //nolint:nilnil // scope change invalidates the token
	}

	return f.Token, nil
}

func (p *Provider) refresh(ctx context.Context, stored *oauth2.Token) (*oauth2.Token, error) {
	p.logger.Info("refreshing expired token",
		slog.String("identity", p.identity),
		slog.Time("expired_at", stored.Expiry),
	)

	tok, err := p.refresher.Refresh(ctx, stored)
	if err != nil {
		return nil, err
	}

	// Google omits the refresh token from refresh responses.
	if tok.RefreshToken == "" {
		tok.RefreshToken = stored.RefreshToken
	}

	if err := p.persist(tok); err != nil {
		return nil, err
	}

	return tok, nil
}

func (p *Provider) authorize(ctx context.Context) (*oauth2.Token, error) {
	if p.authorizer == nil {
		return nil, fmt.Errorf("credential: no usable token for %q and interactive authorization is unavailable (run login): %w",
			p.identity, ErrAuth)
	}

	p.logger.Info("starting interactive authorization", slog.String("identity", p.identity))

	tok, err := p.authorizer.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential: authorization failed: %w: %w", ErrAuth, err)
	}

	if err := p.persist(tok); err != nil {
		return nil, err
	}

	return tok, nil
}

func (p *Provider) persist(tok *oauth2.Token) error {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	if err := p.store.Save(p.identity, tok, p.scopes); err != nil {
		return fmt.Errorf("credential: persisting token: %w", err)
	}

	p.logger.Info("token saved",
		slog.String("path", p.store.Path(p.identity)),
		slog.Time("expiry", tok.Expiry),
	)

	return nil
}

// Authorize always runs interactive authorization and persists the result,
// replacing any stored credential. Used by the login command.
func (p *Provider) Authorize(ctx context.Context) (*oauth2.Token, error) {
	v, err, _ := p.group.Do(p.identity, func() (any, error) {
		return p.authorize(ctx)
	})
	if err != nil {
		return nil, err
	}

	tok, ok := v.(*oauth2.Token)
	if !ok {
		return nil, fmt.Errorf("credential: unexpected result type %T", v)
	}

	return tok, nil
}

// Reset deletes the persisted credential.
func (p *Provider) Reset() error {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	if err := p.store.Remove(p.identity); err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	p.logger.Info("token removed", slog.String("identity", p.identity))

	return nil
}

// Stored returns the persisted token file, or nil when none exists.
func (p *Provider) Stored() (*tokenfile.File, error) {
	f, err := p.store.Load(p.identity)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}

	return f, nil
}

// TokenSource adapts the provider for oauth2.NewClient. Valid tokens are
// cached in memory until they expire.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &providerSource{ctx: ctx, p: p})
}

type providerSource struct {
	ctx context.Context //nolint:containedctx // oauth2.TokenSource has no context parameter
	p   *Provider
}

func (s *providerSource) Token() (*oauth2.Token, error) {
	return s.p.Obtain(s.ctx)
}

// sameScopes compares scope sets ignoring order. A token saved without a
// scope record is accepted for any configuration.
func sameScopes(stored, configured []string) bool {
	if len(stored) == 0 {
		return true
	}

	a := slices.Clone(stored)
	b := slices.Clone(configured)
	slices.Sort(a)
	slices.Sort(b)

	return slices.Equal(slices.Compact(a), slices.Compact(b))
}
