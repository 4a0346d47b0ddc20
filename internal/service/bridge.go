package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sudheendra1210/Citycycle/internal/credential"
	domainauth "github.com/sudheendra1210/Citycycle/internal/domain/auth"
	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	"github.com/sudheendra1210/Citycycle/internal/observability/metrics"
	"github.com/sudheendra1210/Citycycle/internal/observability/statsd"
	"github.com/sudheendra1210/Citycycle/internal/ports"
	"github.com/sudheendra1210/Citycycle/internal/session"
)

const defaultMaxRejections = 3

// Trigger labels for resolution passes.
const (
	TriggerStartup       = "startup"
	TriggerManual        = "manual"
	TriggerTokenChanged  = "token_changed"
	TriggerPhoneVerified = "phone_verified"
	TriggerLogin         = "login"
)

// BridgeOptions groups dependencies for Bridge.
type BridgeOptions struct {
	// Providers in precedence order, highest first.
	Providers []ports.IdentityProvider
	Tokens    ports.TokenStore
	API       ports.IdentityAPI
	Store     *session.Store
	// Chain is built from Providers and Tokens when nil.
	Chain   *credential.Chain
	Logger  *slog.Logger
	Metrics statsd.Sink
	// ClaimsFallback projects provider claims into a guest user when the backend lookup
	// fails for a reason other than rejection.
	ClaimsFallback bool
	// MaxRejections bounds how often one pass re-resolves after a rejected OTP token.
	MaxRejections int
}

// Bridge reconciles upstream identity sources into the session store.
//
// Every trigger takes a ticket from a generation counter; a pass commits only if its ticket
// is still the newest when it finishes. Durable token writes and store commits are
// serialised by writeMu.
type Bridge struct {
	providers      []ports.IdentityProvider
	tokens         ports.TokenStore
	api            ports.IdentityAPI
	store          *session.Store
	chain          *credential.Chain
	logger         *slog.Logger
	metrics        statsd.Sink
	claimsFallback bool
	maxRejections  int

	ticket  atomic.Uint64
	kick    chan string
	passMu  sync.Mutex
	writeMu sync.Mutex
	cred    domainauth.Credential
}

// NewBridge constructs a Bridge.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.API == nil {
		return nil, errors.New("identity API is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chain := opts.Chain
	if chain == nil {
		chain = credential.New(credential.Options{
			Providers: opts.Providers,
			Tokens:    opts.Tokens,
			Logger:    logger,
		})
	}
	maxRejections := opts.MaxRejections
	if maxRejections <= 0 {
		maxRejections = defaultMaxRejections
	}

	return &Bridge{
		providers:      opts.Providers,
		tokens:         opts.Tokens,
		api:            opts.API,
		store:          opts.Store,
		chain:          chain,
		logger:         logger.With("component", "identity_bridge"),
		metrics:        opts.Metrics,
		claimsFallback: opts.ClaimsFallback,
		maxRejections:  maxRejections,
		kick:           make(chan string, 1),
	}, nil
}

// Store returns the session store the bridge writes to.
func (b *Bridge) Store() *session.Store { return b.store }

// Chain returns the credential chain shared with the request gateway.
func (b *Bridge) Chain() *credential.Chain { return b.chain }

// Run subscribes to every provider and serves resolution passes until ctx is done.
// The store stays loading until every provider has settled.
func (b *Bridge) Run(ctx context.Context) error {
	unsubs := make([]func(), 0, len(b.providers))
	for _, p := range b.providers {
		unsubs = append(unsubs, p.Subscribe(func(ev ports.ProviderEvent) {
			b.Notify(string(ev))
		}))
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	b.Notify(TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case trigger := <-b.kick:
			if !b.providersLoaded() {
				b.store.SetLoading()
				continue
			}
			b.passMu.Lock()
			b.runPass(ctx, b.ticket.Load(), trigger)
			b.passMu.Unlock()
		}
	}
}

// Notify records a triggering event and schedules a pass on the Run loop.
// Any pass in flight is superseded; triggers arriving during a pass collapse into one follow-up pass.
func (b *Bridge) Notify(trigger string) {
	b.ticket.Add(1)
	select {
	case b.kick <- trigger:
	default:
	}
}

// Resolve runs one pass synchronously and returns the resulting snapshot.
func (b *Bridge) Resolve(ctx context.Context) domainauth.Snapshot {
	t := b.ticket.Add(1)
	b.passMu.Lock()
	b.runPass(ctx, t, TriggerManual)
	b.passMu.Unlock()
	return b.store.State()
}

// Credential returns the credential the current snapshot is attached to.
func (b *Bridge) Credential() domainauth.Credential {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.cred
}

func (b *Bridge) providersLoaded() bool {
	for _, p := range b.providers {
		if !p.Loaded() {
			return false
		}
	}
	return true
}

// runPass implements one resolution pass. Callers hold passMu.
func (b *Bridge) runPass(ctx context.Context, t uint64, trigger string) {
	start := time.Now()
	rejected := false

	for attempt := 0; attempt <= b.maxRejections; attempt++ {
		res := b.chain.Resolve(ctx, credential.Strict)
		if res.Expired != "" {
			b.logger.InfoContext(ctx, "stored token expired",
				"fingerprint", domainauth.Credential{Token: res.Expired}.Fingerprint())
			b.clearIfCurrent(ctx, res.Expired)
		}

		cred := res.Credential
		if cred.IsZero() {
			if res.Owner != nil {
				out := b.fail(ctx, t, res.Owner, domainauth.Credential{Source: res.Owner.Source()}, res.ProviderErr)
				b.emitPass(string(res.Owner.Source()), out, trigger, start, res.ProviderErr)
				return
			}
			reason := domainauth.ReasonNoCredential
			outcome := metrics.OutcomeAnonymous
			if rejected {
				reason = domainauth.ReasonRejected
				outcome = metrics.OutcomeRejected
			}
			if !b.commit(t, domainauth.Credential{}, nil, reason) {
				outcome = metrics.OutcomeSuperseded
			}
			b.emitPass("", outcome, trigger, start, nil)
			return
		}

		if !b.begin(t, cred) {
			b.emitPass(string(cred.Source), metrics.OutcomeSuperseded, trigger, start, nil)
			return
		}

		outcome, retry, err := b.resolveUser(ctx, t, res.Owner, cred)
		if retry {
			rejected = true
			continue
		}
		b.emitPass(string(cred.Source), outcome, trigger, start, err)
		return
	}

	b.logger.WarnContext(ctx, "giving up after repeated token rejections", "attempts", b.maxRejections+1)
	outcome := metrics.OutcomeRejected
	if !b.commit(t, domainauth.Credential{}, nil, domainauth.ReasonRejected) {
		outcome = metrics.OutcomeSuperseded
	}
	b.emitPass("", outcome, trigger, start, nil)
}

// resolveUser performs the backend identity lookup for cred and commits the outcome.
// retry is true when an OTP token was rejected and cleared, and the caller should resolve again.
func (b *Bridge) resolveUser(
	ctx context.Context,
	t uint64,
	owner ports.IdentityProvider,
	cred domainauth.Credential,
) (outcome string, retry bool, err error) {
	started := time.Now()
	user, err := b.api.Me(ctx, cred.Token)
	metrics.EmitWhoami(b.metrics, string(cred.Source), time.Since(started), err)

	switch {
	case err == nil:
		if !b.commit(t, cred, &user, domainauth.ReasonNone) {
			return metrics.OutcomeSuperseded, false, nil
		}
		return metrics.OutcomeAuthenticated, false, nil

	case apperrors.IsUnauthorized(err):
		b.logger.WarnContext(ctx, "credential rejected by backend",
			"source", string(cred.Source),
			"fingerprint", cred.Fingerprint())
		if cred.Source == domainauth.SourceOTP {
			b.clearIfCurrent(ctx, cred.Token)
			return "", true, err
		}
		// The provider owns its session; only the local view is dropped.
		if !b.commit(t, domainauth.Credential{}, nil, domainauth.ReasonRejected) {
			return metrics.OutcomeSuperseded, false, err
		}
		return metrics.OutcomeRejected, false, err

	default:
		return b.fail(ctx, t, owner, cred, err), false, err
	}
}

// fail commits the outcome of a non-rejection failure: anonymous, or a guest projection of
// the provider claims when claims fallback is enabled.
func (b *Bridge) fail(ctx context.Context, t uint64, owner ports.IdentityProvider, cred domainauth.Credential, cause error) string {
	b.logger.WarnContext(ctx, "identity resolution failed",
		"source", string(cred.Source),
		"fingerprint", cred.Fingerprint(),
		"error", cause)

	if b.claimsFallback && owner != nil {
		claims, err := owner.Claims(ctx)
		if err != nil {
			b.logger.WarnContext(ctx, "provider claims unavailable", "source", string(owner.Source()), "error", err)
		} else if user, ok := domainauth.ProjectHostedClaims(claims); ok {
			if !b.commit(t, cred, &user, domainauth.ReasonUnavailable) {
				return metrics.OutcomeSuperseded
			}
			return metrics.OutcomeDegraded
		}
	}

	if !b.commit(t, domainauth.Credential{}, nil, domainauth.ReasonUnavailable) {
		return metrics.OutcomeSuperseded
	}
	return metrics.OutcomeUnavailable
}

// begin announces cred to the store if t is still current.
func (b *Bridge) begin(t uint64, cred domainauth.Credential) bool {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.ticket.Load() != t {
		return false
	}
	b.store.Begin(cred)
	return true
}

// commit writes the pass outcome if t is still current.
func (b *Bridge) commit(t uint64, cred domainauth.Credential, user *domainauth.ResolvedUser, reason domainauth.Reason) bool {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.ticket.Load() != t {
		return false
	}
	b.commitLocked(cred, user, reason)
	return true
}

// commitLocked requires writeMu.
func (b *Bridge) commitLocked(cred domainauth.Credential, user *domainauth.ResolvedUser, reason domainauth.Reason) {
	if user == nil {
		cred = domainauth.Credential{}
	}
	b.cred = cred
	b.store.Commit(cred, user, reason)
}

// clearIfCurrent removes the stored token only if it still equals token,
// so a token written by a newer verification is never clobbered.
func (b *Bridge) clearIfCurrent(ctx context.Context, token string) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	current, err := b.tokens.Get(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrNoToken) {
			b.logger.WarnContext(ctx, "read stored token failed", "error", err)
		}
		return
	}
	if current != token {
		return
	}
	if err := b.tokens.Clear(ctx); err != nil {
		b.logger.ErrorContext(ctx, "clear stored token failed", "error", err)
	}
}

// SignOut ends every provider session, clears the stored token and leaves the session anonymous.
// Provider failures are logged and returned joined; they never prevent the local sign-out.
func (b *Bridge) SignOut(ctx context.Context) error {
	b.ticket.Add(1)

	var errs []error
	for _, p := range b.providers {
		if !p.Active(ctx) {
			continue
		}
		if err := p.SignOut(ctx); err != nil {
			b.logger.WarnContext(ctx, "provider sign out failed", "source", string(p.Source()), "error", err)
			errs = append(errs, fmt.Errorf("sign out %s: %w", p.Source(), err))
		}
	}

	b.writeMu.Lock()
	b.ticket.Add(1)
	if err := b.tokens.Clear(ctx); err != nil {
		b.logger.ErrorContext(ctx, "clear stored token failed", "error", err)
		errs = append(errs, fmt.Errorf("clear stored token: %w", err))
	}
	b.commitLocked(domainauth.Credential{}, nil, domainauth.ReasonSignedOut)
	b.writeMu.Unlock()

	err := errors.Join(errs...)
	metrics.EmitSignOut(b.metrics, err)
	b.logger.InfoContext(ctx, "signed out", "provider_errors", len(errs))
	return err
}

// RefreshResolvedUser repeats the backend identity lookup with the effective credential.
func (b *Bridge) RefreshResolvedUser(ctx context.Context) (domainauth.Snapshot, error) {
	t := b.ticket.Add(1)
	b.passMu.Lock()
	defer b.passMu.Unlock()

	start := time.Now()
	res := b.chain.Resolve(ctx, credential.Strict)
	if res.Credential.IsZero() {
		// Nothing to refresh against; settle the session with a full pass.
		b.runPass(ctx, t, TriggerManual)
		return b.store.State(), apperrors.Unauthorized("no active session")
	}
	if !b.begin(t, res.Credential) {
		return b.store.State(), nil
	}

	outcome, retry, err := b.resolveUser(ctx, t, res.Owner, res.Credential)
	if retry {
		b.runPass(ctx, t, TriggerManual)
		return b.store.State(), err
	}
	b.emitPass(string(res.Credential.Source), outcome, TriggerManual, start, err)
	return b.store.State(), err
}

func (b *Bridge) emitPass(source, outcome, trigger string, start time.Time, err error) {
	metrics.EmitPass(b.metrics, metrics.PassMetric{
		Source:   source,
		Outcome:  outcome,
		Trigger:  trigger,
		Duration: time.Since(start),
		Err:      err,
	})
}
