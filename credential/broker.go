// Package credential manages the elevation secret: interactive
// acquisition, validation, caching with a TTL, and rate limiting. The
// broker owns the rendezvous between worker goroutines that need a secret
// and the interactive surface that can ask for one.
package credential

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tobayashi-san/arch-appcenter/logging"
)

const (
	// DefaultTTL matches sudo's own timestamp default.
	DefaultTTL = 5 * time.Minute

	// promptWait bounds how long a worker blocks on an outstanding
	// prompt. An interactive surface that was torn down must not hang
	// the execution thread forever.
	promptWait = 30 * time.Second

	// cooldownWindow suppresses prompting after the attempt cap is hit.
	cooldownWindow = 30 * time.Second

	maxAttempts = 3
)

var (
	// ErrDeclined reports a refused, unanswered, or undeliverable prompt.
	ErrDeclined = errors.New("credential prompt declined")

	// ErrCooldown reports that the attempt cap was reached and the
	// cooldown window has not elapsed.
	ErrCooldown = errors.New("too many failed attempts; try again later")
)

// PromptSink is the interactive surface's side of the rendezvous. It is
// notified that a secret is needed for a request id and answers later via
// Resolve or Refuse.
type PromptSink interface {
	SecretNeeded(requestID string, attempt int)
}

// answer is what the surface delivers for one prompt.
type answer struct {
	secret string
	ok     bool
}

// Broker owns the credential cache, the attempt counters, and the pending
// prompt table. Every read-modify-write of shared state happens under one
// mutex.
type Broker struct {
	mu          sync.Mutex
	secret      string
	issuedAt    time.Time
	expiresAt   time.Time
	attempts    int
	lastFailure time.Time
	pending     map[string]chan answer

	sink  PromptSink
	probe Probe
	ttl   time.Duration
	log   logging.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// Options configure a Broker. Zero values select the defaults: the real
// sudo probe, DefaultTTL, no logging. A nil Sink refuses every prompt.
type Options struct {
	Sink  PromptSink
	Probe Probe
	TTL   time.Duration
	Log   logging.Logger
}

// NewBroker creates a Broker from opts.
func NewBroker(opts Options) *Broker {
	if opts.Probe == nil {
		opts.Probe = NewSudoProbe()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	return &Broker{
		pending: make(map[string]chan answer),
		sink:    opts.Sink,
		probe:   opts.Probe,
		ttl:     opts.TTL,
		log:     logging.WithComponent(opts.Log, "credential"),
		now:     time.Now,
		after:   time.After,
	}
}

// Acquire returns a validated secret for the request id, prompting the
// interactive surface as needed. A cached, unexpired secret is reused
// without a prompt when the non-interactive probe confirms elevation still
// works. Acquisition for one id is fully serialized; distinct ids may have
// independent prompts outstanding.
func (b *Broker) Acquire(requestID string) (string, error) {
	if secret, ok := b.cached(); ok && b.probe.NonInteractive() {
		b.log.Debug("cached credential reused", map[string]any{"request_id": requestID})
		return secret, nil
	}

	for {
		attempt, err := b.beginPrompt(requestID)
		if err != nil {
			return "", err
		}
		ans, answered := b.await(requestID)
		if !answered || !ans.ok {
			b.log.Info("credential prompt declined", map[string]any{"request_id": requestID})
			return "", ErrDeclined
		}
		if err := b.probe.Validate(ans.secret); err != nil {
			capped := b.recordFailure()
			b.log.Warn("credential validation failed", map[string]any{
				"request_id": requestID,
				"attempt":    attempt,
			})
			if capped {
				return "", ErrCooldown
			}
			continue
		}
		b.store(ans.secret)
		b.log.Info("credential validated", map[string]any{"request_id": requestID})
		return ans.secret, nil
	}
}

// Resolve completes the prompt for requestID with a candidate secret. An
// empty secret counts as a refusal. Exactly the one waiter registered
// under the id wakes; answers for ids no longer pending are dropped.
func (b *Broker) Resolve(requestID, secret string) {
	b.deliver(requestID, answer{secret: secret, ok: secret != ""})
}

// Refuse completes the prompt for requestID with an explicit refusal.
func (b *Broker) Refuse(requestID string) {
	b.deliver(requestID, answer{})
}

// Invalidate zeroes the cached secret and resets the counters immediately.
func (b *Broker) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.secret = ""
	b.issuedAt = time.Time{}
	b.expiresAt = time.Time{}
	b.attempts = 0
	b.lastFailure = time.Time{}
	b.log.Info("credential cache invalidated", nil)
}

// Preauthenticate acquires a secret and extends the elevation timestamp so
// a following batch does not stall on prompts mid-run.
func (b *Broker) Preauthenticate(requestID string) error {
	secret, err := b.Acquire(requestID)
	if err != nil {
		return err
	}
	if err := b.probe.Extend(secret); err != nil {
		return fmt.Errorf("extend elevation: %w", err)
	}
	return nil
}

func (b *Broker) cached() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.secret == "" {
		return "", false
	}
	if !b.now().Before(b.expiresAt) {
		// Expired; discard rather than hand out a stale secret.
		b.secret = ""
		b.issuedAt = time.Time{}
		b.expiresAt = time.Time{}
		return "", false
	}
	return b.secret, true
}

// beginPrompt registers the pending prompt and signals the surface. It
// fails without prompting while the cooldown is active, when no surface is
// attached, or when a prompt for the id is already outstanding.
func (b *Broker) beginPrompt(requestID string) (int, error) {
	if b.sink == nil {
		return 0, ErrDeclined
	}
	b.mu.Lock()
	if b.attempts >= maxAttempts && b.now().Sub(b.lastFailure) < cooldownWindow {
		b.mu.Unlock()
		return 0, ErrCooldown
	}
	if _, exists := b.pending[requestID]; exists {
		b.mu.Unlock()
		return 0, fmt.Errorf("prompt already pending for request %s", requestID)
	}
	ch := make(chan answer, 1)
	b.pending[requestID] = ch
	attempt := b.attempts + 1
	b.mu.Unlock()

	b.log.Debug("prompt issued", map[string]any{"request_id": requestID, "attempt": attempt})
	b.sink.SecretNeeded(requestID, attempt)
	return attempt, nil
}

// await blocks until the surface answers or the bounded wait elapses. The
// pending entry is destroyed as soon as the result is consumed.
func (b *Broker) await(requestID string) (answer, bool) {
	b.mu.Lock()
	ch := b.pending[requestID]
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}()

	select {
	case ans := <-ch:
		return ans, true
	case <-b.after(promptWait):
		return answer{}, false
	}
}

func (b *Broker) deliver(requestID string, ans answer) {
	b.mu.Lock()
	ch := b.pending[requestID]
	b.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ans:
	default:
	}
}

func (b *Broker) store(secret string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.secret = secret
	b.issuedAt = now
	if exp := now.Add(b.ttl); exp.After(b.expiresAt) {
		b.expiresAt = exp
	}
	b.attempts = 0
	b.lastFailure = time.Time{}
}

// recordFailure bumps the counter and reports whether the cap was reached.
// Reaching the cap also drops whatever was cached.
func (b *Broker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	b.lastFailure = b.now()
	if b.attempts >= maxAttempts {
		b.secret = ""
		b.issuedAt = time.Time{}
		b.expiresAt = time.Time{}
		return true
	}
	return false
}
