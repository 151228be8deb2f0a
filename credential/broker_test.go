package credential

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeProbe struct {
	mu        sync.Mutex
	accept    string
	passive   bool
	validates int
	extends   int
}

func (p *fakeProbe) NonInteractive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passive
}

func (p *fakeProbe) Validate(secret string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validates++
	if secret == p.accept {
		return nil
	}
	return errors.New("bad secret")
}

func (p *fakeProbe) Extend(string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extends++
	return nil
}

// scriptedSink answers each prompt in order; an empty answer refuses.
type scriptedSink struct {
	b        *Broker
	mu       sync.Mutex
	answers  []string
	calls    []string
	attempts []int
}

func (s *scriptedSink) SecretNeeded(requestID string, attempt int) {
	s.mu.Lock()
	i := len(s.calls)
	s.calls = append(s.calls, requestID)
	s.attempts = append(s.attempts, attempt)
	var ans string
	if i < len(s.answers) {
		ans = s.answers[i]
	}
	s.mu.Unlock()
	if ans == "" {
		s.b.Refuse(requestID)
	} else {
		s.b.Resolve(requestID, ans)
	}
}

func (s *scriptedSink) promptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestBroker(sink *scriptedSink, probe *fakeProbe, clock *fakeClock) *Broker {
	b := NewBroker(Options{Sink: sink, Probe: probe})
	b.now = clock.Now
	if sink != nil {
		sink.b = b
	}
	return b
}

func TestAcquire_PromptsAndValidates(t *testing.T) {
	sink := &scriptedSink{answers: []string{"hunter2"}}
	probe := &fakeProbe{accept: "hunter2"}
	b := newTestBroker(sink, probe, newFakeClock())

	secret, err := b.Acquire("req-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if secret != "hunter2" {
		t.Errorf("secret = %q, want %q", secret, "hunter2")
	}
	if got := sink.promptCount(); got != 1 {
		t.Errorf("prompt count = %d, want 1", got)
	}
	if sink.attempts[0] != 1 {
		t.Errorf("attempt = %d, want 1", sink.attempts[0])
	}
}

func TestAcquire_ReusesCacheWithinTTL(t *testing.T) {
	sink := &scriptedSink{answers: []string{"hunter2"}}
	probe := &fakeProbe{accept: "hunter2", passive: true}
	b := newTestBroker(sink, probe, newFakeClock())

	if _, err := b.Acquire("req-1"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	secret, err := b.Acquire("req-2")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if secret != "hunter2" {
		t.Errorf("secret = %q, want cached %q", secret, "hunter2")
	}
	if got := sink.promptCount(); got != 1 {
		t.Errorf("prompt count = %d, want 1 (no re-prompt within TTL)", got)
	}
}

func TestAcquire_ExpiryForcesReprompt(t *testing.T) {
	sink := &scriptedSink{answers: []string{"hunter2", "hunter2"}}
	probe := &fakeProbe{accept: "hunter2", passive: true}
	clock := newFakeClock()
	b := newTestBroker(sink, probe, clock)

	if _, err := b.Acquire("req-1"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	clock.Advance(DefaultTTL + time.Second)
	if _, err := b.Acquire("req-2"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if got := sink.promptCount(); got != 2 {
		t.Errorf("prompt count = %d, want 2 (expired cache re-prompts)", got)
	}
}

func TestAcquire_FailedPassiveProbeForcesReprompt(t *testing.T) {
	sink := &scriptedSink{answers: []string{"hunter2", "hunter2"}}
	probe := &fakeProbe{accept: "hunter2", passive: false}
	b := newTestBroker(sink, probe, newFakeClock())

	if _, err := b.Acquire("req-1"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := b.Acquire("req-2"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if got := sink.promptCount(); got != 2 {
		t.Errorf("prompt count = %d, want 2 (failed passive probe re-prompts)", got)
	}
}

func TestAcquire_WrongSecretReprompts(t *testing.T) {
	sink := &scriptedSink{answers: []string{"wrong", "hunter2"}}
	probe := &fakeProbe{accept: "hunter2"}
	b := newTestBroker(sink, probe, newFakeClock())

	secret, err := b.Acquire("req-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if secret != "hunter2" {
		t.Errorf("secret = %q, want %q", secret, "hunter2")
	}
	if got := sink.promptCount(); got != 2 {
		t.Fatalf("prompt count = %d, want 2", got)
	}
	if sink.calls[0] != sink.calls[1] {
		t.Errorf("re-prompt ids differ: %q vs %q", sink.calls[0], sink.calls[1])
	}
	if sink.attempts[1] != 2 {
		t.Errorf("second attempt = %d, want 2", sink.attempts[1])
	}
}

func TestAcquire_AttemptCapTriggersCooldown(t *testing.T) {
	sink := &scriptedSink{answers: []string{"a", "b", "c", "hunter2"}}
	probe := &fakeProbe{accept: "hunter2"}
	clock := newFakeClock()
	b := newTestBroker(sink, probe, clock)

	if _, err := b.Acquire("req-1"); !errors.Is(err, ErrCooldown) {
		t.Fatalf("Acquire = %v, want ErrCooldown", err)
	}
	if got := sink.promptCount(); got != 3 {
		t.Fatalf("prompt count = %d, want 3", got)
	}

	// Inside the cooldown window nothing is prompted at all.
	if _, err := b.Acquire("req-2"); !errors.Is(err, ErrCooldown) {
		t.Fatalf("Acquire during cooldown = %v, want ErrCooldown", err)
	}
	if got := sink.promptCount(); got != 3 {
		t.Errorf("prompt count = %d, want 3 (cooldown suppresses prompts)", got)
	}

	// Once the window has elapsed, prompting resumes and a good secret
	// resets the counter.
	clock.Advance(cooldownWindow + time.Second)
	if _, err := b.Acquire("req-3"); err != nil {
		t.Fatalf("Acquire after cooldown: %v", err)
	}
	b.mu.Lock()
	attempts := b.attempts
	b.mu.Unlock()
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0 after successful validation", attempts)
	}
}

func TestAcquire_RefusalDeclines(t *testing.T) {
	sink := &scriptedSink{answers: []string{""}}
	b := newTestBroker(sink, &fakeProbe{}, newFakeClock())

	if _, err := b.Acquire("req-1"); !errors.Is(err, ErrDeclined) {
		t.Fatalf("Acquire = %v, want ErrDeclined", err)
	}
}

// silentSink records prompts but never answers them.
type silentSink struct{ count int }

func (s *silentSink) SecretNeeded(string, int) { s.count++ }

func TestAcquire_BoundedWaitTimesOut(t *testing.T) {
	silent := &silentSink{}
	b := NewBroker(Options{Sink: silent, Probe: &fakeProbe{}})
	b.now = newFakeClock().Now
	b.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}

	if _, err := b.Acquire("req-1"); !errors.Is(err, ErrDeclined) {
		t.Fatalf("Acquire = %v, want ErrDeclined on timeout", err)
	}
	if silent.count != 1 {
		t.Errorf("prompt count = %d, want 1", silent.count)
	}
	b.mu.Lock()
	pending := len(b.pending)
	b.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending prompts = %d, want 0 after timeout", pending)
	}
}

func TestResolve_UnknownIDIsDropped(t *testing.T) {
	b := newTestBroker(&scriptedSink{}, &fakeProbe{}, newFakeClock())
	b.Resolve("ghost", "whatever")
	b.Refuse("ghost")
}

func TestInvalidate_ClearsCacheAndCounters(t *testing.T) {
	sink := &scriptedSink{answers: []string{"hunter2", "hunter2"}}
	probe := &fakeProbe{accept: "hunter2", passive: true}
	b := newTestBroker(sink, probe, newFakeClock())

	if _, err := b.Acquire("req-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b.Invalidate()
	if _, err := b.Acquire("req-2"); err != nil {
		t.Fatalf("Acquire after Invalidate: %v", err)
	}
	if got := sink.promptCount(); got != 2 {
		t.Errorf("prompt count = %d, want 2 (invalidate drops the cache)", got)
	}
}

func TestAcquire_NilSinkDeclines(t *testing.T) {
	b := NewBroker(Options{Probe: &fakeProbe{}})
	b.now = newFakeClock().Now
	if _, err := b.Acquire("req-1"); !errors.Is(err, ErrDeclined) {
		t.Fatalf("Acquire = %v, want ErrDeclined without a surface", err)
	}
}

func TestPreauthenticate(t *testing.T) {
	sink := &scriptedSink{answers: []string{"hunter2"}}
	probe := &fakeProbe{accept: "hunter2"}
	b := newTestBroker(sink, probe, newFakeClock())

	if err := b.Preauthenticate("req-1"); err != nil {
		t.Fatalf("Preauthenticate: %v", err)
	}
	if probe.extends != 1 {
		t.Errorf("extends = %d, want 1", probe.extends)
	}
}
