// Package ratelimit tracks Graph API throttling signals and refuses calls
// locally while the app or a token is inside a throttle window.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-leadgen/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

type Scope string

const (
	// ScopeApp is shared by every call made with the app's credentials.
	ScopeApp Scope = "app"
	// ScopeToken covers calls made with one user or page token.
	ScopeToken Scope = "token"
)

const (
	headerAppUsage      = "x-app-usage"
	headerPageUsage     = "x-page-usage"
	headerBusinessUsage = "x-business-use-case-usage"
	headerRetryAfter    = "retry-after"

	// platform error codes
	codeAppLimit      = 4
	codeUserLimit     = 17
	codePageLimit     = 32
	codeCustomLimit   = 613
	codeBusinessFirst = 80000
	codeBusinessLast  = 80014
)

// Key names one throttle bucket. ID is empty for ScopeApp.
type Key struct {
	Scope Scope
	ID    string
}

func (k Key) String() string {
	if k.ID == "" {
		return string(k.Scope)
	}
	return string(k.Scope) + ":" + k.ID
}

type State struct {
	Key            Key
	Usage          int
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
	Delete(ctx context.Context, key Key) error
}

// Observation is what the policy reads from one Graph API response.
// ErrorCode is the code of the Graph error object, zero on success.
type Observation struct {
	StatusCode int
	Headers    map[string]string
	ErrorCode  int
}

type ThrottledError struct {
	Key        Key
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: %s throttled for %s", e.Key, e.RetryAfter)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{"scope": string(e.Key.Scope)}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return core.NewRateLimitedError(e.Error(), metadata)
}

type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// UsageThreshold is the usage percentage at which a bucket is treated
	// as throttled before the platform starts rejecting calls.
	UsageThreshold int
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		InitialBackoff: 30 * time.Second,
		MaxBackoff:     15 * time.Minute,
		UsageThreshold: 100,
	}
}

// BeforeCall returns a ThrottledError when any of keys is inside its throttle
// window.
func (p *AdaptivePolicy) BeforeCall(ctx context.Context, keys ...Key) error {
	if p == nil || p.Store == nil {
		return nil
	}
	now := p.now()
	for _, key := range keys {
		if !key.valid() {
			continue
		}
		state, err := p.Store.Get(ctx, normalizeKey(key))
		if err != nil {
			if errors.Is(err, ErrStateNotFound) {
				continue
			}
			return err
		}
		if until := state.ThrottledUntil; until != nil && now.Before(*until) {
			return ThrottledError{Key: state.Key, RetryAfter: until.Sub(now)}
		}
	}
	return nil
}

// AfterCall records obs against the app bucket and the token bucket. App
// level signals only throttle app; everything else throttles token. A bucket
// that is not throttled keeps no state.
func (p *AdaptivePolicy) AfterCall(ctx context.Context, app Key, token Key, obs Observation) error {
	if p == nil || p.Store == nil {
		return nil
	}
	now := p.now()
	retryAfter, hasRetryAfter := parseRetryAfter(obs.Headers, now)

	appUsage := usagePercent(headerValue(obs.Headers, headerAppUsage))
	appThrottled := obs.ErrorCode == codeAppLimit || appUsage >= p.threshold()

	business := businessUsage(headerValue(obs.Headers, headerBusinessUsage))
	tokenUsage := max(usagePercent(headerValue(obs.Headers, headerPageUsage)), business.percent)
	if business.regain > 0 && !hasRetryAfter {
		retryAfter, hasRetryAfter = business.regain, true
	}
	tokenThrottled := obs.StatusCode == 429 || tokenLimitCode(obs.ErrorCode) || tokenUsage >= p.threshold()

	if app.valid() {
		if err := p.record(ctx, app, obs.StatusCode, appUsage, appThrottled, retryAfter, hasRetryAfter, now); err != nil {
			return err
		}
	}
	if token.valid() {
		if err := p.record(ctx, token, obs.StatusCode, tokenUsage, tokenThrottled && !appThrottled, retryAfter, hasRetryAfter, now); err != nil {
			return err
		}
	}
	return nil
}

func (p *AdaptivePolicy) record(
	ctx context.Context,
	key Key,
	status int,
	usage int,
	throttled bool,
	retryAfter time.Duration,
	hasRetryAfter bool,
	now time.Time,
) error {
	key = normalizeKey(key)
	if !throttled {
		return p.Store.Delete(ctx, key)
	}
	state, err := p.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Key: key}
	}
	state.LastStatus = status
	state.Usage = usage
	state.UpdatedAt = now

	state.Attempts++
	delay := retryAfter
	if hasRetryAfter {
		state.RetryAfter = &retryAfter
	} else {
		state.RetryAfter = nil
		delay = p.nextBackoff(state.Attempts)
	}
	until := now.Add(delay)
	state.ThrottledUntil = &until
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AdaptivePolicy) threshold() int {
	if p.UsageThreshold > 0 {
		return p.UsageThreshold
	}
	return 100
}

func (p *AdaptivePolicy) nextBackoff(attempt int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = 30 * time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = 15 * time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return min(delay, maximum)
}

func tokenLimitCode(code int) bool {
	switch {
	case code == codeUserLimit, code == codePageLimit, code == codeCustomLimit:
		return true
	case code >= codeBusinessFirst && code <= codeBusinessLast:
		return true
	default:
		return false
	}
}

// usagePercent reads the highest percentage in an X-App-Usage style header:
// {"call_count":28,"total_time":25,"total_cputime":25}.
func usagePercent(raw string) int {
	if raw == "" {
		return 0
	}
	var usage map[string]float64
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		return 0
	}
	highest := 0
	for _, value := range usage {
		highest = max(highest, int(value))
	}
	return highest
}

type businessUsageSummary struct {
	percent int
	regain  time.Duration
}

// businessUsage reads X-Business-Use-Case-Usage, keyed by business id with a
// list of per use case counters.
func businessUsage(raw string) businessUsageSummary {
	var out businessUsageSummary
	if raw == "" {
		return out
	}
	var usage map[string][]struct {
		CallCount    float64 `json:"call_count"`
		TotalTime    float64 `json:"total_time"`
		TotalCPUTime float64 `json:"total_cputime"`
		// minutes
		RegainAccess float64 `json:"estimated_time_to_regain_access"`
	}
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		return out
	}
	for _, entries := range usage {
		for _, entry := range entries {
			out.percent = max(out.percent, int(entry.CallCount), int(entry.TotalTime), int(entry.TotalCPUTime))
			out.regain = max(out.regain, time.Duration(entry.RegainAccess*float64(time.Minute)))
		}
	}
	return out
}

func parseRetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, headerRetryAfter)
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (k Key) valid() bool {
	switch k.Scope {
	case ScopeApp:
		return true
	case ScopeToken:
		return strings.TrimSpace(k.ID) != ""
	default:
		return false
	}
}

func normalizeKey(key Key) Key {
	return Key{Scope: Scope(strings.ToLower(strings.TrimSpace(string(key.Scope)))), ID: strings.TrimSpace(key.ID)}
}

// MemoryStateStore keeps throttled buckets in process. Entries whose window
// ended more than Retention ago are pruned on write, which also resets their
// backoff.
type MemoryStateStore struct {
	Retention time.Duration

	mu    sync.RWMutex
	items map[Key]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{Retention: 15 * time.Minute, items: map[Key]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[normalizeKey(key)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(state.UpdatedAt)
	s.items[state.Key] = state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, key Key) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, normalizeKey(key))
	return nil
}

// Len reports the number of tracked buckets.
func (s *MemoryStateStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStateStore) pruneLocked(now time.Time) {
	if now.IsZero() {
		return
	}
	cutoff := now.Add(-s.retention())
	for key, state := range s.items {
		if state.ThrottledUntil == nil || state.ThrottledUntil.Before(cutoff) {
			delete(s.items, key)
		}
	}
}

func (s *MemoryStateStore) retention() time.Duration {
	if s.Retention > 0 {
		return s.Retention
	}
	return 15 * time.Minute
}
