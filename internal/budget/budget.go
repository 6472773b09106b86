package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Limits are the request allowances of a provider. A value <= 0 means unlimited.
type Limits struct {
	Daily   int `json:"daily"`
	Monthly int `json:"monthly"`
}

// Status is a point-in-time view of a budget.
type Status struct {
	Provider string `json:"provider"`
	Limits   Limits `json:"limits"`
	State    State  `json:"state"`
}

// RequestBudget tracks the daily and monthly request counters of one provider and
// decides whether another call may be made.
type RequestBudget struct {
	mu       sync.Mutex
	provider string
	limits   Limits
	state    State
	store    Store
	clock    clockwork.Clock
	logger   *zap.Logger
}

// Option customizes a RequestBudget.
type Option func(*RequestBudget)

// WithClock overrides the wall clock used to evaluate day and month periods.
func WithClock(c clockwork.Clock) Option {
	return func(b *RequestBudget) { b.clock = c }
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l *zap.Logger) Option {
	return func(b *RequestBudget) { b.logger = l }
}

// New loads the persisted counters of provider and resets any counter whose period has
// ended. A reset is persisted immediately.
func New(provider string, limits Limits, store Store, opts ...Option) (*RequestBudget, error) {
	b := &RequestBudget{
		provider: provider,
		limits:   limits,
		store:    store,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	state, err := store.Load(provider)
	if err != nil {
		return nil, fmt.Errorf("load request counters for %s: %w", provider, err)
	}
	b.state = state

	if b.rollover(b.clock.Now()) {
		if err := b.store.Save(b.provider, b.state); err != nil {
			return nil, fmt.Errorf("persist counter reset for %s: %w", provider, err)
		}
	}
	return b, nil
}

// Provider returns the name the budget is keyed by.
func (b *RequestBudget) Provider() string {
	return b.provider
}

// CanAdmit reports whether another call is allowed in the current day and month. It
// reserves nothing; callers that go on to make the call use TryAdmit.
func (b *RequestBudget) CanAdmit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rolloverAndPersist()
	return b.admitsLocked()
}

func (b *RequestBudget) admitsLocked() bool {
	if b.limits.Daily > 0 && b.state.RequestsDay.Count >= b.limits.Daily {
		return false
	}
	if b.limits.Monthly > 0 && b.state.RequestsMonth.Count >= b.limits.Monthly {
		return false
	}
	return true
}

// RecordCall counts one call against both the daily and the monthly allowance and
// persists the counters.
func (b *RequestBudget) RecordCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover(b.clock.Now())
	b.state.RequestsDay.Count++
	b.state.RequestsMonth.Count++

	if err := b.store.Save(b.provider, b.state); err != nil {
		return fmt.Errorf("persist request counters for %s: %w", b.provider, err)
	}
	return nil
}

// Reservation is one admitted call slot. It remembers the periods it was counted in so
// a release after a rollover does not touch the new period's counters.
type Reservation struct {
	day   string
	month string
}

// TryAdmit checks the limits and, when another call is allowed, counts it immediately.
// Checking and counting happen under the same lock so concurrent callers can never
// exceed a limit together. Call Release when the reserved call never reached the provider.
func (b *RequestBudget) TryAdmit() (Reservation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover(b.clock.Now())
	if !b.admitsLocked() {
		return Reservation{}, false
	}

	b.state.RequestsDay.Count++
	b.state.RequestsMonth.Count++
	b.persistLocked()
	return Reservation{day: b.state.RequestsDay.Date, month: b.state.RequestsMonth.Month}, true
}

// Release refunds a reservation whose call got no response.
func (b *RequestBudget) Release(r Reservation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover(b.clock.Now())
	changed := false
	if r.day == b.state.RequestsDay.Date && b.state.RequestsDay.Count > 0 {
		b.state.RequestsDay.Count--
		changed = true
	}
	if r.month == b.state.RequestsMonth.Month && b.state.RequestsMonth.Count > 0 {
		b.state.RequestsMonth.Count--
		changed = true
	}
	if changed {
		b.persistLocked()
	}
}

// Status returns a copy of the current limits and counters.
func (b *RequestBudget) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rolloverAndPersist()
	return Status{Provider: b.provider, Limits: b.limits, State: b.state}
}

func (b *RequestBudget) rolloverAndPersist() {
	if b.rollover(b.clock.Now()) {
		b.persistLocked()
	}
}

// persistLocked saves the counters. A failed save keeps the in-memory counts, which stay
// authoritative for this process.
func (b *RequestBudget) persistLocked() {
	if err := b.store.Save(b.provider, b.state); err != nil {
		b.logger.Error("persist request counters",
			zap.String("provider", b.provider),
			zap.Error(err),
		)
	}
}

// rollover zeroes every counter whose stored period differs from now's.
func (b *RequestBudget) rollover(now time.Time) bool {
	changed := false

	if day := now.Format(dateLayout); b.state.RequestsDay.Date != day {
		b.state.RequestsDay = DayCounter{Count: 0, Date: day}
		changed = true
	}
	if month := now.Format(monthLayout); b.state.RequestsMonth.Month != month {
		b.state.RequestsMonth = MonthCounter{Count: 0, Month: month}
		changed = true
	}
	return changed
}
