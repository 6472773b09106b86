package budget_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/weather-aggregation/internal/budget"
)

func newTestStore(t *testing.T) *budget.FileStore {
	t.Helper()
	return budget.NewFileStore(filepath.Join(t.TempDir(), "requests.json"), zaptest.NewLogger(t))
}

func TestRequestBudget_DailyLimitAndRollover(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	b, err := budget.New("OpenWeatherMap", budget.Limits{Daily: 3}, store, budget.WithClock(clock))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, b.CanAdmit(), "call %d should be admitted", i+1)
		require.NoError(t, b.RecordCall())
	}
	assert.False(t, b.CanAdmit())

	clock.Advance(24 * time.Hour)
	require.True(t, b.CanAdmit())
	require.NoError(t, b.RecordCall())

	st := b.Status()
	assert.Equal(t, 1, st.State.RequestsDay.Count)
	assert.Equal(t, "2024-05-02", st.State.RequestsDay.Date)
	assert.Equal(t, 4, st.State.RequestsMonth.Count)
}

func TestRequestBudget_MonthlyLimit(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC))

	b, err := budget.New("WeatherAPI", budget.Limits{Monthly: 2}, store, budget.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, b.RecordCall())
	clock.Advance(24 * time.Hour)
	require.NoError(t, b.RecordCall())
	assert.False(t, b.CanAdmit(), "monthly limit spans days")

	clock.Advance(24 * time.Hour) // June 1st
	assert.True(t, b.CanAdmit())
	assert.Equal(t, "2024-06", b.Status().State.RequestsMonth.Month)
	assert.Equal(t, 0, b.Status().State.RequestsMonth.Count)
}

func TestRequestBudget_UnlimitedNeverBlocks(t *testing.T) {
	store := newTestStore(t)

	for _, limits := range []budget.Limits{{Daily: 0, Monthly: 0}, {Daily: -1, Monthly: -5}} {
		b, err := budget.New("Test", limits, store)
		require.NoError(t, err)
		for i := 0; i < 25; i++ {
			require.NoError(t, b.RecordCall())
			assert.True(t, b.CanAdmit())
		}
	}
}

func TestRequestBudget_RoundTripSameDay(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	b, err := budget.New("Weatherbit", budget.Limits{Daily: 50}, store, budget.WithClock(clock))
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		require.NoError(t, b.RecordCall())
	}

	clock.Advance(2 * time.Hour)
	reloaded, err := budget.New("Weatherbit", budget.Limits{Daily: 50}, store, budget.WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, b.Status().State, reloaded.Status().State)
}

func TestRequestBudget_StaleCountsResetOnConstruction(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save("AccuWeather", budget.State{
		RequestsDay:   budget.DayCounter{Count: 50, Date: "2024-04-30"},
		RequestsMonth: budget.MonthCounter{Count: 700, Month: "2024-04"},
	}))

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC))
	_, err := budget.New("AccuWeather", budget.Limits{Daily: 50}, store, budget.WithClock(clock))
	require.NoError(t, err)

	// The reset is persisted without any admitted call.
	st, err := store.Load("AccuWeather")
	require.NoError(t, err)
	assert.Equal(t, budget.DayCounter{Count: 0, Date: "2024-05-01"}, st.RequestsDay)
	assert.Equal(t, budget.MonthCounter{Count: 0, Month: "2024-05"}, st.RequestsMonth)
}

func TestFileStore_ToleratesMissingAndMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.json")
	store := budget.NewFileStore(path, zaptest.NewLogger(t))

	st, err := store.Load("OpenWeatherMap")
	require.NoError(t, err)
	assert.Equal(t, budget.State{}, st)

	doc := `{
		"OpenWeatherMap": {"requestsDay": {"count": 4, "date": "2024-05-01"}, "requestsMonth": {"count": 9, "month": "2024-05"}},
		"WeerLive": "garbage"
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	st, err = store.Load("OpenWeatherMap")
	require.NoError(t, err)
	assert.Equal(t, 4, st.RequestsDay.Count)

	st, err = store.Load("WeerLive")
	require.NoError(t, err)
	assert.Equal(t, budget.State{}, st)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	st, err = store.Load("OpenWeatherMap")
	require.NoError(t, err)
	assert.Equal(t, budget.State{}, st)
}

func TestFileStore_ConcurrentProvidersDoNotLoseUpdates(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	names := []string{"OpenWeatherMap", "AccuWeather", "WeerLive", "Visual Crossing", "WeatherAPI", "Weatherbit"}
	budgets := make([]*budget.RequestBudget, len(names))
	for i, name := range names {
		b, err := budget.New(name, budget.Limits{}, store, budget.WithClock(clock))
		require.NoError(t, err)
		budgets[i] = b
	}

	var wg sync.WaitGroup
	for _, b := range budgets {
		wg.Add(1)
		go func(b *budget.RequestBudget) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				assert.NoError(t, b.RecordCall())
			}
		}(b)
	}
	wg.Wait()

	all, err := store.All()
	require.NoError(t, err)
	for _, name := range names {
		assert.Equal(t, 10, all[name].RequestsDay.Count, name)
		assert.Equal(t, 10, all[name].RequestsMonth.Count, name)
	}
}

func TestRequestBudget_TryAdmitIsAtomic(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	b, err := budget.New("AccuWeather", budget.Limits{Daily: 3, Monthly: 100}, store, budget.WithClock(clock))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := b.TryAdmit(); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, admitted)
	assert.Equal(t, 3, b.Status().State.RequestsDay.Count)
	assert.False(t, b.CanAdmit())

	all, err := store.All()
	require.NoError(t, err)
	assert.Equal(t, 3, all["AccuWeather"].RequestsDay.Count)
}

func TestRequestBudget_ReleaseRefundsSlot(t *testing.T) {
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC))

	b, err := budget.New("Weatherbit", budget.Limits{Daily: 1}, store, budget.WithClock(clock))
	require.NoError(t, err)

	r, ok := b.TryAdmit()
	require.True(t, ok)
	_, ok = b.TryAdmit()
	require.False(t, ok)

	b.Release(r)
	assert.Equal(t, 0, b.Status().State.RequestsDay.Count)
	assert.Equal(t, 0, b.Status().State.RequestsMonth.Count)

	// A reservation from yesterday refunds the month but leaves today's counter alone.
	r, ok = b.TryAdmit()
	require.True(t, ok)
	clock.Advance(2 * time.Minute)
	_, ok = b.TryAdmit()
	require.True(t, ok)

	b.Release(r)
	st := b.Status().State
	assert.Equal(t, 1, st.RequestsDay.Count)
	assert.Equal(t, "2024-05-02", st.RequestsDay.Date)
	assert.Equal(t, 1, st.RequestsMonth.Count)
}
