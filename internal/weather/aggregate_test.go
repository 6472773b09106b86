package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(cond Condition, ts time.Time, minT, maxT, humidity float64, source string) ForecastRecord {
	return ForecastRecord{
		Condition:      cond,
		Timestamp:      ts,
		MinTemperature: minT,
		MaxTemperature: maxT,
		Humidity:       humidity,
		Source:         source,
	}
}

func TestAggregateRecords_HumidityIgnoresSentinel(t *testing.T) {
	ts := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	got := AggregateRecords([]ForecastRecord{
		rec(ConditionSunny, ts, 10, 10, 50, "a"),
		rec(ConditionSunny, ts, 11, 11, HumidityUnknown, "b"),
		rec(ConditionSunny, ts, 12, 12, 70, "c"),
	})
	assert.InDelta(t, 60, got.Humidity, 1e-9)
	assert.Equal(t, "aggregate", got.Source)
}

func TestAggregateRecords_AllHumidityUnknownIsZero(t *testing.T) {
	ts := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	got := AggregateRecords([]ForecastRecord{
		rec(ConditionRain, ts, 10, 10, HumidityUnknown, "a"),
		rec(ConditionRain, ts, 11, 11, HumidityUnknown, "a"),
	})
	assert.Equal(t, 0.0, got.Humidity)
	assert.Equal(t, "a", got.Source)
}

func TestAggregateRecords_MinMaxAndCondition(t *testing.T) {
	ts := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	got := AggregateRecords([]ForecastRecord{
		rec(ConditionUnknown, ts, 14, 14, 40, "a"),
		rec(ConditionCloudy, ts, 9, 16, 40, "b"),
		rec(ConditionRain, ts, 12, 21, 40, "c"),
	})
	assert.Equal(t, 9.0, got.MinTemperature)
	assert.Equal(t, 21.0, got.MaxTemperature)
	assert.Equal(t, ConditionCloudy, got.Condition)

	got = AggregateRecords([]ForecastRecord{rec(ConditionUnknown, ts, 1, 2, 3, "a")})
	assert.Equal(t, ConditionUnknown, got.Condition)
}

func TestBucketRecords_DayGroupsByHour(t *testing.T) {
	day := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	records := []ForecastRecord{
		rec(ConditionRain, day.Add(15*time.Hour), 14, 14, 80, "b"),
		rec(ConditionSunny, day.Add(9*time.Hour), 11, 11, 60, "a"),
		rec(ConditionCloudy, day.Add(15*time.Hour+30*time.Minute), 16, 16, HumidityUnknown, "a"),
	}

	buckets := BucketRecords(ModeDay, records)
	require.Len(t, buckets, 2)

	assert.Equal(t, "09:00", buckets[0].Key)
	assert.Equal(t, "15:00", buckets[1].Key)
	assert.Equal(t, day.Add(15*time.Hour), buckets[1].Start)
	assert.Equal(t, ConditionRain, buckets[1].Record.Condition)
	assert.Equal(t, 14.0, buckets[1].Record.MinTemperature)
	assert.Equal(t, 16.0, buckets[1].Record.MaxTemperature)
	assert.Equal(t, 80.0, buckets[1].Record.Humidity)
	assert.Equal(t, []string{"b", "a"}, buckets[1].Sources)
}

func TestBucketRecords_WeekKeepsFirstOccurrenceOfWeekday(t *testing.T) {
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC) // Monday
	var records []ForecastRecord
	for i := 13; i >= 0; i-- {
		ts := start.AddDate(0, 0, i)
		records = append(records, rec(ConditionSunny, ts, float64(i), float64(i+10), 50, "a"))
	}

	buckets := BucketRecords(ModeWeek, records)
	require.Len(t, buckets, 7)

	for i, b := range buckets {
		want := start.AddDate(0, 0, i)
		assert.Equal(t, want, b.Start)
		assert.Equal(t, want.Weekday().String(), b.Key)
		assert.Equal(t, float64(i), b.Record.MinTemperature)
	}
	assert.Equal(t, "Monday", buckets[0].Key)
	assert.Equal(t, "Sunday", buckets[6].Key)
}

func TestBucketRecords_Empty(t *testing.T) {
	assert.Empty(t, BucketRecords(ModeDay, nil))
	assert.NotNil(t, BucketRecords(ModeWeek, nil))
}

func TestParseCondition(t *testing.T) {
	assert.Equal(t, ConditionPartlyCloudy, ParseCondition("partly cloudy"))
	assert.Equal(t, ConditionSunny, ParseCondition(" SUNNY "))
	assert.Equal(t, ConditionUnknown, ParseCondition("volcanic ash"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDay, m)

	m, err = ParseMode("week")
	require.NoError(t, err)
	assert.Equal(t, ModeWeek, m)

	_, err = ParseMode("month")
	assert.Error(t, err)
}
