package weather

import (
	"fmt"
	"sort"
	"time"
)

// AggregateRecords combines the records mapped to one bucket into a representative record.
// Min/max temperatures take the extremes, humidity is the mean of known readings (0 when
// none is known) and the condition is the first one that is not unknown.
func AggregateRecords(records []ForecastRecord) ForecastRecord {
	if len(records) == 0 {
		return ForecastRecord{Condition: ConditionUnknown}
	}

	out := ForecastRecord{
		Condition:      ConditionUnknown,
		Timestamp:      records[0].Timestamp,
		MinTemperature: records[0].MinTemperature,
		MaxTemperature: records[0].MaxTemperature,
	}

	var (
		sumHumidity float64
		nHumidity   int
	)

	for _, r := range records {
		if r.MinTemperature < out.MinTemperature {
			out.MinTemperature = r.MinTemperature
		}
		if r.MaxTemperature > out.MaxTemperature {
			out.MaxTemperature = r.MaxTemperature
		}
		if r.Timestamp.Before(out.Timestamp) {
			out.Timestamp = r.Timestamp
		}
		if r.HasHumidity() {
			sumHumidity += r.Humidity
			nHumidity++
		}
		if out.Condition == ConditionUnknown && r.Condition != ConditionUnknown && r.Condition != "" {
			out.Condition = r.Condition
		}
	}

	if nHumidity > 0 {
		out.Humidity = sumHumidity / float64(nHumidity)
	}

	sources := distinctSources(records)
	if len(sources) == 1 {
		out.Source = sources[0]
	} else {
		out.Source = "aggregate"
	}

	return out
}

// BucketRecords groups records by hour of day (ModeDay) or weekday (ModeWeek) and
// aggregates each group. The input order is the tie-break order for conditions.
func BucketRecords(mode Mode, records []ForecastRecord) []AggregatedBucket {
	if len(records) == 0 {
		return []AggregatedBucket{}
	}
	if mode == ModeWeek {
		return bucketByWeekday(records)
	}
	return bucketByHour(records)
}

func bucketByHour(records []ForecastRecord) []AggregatedBucket {
	groups := make(map[int][]ForecastRecord)
	for _, r := range records {
		h := r.Timestamp.Hour()
		groups[h] = append(groups[h], r)
	}

	hours := make([]int, 0, len(groups))
	for h := range groups {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	buckets := make([]AggregatedBucket, 0, len(hours))
	for _, h := range hours {
		rec := AggregateRecords(groups[h])
		buckets = append(buckets, AggregatedBucket{
			Key:     fmt.Sprintf("%02d:00", h),
			Start:   rec.Timestamp.Truncate(time.Hour),
			Record:  rec,
			Sources: distinctSources(groups[h]),
		})
	}
	return buckets
}

func bucketByWeekday(records []ForecastRecord) []AggregatedBucket {
	type dateKey string

	groups := make(map[dateKey][]ForecastRecord)
	starts := make(map[dateKey]time.Time)
	for _, r := range records {
		ts := r.Timestamp
		k := dateKey(ts.Format("2006-01-02"))
		groups[k] = append(groups[k], r)
		if _, ok := starts[k]; !ok {
			starts[k] = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	seen := make(map[time.Weekday]bool, 7)
	buckets := make([]AggregatedBucket, 0, 7)
	for _, k := range keys {
		start := starts[dateKey(k)]
		wd := start.Weekday()
		if seen[wd] {
			continue
		}
		seen[wd] = true

		group := groups[dateKey(k)]
		buckets = append(buckets, AggregatedBucket{
			Key:     wd.String(),
			Start:   start,
			Record:  AggregateRecords(group),
			Sources: distinctSources(group),
		})
	}
	return buckets
}

func distinctSources(records []ForecastRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r.Source == "" || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		out = append(out, r.Source)
	}
	return out
}
