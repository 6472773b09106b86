package providers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-aggregation/internal/budget"
	"github.com/i474232898/weather-aggregation/internal/metrics"
	"github.com/i474232898/weather-aggregation/internal/weather"
)

//go:embed fixtures/*.json
var fixtures embed.FS

var errServerError = errors.New("server error")

// Options bundles what every adapter is constructed with.
type Options struct {
	APIKey  string
	BaseURL string
	Budget  *budget.RequestBudget
	Client  *resty.Client
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// errorExtractor pulls the provider's own error message out of a non-success body.
type errorExtractor func(body []byte) (string, bool)

// request describes one provider call and the bundled payload that replaces it when simulating.
type request struct {
	path    string
	query   map[string]string
	fixture string
}

// base carries the transport, admission and accounting shared by every adapter.
type base struct {
	name         string
	apiKey       string
	baseURL      string
	client       *resty.Client
	circuit      *gobreaker.CircuitBreaker
	budget       *budget.RequestBudget
	logger       *zap.Logger
	metrics      *metrics.Metrics
	extractError errorExtractor
}

func newBase(name, defaultURL string, opts Options, extract errorExtractor) base {
	client := opts.Client
	if client == nil {
		client = resty.New().SetTimeout(10 * time.Second)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return base{
		name:         name,
		apiKey:       opts.APIKey,
		baseURL:      baseURL,
		client:       client,
		circuit:      cb,
		budget:       opts.Budget,
		logger:       logger.With(zap.String("provider", name)),
		metrics:      opts.Metrics,
		extractError: extract,
	}
}

func (b *base) Name() string {
	return b.name
}

// do performs one admitted call and returns the success body. The call slot is reserved
// before the request goes out and kept as soon as the provider answered, whatever the
// status. A call that got no response gives its slot back.
func (b *base) do(ctx context.Context, req request, simulate bool) ([]byte, error) {
	reservation, ok := b.reserve()
	if !ok {
		b.metrics.ObserveBudgetRejection(b.name)
		return nil, weather.NewProviderError(b.name, weather.KindAdmissionDenied, "", weather.ErrRequestLimitReached)
	}

	if simulate {
		body, err := fixtures.ReadFile(path.Join("fixtures", req.fixture))
		if err != nil {
			b.release(reservation)
			return nil, weather.NewProviderError(b.name, weather.KindTransport, "simulation payload unavailable", err)
		}
		return body, nil
	}

	var resp *resty.Response
	_, err := b.circuit.Execute(func() (interface{}, error) {
		r, err := b.client.R().
			SetContext(ctx).
			SetQueryParams(req.query).
			Get(b.baseURL + req.path)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode() >= http.StatusInternalServerError {
			return nil, errServerError
		}
		return nil, nil
	})

	if resp == nil {
		b.release(reservation)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, weather.NewProviderError(b.name, weather.KindTransport, "circuit breaker open", err)
		}
		return nil, weather.NewProviderError(b.name, weather.KindTransport, "request failed", err)
	}

	if !resp.IsSuccess() {
		msg, ok := "", false
		if b.extractError != nil {
			msg, ok = b.extractError(resp.Body())
		}
		if !ok {
			msg = weather.ErrNoErrorInformation.Error()
		}
		return nil, weather.NewProviderError(b.name, weather.KindTransport,
			fmt.Sprintf("status %d: %s", resp.StatusCode(), msg), nil)
	}
	return resp.Body(), nil
}

func (b *base) reserve() (budget.Reservation, bool) {
	if b.budget == nil {
		return budget.Reservation{}, true
	}
	return b.budget.TryAdmit()
}

func (b *base) release(r budget.Reservation) {
	if b.budget != nil {
		b.budget.Release(r)
	}
}

// decode unmarshals the top-level structure of a payload.
func (b *base) decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return b.malformed("unexpected payload", err)
	}
	return nil
}

func (b *base) malformed(message string, err error) error {
	if err == nil {
		err = weather.ErrMalformedResponse
	} else {
		err = fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}
	return weather.NewProviderError(b.name, weather.KindMalformed, message, err)
}

// skip logs an item that is left out of an otherwise valid payload.
func (b *base) skip(index int, reason string, err error) {
	fields := []zap.Field{zap.Int("item", index), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	b.logger.Warn("skipping forecast item", fields...)
}

// filterDay keeps the records of the requested calendar date. When simulating, the
// bundled payload's first date stands in for the requested one.
func (b *base) filterDay(records []weather.ForecastRecord, date time.Time, simulate bool) ([]weather.ForecastRecord, error) {
	if simulate && len(records) > 0 {
		date = records[0].Timestamp
	}

	y, m, d := date.Date()
	out := make([]weather.ForecastRecord, 0, len(records))
	for _, r := range records {
		ry, rm, rd := r.Timestamp.Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, weather.NewProviderError(b.name, weather.KindNoData, "", weather.ErrNoDataForDate)
	}
	return out, nil
}

// groupByDate collapses sub-daily records into one record per calendar date, in order of
// first appearance. The first record of a date decides its condition.
func (b *base) groupByDate(records []weather.ForecastRecord) []weather.ForecastRecord {
	type acc struct {
		rec         weather.ForecastRecord
		sumHumidity float64
		nHumidity   int
	}

	var order []string
	days := make(map[string]*acc)

	for _, r := range records {
		k := r.Timestamp.Format("2006-01-02")
		a, ok := days[k]
		if !ok {
			ts := r.Timestamp
			a = &acc{rec: weather.ForecastRecord{
				Condition:      r.Condition,
				Timestamp:      time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location()),
				MinTemperature: r.MinTemperature,
				MaxTemperature: r.MaxTemperature,
				Source:         b.name,
			}}
			days[k] = a
			order = append(order, k)
		}
		if r.MinTemperature < a.rec.MinTemperature {
			a.rec.MinTemperature = r.MinTemperature
		}
		if r.MaxTemperature > a.rec.MaxTemperature {
			a.rec.MaxTemperature = r.MaxTemperature
		}
		if r.HasHumidity() {
			a.sumHumidity += r.Humidity
			a.nHumidity++
		}
	}

	out := make([]weather.ForecastRecord, 0, len(order))
	for _, k := range order {
		a := days[k]
		a.rec.Humidity = weather.HumidityUnknown
		if a.nHumidity > 0 {
			a.rec.Humidity = a.sumHumidity / float64(a.nHumidity)
		}
		out = append(out, a.rec)
	}
	return out
}

// record builds a normalized record from a single temperature range reading.
func (b *base) record(cond weather.Condition, ts time.Time, minT, maxT float64, humidity *float64) weather.ForecastRecord {
	return weather.ForecastRecord{
		Condition:      cond,
		Timestamp:      ts,
		MinTemperature: minT,
		MaxTemperature: maxT,
		Humidity:       normalizeHumidity(humidity),
		Source:         b.name,
	}
}

func normalizeHumidity(v *float64) float64 {
	if v == nil || *v < 0 || *v > 100 {
		return weather.HumidityUnknown
	}
	return *v
}

func coordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func latLon(loc weather.Location) string {
	return coordinate(loc.Latitude) + "," + coordinate(loc.Longitude)
}

// loadZone resolves an IANA zone name, falling back to a fixed offset.
func loadZone(name string, offset time.Duration) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone(name, int(offset.Seconds()))
}

// jsonMessage extracts the first non-empty string field among keys of a JSON object body.
func jsonMessage(body []byte, keys ...string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false
	}
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n != "" {
			return n.String(), true
		}
	}
	return "", false
}
