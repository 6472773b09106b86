package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-aggregation/internal/budget"
	"github.com/i474232898/weather-aggregation/internal/store"
	"github.com/i474232898/weather-aggregation/internal/weather"
)

var validate = validator.New()

// Geocoder resolves free-text queries to locations.
type Geocoder interface {
	Search(ctx context.Context, query string, simulate bool) ([]weather.Location, error)
}

// FavoriteStore reads the saved locations.
type FavoriteStore interface {
	List() ([]store.Favorite, error)
	Get(id string) (store.Favorite, error)
}

// ProviderSettings reads and changes the enabled flag of providers.
type ProviderSettings interface {
	Enabled(provider string) bool
	SetEnabled(provider string, enabled bool) error
}

// Deps are the collaborators the routes are served from. Geocoder, Favorites, Settings
// and Gatherer may be nil; the matching routes then answer 503 or are not registered.
type Deps struct {
	Service      *weather.Service
	Geocoder     Geocoder
	GeocoderErr  error
	Favorites    FavoriteStore
	Settings     ProviderSettings
	Budgets      map[string]*budget.RequestBudget
	Gatherer     prometheus.Gatherer
	FetchTimeout time.Duration
	Simulate     bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-aggregation",
		})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/forecast", h.forecast)
	v1.Get("/locations/search", h.search)
	v1.Get("/favorites", h.listFavorites)
	v1.Get("/favorites/:id/forecast", h.favoriteForecast)
	v1.Get("/favorites/:id/cached", h.favoriteCached)
	v1.Get("/providers", h.listProviders)
	v1.Put("/providers/:name", h.updateProvider)
}

type handlers struct {
	deps Deps
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	var q forecastQuery
	if err := q.bind(c, h.deps.Simulate); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req, err := q.toRequest()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(h.fetch(c, req))
}

func (h *handlers) search(c *fiber.Ctx) error {
	var q searchQuery
	if err := q.bind(c, h.deps.Simulate); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if h.deps.Geocoder == nil {
		msg := "geocoding is not available"
		if h.deps.GeocoderErr != nil {
			msg = h.deps.GeocoderErr.Error()
		}
		return fiber.NewError(fiber.StatusServiceUnavailable, msg)
	}

	ctx, cancel := h.fetchContext(c)
	defer cancel()

	locations, err := h.deps.Geocoder.Search(ctx, q.Query, q.Simulate)
	if err != nil {
		return providerError(err)
	}
	return c.JSON(fiber.Map{
		"query":     q.Query,
		"locations": locations,
	})
}

func (h *handlers) listFavorites(c *fiber.Ctx) error {
	if h.deps.Favorites == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "favorites are not configured")
	}
	favorites, err := h.deps.Favorites.List()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read favorites")
	}
	return c.JSON(favorites)
}

func (h *handlers) favoriteForecast(c *fiber.Ctx) error {
	fav, err := h.favorite(c)
	if err != nil {
		return err
	}

	q := forecastQuery{
		Lat:  &fav.Latitude,
		Lon:  &fav.Longitude,
		Name: fav.Name,
	}
	if err := q.bindOptions(c, h.deps.Simulate); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req, err := q.toRequest()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	req.Location = fav.Location()

	ctx, cancel := h.fetchContext(c)
	defer cancel()

	// An empty result is still returned; the stored one is kept.
	result, _ := h.deps.Service.FetchAndStore(ctx, req)
	return c.JSON(result)
}

func (h *handlers) favoriteCached(c *fiber.Ctx) error {
	fav, err := h.favorite(c)
	if err != nil {
		return err
	}

	mode, err := weather.ParseMode(c.Query("mode"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := h.deps.Service.GetLatest(fav.Location(), mode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no cached forecast for requested location")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read cached forecast")
	}
	return c.JSON(result)
}

type providerView struct {
	Name      string         `json:"name"`
	Enabled   bool           `json:"enabled"`
	Available bool           `json:"available"`
	Error     string         `json:"error,omitempty"`
	Budget    *budget.Status `json:"budget,omitempty"`
}

func (h *handlers) listProviders(c *fiber.Ctx) error {
	views := make([]providerView, 0, len(h.deps.Service.Providers()))
	for _, p := range h.deps.Service.Providers() {
		v := providerView{Name: p.Name(), Enabled: true, Available: true}
		if h.deps.Settings != nil {
			v.Enabled = h.deps.Settings.Enabled(p.Name())
		}
		if err := unavailable(p); err != nil {
			v.Available = false
			v.Error = err.Error()
		}
		if b, ok := h.deps.Budgets[p.Name()]; ok {
			status := b.Status()
			v.Budget = &status
		}
		views = append(views, v)
	}
	return c.JSON(views)
}

type providerUpdate struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *handlers) updateProvider(c *fiber.Ctx) error {
	if h.deps.Settings == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "settings are not configured")
	}

	var provider weather.Provider
	for _, p := range h.deps.Service.Providers() {
		if strings.EqualFold(p.Name(), c.Params("name")) {
			provider = p
			break
		}
	}
	if provider == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown provider")
	}
	name := provider.Name()

	var body providerUpdate
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.deps.Settings.SetEnabled(name, *body.Enabled); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save settings")
	}
	v := providerView{Name: name, Enabled: *body.Enabled, Available: true}
	if err := unavailable(provider); err != nil {
		v.Available = false
		v.Error = err.Error()
	}
	return c.JSON(v)
}

// unavailable returns the error of a provider registered without its credential.
func unavailable(p weather.Provider) error {
	if u, ok := p.(interface{ Err() error }); ok {
		return u.Err()
	}
	return nil
}

func (h *handlers) favorite(c *fiber.Ctx) (store.Favorite, error) {
	if h.deps.Favorites == nil {
		return store.Favorite{}, fiber.NewError(fiber.StatusServiceUnavailable, "favorites are not configured")
	}
	fav, err := h.deps.Favorites.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrUnknownFavorite) {
			return store.Favorite{}, fiber.NewError(fiber.StatusNotFound, "unknown favorite location")
		}
		return store.Favorite{}, fiber.NewError(fiber.StatusInternalServerError, "failed to read favorites")
	}
	return fav, nil
}

func (h *handlers) fetch(c *fiber.Ctx, req weather.FetchRequest) weather.AggregationResult {
	ctx, cancel := h.fetchContext(c)
	defer cancel()
	return h.deps.Service.Fetch(ctx, req)
}

func (h *handlers) fetchContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	timeout := h.deps.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(c.UserContext(), timeout)
}

// providerError maps a provider failure onto an HTTP status.
func providerError(err error) error {
	switch weather.KindOf(err) {
	case weather.KindAdmissionDenied:
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case weather.KindCredentialMissing:
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case weather.KindInvalidRequest:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}

// forecastQuery holds query parameters of the forecast endpoints.
type forecastQuery struct {
	Lat      *float64 `validate:"required,gte=-90,lte=90"`
	Lon      *float64 `validate:"required,gte=-180,lte=180"`
	Name     string
	Date     string `validate:"omitempty,datetime=2006-01-02"`
	Mode     string `validate:"omitempty,oneof=day week"`
	Simulate bool
}

func (q *forecastQuery) bind(c *fiber.Ctx, simulate bool) error {
	var err error
	if q.Lat, err = parseCoordinate(c, "lat"); err != nil {
		return err
	}
	if q.Lon, err = parseCoordinate(c, "lon"); err != nil {
		return err
	}
	q.Name = c.Query("name")
	return q.bindOptions(c, simulate)
}

func (q *forecastQuery) bindOptions(c *fiber.Ctx, simulate bool) error {
	q.Date = c.Query("date")
	q.Mode = strings.ToLower(c.Query("mode"))

	var err error
	q.Simulate, err = parseBool(c, "simulate", simulate)
	return err
}

func (q forecastQuery) toRequest() (weather.FetchRequest, error) {
	mode, err := weather.ParseMode(q.Mode)
	if err != nil {
		return weather.FetchRequest{}, err
	}

	date := time.Now()
	if q.Date != "" {
		if date, err = time.Parse("2006-01-02", q.Date); err != nil {
			return weather.FetchRequest{}, errors.New("invalid date; use YYYY-MM-DD")
		}
	}

	return weather.FetchRequest{
		Location: weather.Location{Name: q.Name, Latitude: *q.Lat, Longitude: *q.Lon},
		Date:     date,
		Mode:     mode,
		Simulate: q.Simulate,
	}, nil
}

// searchQuery holds query parameters of the location search.
type searchQuery struct {
	Query    string `validate:"required,min=2,max=200"`
	Simulate bool
}

func (q *searchQuery) bind(c *fiber.Ctx, simulate bool) error {
	q.Query = strings.TrimSpace(c.Query("q"))
	var err error
	q.Simulate, err = parseBool(c, "simulate", simulate)
	return err
}

func parseCoordinate(c *fiber.Ctx, key string) (*float64, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid " + key + "; expected a decimal number")
	}
	return &v, nil
}

func parseBool(c *fiber.Ctx, key string, def bool) (bool, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("invalid " + key + "; expected true or false")
	}
	return b, nil
}
