package weather

import (
	"fmt"
	"strings"
	"time"
)

// Condition represents a normalized weather condition shared by all providers.
type Condition string

const (
	ConditionSunny        Condition = "SUNNY"
	ConditionRain         Condition = "RAIN"
	ConditionCloudy       Condition = "CLOUDY"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionPartlyCloudy Condition = "PARTLY_CLOUDY"
	ConditionHail         Condition = "HAIL"
	ConditionMist         Condition = "MIST"
	ConditionStormy       Condition = "STORMY"
	ConditionWindy        Condition = "WINDY"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionDust         Condition = "DUST"
	ConditionAsh          Condition = "ASH"
	ConditionSquall       Condition = "SQUALL"
	ConditionTornado      Condition = "TORNADO"
	ConditionSand         Condition = "SAND"
	ConditionSmoke        Condition = "SMOKE"
	ConditionClear        Condition = "CLEAR"
	ConditionCold         Condition = "COLD"
	ConditionIce          Condition = "ICE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// Conditions lists the whole vocabulary, ConditionUnknown last.
var Conditions = []Condition{
	ConditionSunny, ConditionRain, ConditionCloudy, ConditionThunderstorm, ConditionSnow,
	ConditionPartlyCloudy, ConditionHail, ConditionMist, ConditionStormy, ConditionWindy,
	ConditionDrizzle, ConditionFog, ConditionHaze, ConditionDust, ConditionAsh,
	ConditionSquall, ConditionTornado, ConditionSand, ConditionSmoke, ConditionClear,
	ConditionCold, ConditionIce, ConditionUnknown,
}

// ParseCondition matches a vocabulary name case-insensitively; spaces count as underscores.
func ParseCondition(s string) Condition {
	name := Condition(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_"))
	for _, c := range Conditions {
		if c == name {
			return c
		}
	}
	return ConditionUnknown
}

// HumidityUnknown marks a record whose provider does not report humidity.
const HumidityUnknown = -1.0

// Location represents a place for which forecasts are fetched.
// Identity is the latitude/longitude pair; the name is informational.
type Location struct {
	Name      string  `json:"name"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	PlaceID   string  `json:"placeId,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// SameAs reports whether both locations point at the same coordinates.
func (l Location) SameAs(other Location) bool {
	return l.Latitude == other.Latitude && l.Longitude == other.Longitude
}

// ForecastRecord is a single normalized forecast entry emitted by a provider.
type ForecastRecord struct {
	Condition      Condition `json:"condition"`
	Timestamp      time.Time `json:"timestamp"`
	MinTemperature float64   `json:"minTemperatureC"`
	MaxTemperature float64   `json:"maxTemperatureC"`
	Humidity       float64   `json:"humidityPercent"` // HumidityUnknown when unavailable
	Source         string    `json:"source"`
}

// HasHumidity reports whether the record carries a humidity reading.
func (r ForecastRecord) HasHumidity() bool {
	return r.Humidity != HumidityUnknown
}

// Mode selects the bucketing granularity of an aggregation.
type Mode string

const (
	ModeDay  Mode = "day"
	ModeWeek Mode = "week"
)

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDay, "":
		return ModeDay, nil
	case ModeWeek:
		return ModeWeek, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected %q or %q)", s, ModeDay, ModeWeek)
	}
}

// AggregatedBucket is one hour-of-day or one weekday of the merged view.
type AggregatedBucket struct {
	Key     string         `json:"key"`
	Start   time.Time      `json:"start"`
	Record  ForecastRecord `json:"record"`
	Sources []string       `json:"sources"`
}

// AggregationResult is the merged, ordered view handed to the presentation layer.
// Errors holds one human-readable message per failed provider.
type AggregationResult struct {
	ID       string             `json:"id"`
	Location Location           `json:"location"`
	Mode     Mode               `json:"mode"`
	Date     time.Time          `json:"date"`
	Buckets  []AggregatedBucket `json:"buckets"`
	Errors   []string           `json:"errors"`
}

// Empty reports whether no provider contributed any data.
func (r AggregationResult) Empty() bool {
	return len(r.Buckets) == 0
}
