package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Feature is one library location as returned by the Golemio API.
// Only read access is needed; unknown fields are ignored.
type Feature struct {
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// Geometry holds a GeoJSON point as [longitude, latitude].
type Geometry struct {
	Coordinates []*float64 `json:"coordinates"`
}

type FeatureProperties struct {
	ID           FlexString    `json:"id"`
	Name         FlexString    `json:"name"`
	District     FlexString    `json:"district"`
	Address      *Address      `json:"address"`
	OpeningHours []OpeningHour `json:"opening_hours"`
}

type Address struct {
	StreetAddress   FlexString `json:"street_address"`
	PostalCode      FlexString `json:"postal_code"`
	AddressLocality FlexString `json:"address_locality"`
	AddressCountry  FlexString `json:"address_country"`
}

type OpeningHour struct {
	DayOfWeek FlexString `json:"day_of_week"`
	Opens     FlexString `json:"opens"`
}

// FeaturePage is the body of one paginated API response.
type FeaturePage struct {
	Features []Feature `json:"features"`
}

// FlexString accepts JSON strings and numbers alike; null decodes to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(strings.TrimSpace(string(data)))
	return nil
}

func (s FlexString) String() string { return string(s) }

// Int parses the value as an integer. ok is false for empty or non-numeric values.
func (s FlexString) Int() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Record is the flattened, localized output row built from one Feature.
type Record struct {
	ID           string
	Name         string
	Street       string
	PostalCode   string
	City         string
	Kraj         string
	Country      string
	Latitude     *float64
	Longitude    *float64
	CasOtvorenia string
}

// HasCoordinates reports whether both latitude and longitude are set.
func (r *Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Combination is one concrete set of query parameters derived from the configured axes.
type Combination struct {
	Districts    []string
	LatLng       string
	RangeM       int
	Limit        int
	Offset       int
	UpdatedSince string
}

type CombinationStatus string

const (
	CombinationOK     CombinationStatus = "ok"
	CombinationEmpty  CombinationStatus = "empty"
	CombinationFailed CombinationStatus = "failed"
)

// CombinationResult is the outcome of fetching and transforming one Combination.
type CombinationResult struct {
	Combination Combination
	Status      CombinationStatus
	Records     []*Record
	Err         error
}

// Run describes one extraction invocation.
type Run struct {
	ID           string
	StartedAt    time.Time
	Date         string
	Combinations []Combination
	Results      []CombinationResult
	Merged       []*Record
	Final        []*Record
	CSVPath      string
	JSONPath     string
}

// RunSummary holds the figures reported after a successful run.
type RunSummary struct {
	RunID              string
	Date               string
	Combinations       int
	FailedCombinations int
	EmptyCombinations  int
	MergedRecords      int
	WrittenRecords     int
	WithoutCoordinates int
	RecordsByKraj      map[string]int
	Nearest            *Record
	CSVPath            string
	JSONPath           string
}

// Axes are the independently configured parameter lists whose product forms
// the combinations of a run. Each entry of Districts is one district group.
type Axes struct {
	Districts    [][]string
	LatLngs      []string
	Ranges       []int
	Limits       []int
	Offsets      []int
	UpdatedSince []string
}
