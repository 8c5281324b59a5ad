package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"golemio-extractor/config"
	"golemio-extractor/models"
	"golemio-extractor/scraper/golemio"
	"golemio-extractor/storage"
)

// stubFetcher answers per district; an error for a district fails that combination.
type stubFetcher struct {
	features map[string][]models.Feature
	errs     map[string]error
	requests []golemio.Request
}

func (s *stubFetcher) Fetch(_ context.Context, req golemio.Request) ([]models.Feature, error) {
	s.requests = append(s.requests, req)
	key := strings.Join(req.Districts, ",")
	if err := s.errs[key]; err != nil {
		return nil, err
	}
	return s.features[key], nil
}

func feature(id, district string, lon, lat float64) models.Feature {
	return models.Feature{
		Geometry: models.Geometry{Coordinates: []*float64{ptr(lon), ptr(lat)}},
		Properties: models.FeatureProperties{
			ID:       models.FlexString(id),
			Name:     models.FlexString("Lib " + id),
			District: models.FlexString(district),
		},
	}
}

func testAxes(districts ...string) models.Axes {
	cfg := &config.Config{
		Districts:    districts,
		LatLngs:      []string{"50.0,14.0"},
		Ranges:       []int{10000},
		Limits:       []int{5},
		Offsets:      []int{0},
		UpdatedSince: []string{""},
	}
	return cfg.Axes()
}

func newTestExtractor(t *testing.T, fetcher FeatureFetcher, opts ExtractorOptions) (*Extractor, string) {
	t.Helper()
	dir := t.TempDir()
	logger := newTestLogger()
	writers := []storage.SnapshotWriter{storage.NewCSVWriter(dir, logger), storage.NewJSONWriter(dir, logger)}
	if opts.FetchCap == 0 {
		opts.FetchCap = 10000
	}
	opts.Location = time.UTC
	e := NewExtractor(opts, fetcher, writers, logger)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC) }
	return e, dir
}

func TestGenerateCombinations(t *testing.T) {
	axes := models.Axes{
		Districts:    [][]string{{"praha-1"}, {"praha-2"}},
		LatLngs:      []string{"50,14"},
		Ranges:       []int{1000, 2000},
		Limits:       []int{5},
		Offsets:      []int{0},
		UpdatedSince: []string{"a", "b"},
	}
	combos := GenerateCombinations(axes)
	require.Len(t, combos, 8)
	require.Equal(t, []string{"praha-1"}, combos[0].Districts)
	require.Equal(t, 1000, combos[0].RangeM)
	require.Equal(t, "a", combos[0].UpdatedSince)
	require.Equal(t, "b", combos[1].UpdatedSince)
	require.Equal(t, []string{"praha-2"}, combos[4].Districts)

	require.Empty(t, GenerateCombinations(models.Axes{}))
}

func TestRunRanksTruncatesAndWrites(t *testing.T) {
	fetcher := &stubFetcher{features: map[string][]models.Feature{}}
	// 12 records spread over two districts, increasingly far from (50,14)
	for i := 0; i < 12; i++ {
		district := "praha-1"
		if i%2 == 1 {
			district = "praha-2"
		}
		fetcher.features[district] = append(fetcher.features[district],
			feature(fmt.Sprintf("id-%02d", i), district, 14.0, 50.0+float64(12-i)/10))
	}

	e, dir := newTestExtractor(t, fetcher, ExtractorOptions{Deduplicate: true})
	run, err := e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.NoError(t, err)

	require.Len(t, fetcher.requests, 2)
	require.Equal(t, 10000, fetcher.requests[0].Cap)
	require.Equal(t, 5, fetcher.requests[0].Limit)

	require.Len(t, run.Merged, 12)
	require.Len(t, run.Final, 5)
	require.Equal(t, []string{"id-11", "id-10", "id-09", "id-08", "id-07"}, ids(run.Final))
	require.Equal(t, "2024-05-01", run.Date)
	require.NotEmpty(t, run.ID)

	require.Equal(t, filepath.Join(dir, "csv", "libraries_2024-05-01_ALL.csv"), run.CSVPath)
	data, err := os.ReadFile(run.JSONPath)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 5)
	require.Equal(t, "id-11", rows[0]["ID knižnice"])
}

func TestRunRanksByDistrictWithoutReference(t *testing.T) {
	fetcher := &stubFetcher{features: map[string][]models.Feature{
		"praha-2": {feature("b", "praha-2", 14, 50)},
		"praha-1": {feature("z", "praha-1", 14, 50), feature("a", "praha-1", 14, 50)},
	}}
	fetcher.features["praha-1"][0].Properties.Name = "Zeta"
	fetcher.features["praha-1"][1].Properties.Name = "Alpha"

	e, _ := newTestExtractor(t, fetcher, ExtractorOptions{})
	axes := testAxes("praha-2", "praha-1")
	axes.LatLngs = []string{""}

	run, err := e.Run(context.Background(), axes)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "z", "b"}, ids(run.Final))
}

func TestRunDeduplicatesAcrossCombinations(t *testing.T) {
	fetcher := &stubFetcher{features: map[string][]models.Feature{
		"praha-1": {feature("same", "praha-1", 14, 50), feature("", "praha-1", 14, 50)},
		"praha-2": {feature("same", "praha-2", 14, 50), feature("", "praha-2", 14, 50)},
	}}

	e, _ := newTestExtractor(t, fetcher, ExtractorOptions{Deduplicate: true})
	run, err := e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.NoError(t, err)
	require.Len(t, run.Merged, 3)

	e, _ = newTestExtractor(t, fetcher, ExtractorOptions{Deduplicate: false})
	run, err = e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.NoError(t, err)
	require.Len(t, run.Merged, 4)
}

func TestRunNoDataWritesNothing(t *testing.T) {
	fetcher := &stubFetcher{features: map[string][]models.Feature{}}
	e, dir := newTestExtractor(t, fetcher, ExtractorOptions{})

	run, err := e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.ErrorIs(t, err, ErrNoData)
	require.Len(t, run.Results, 2)
	require.Equal(t, models.CombinationEmpty, run.Results[0].Status)

	_, statErr := os.Stat(filepath.Join(dir, "csv"))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunFailureAbortsByDefault(t *testing.T) {
	boom := &golemio.HTTPError{StatusCode: 500, URL: "http://api"}
	fetcher := &stubFetcher{
		features: map[string][]models.Feature{"praha-2": {feature("x", "praha-2", 14, 50)}},
		errs:     map[string]error{"praha-1": boom},
	}
	e, dir := newTestExtractor(t, fetcher, ExtractorOptions{})

	run, err := e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.Error(t, err)
	require.True(t, golemio.IsHTTPError(err))
	require.Len(t, fetcher.requests, 1)
	require.Equal(t, models.CombinationFailed, run.Results[0].Status)

	_, statErr := os.Stat(filepath.Join(dir, "csv"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunContinueOnError(t *testing.T) {
	boom := errors.New("connection reset")
	fetcher := &stubFetcher{
		features: map[string][]models.Feature{"praha-2": {feature("x", "praha-2", 14, 50)}},
		errs:     map[string]error{"praha-1": boom},
	}
	e, _ := newTestExtractor(t, fetcher, ExtractorOptions{ContinueOnError: true})

	run, err := e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.NoError(t, err)
	require.Len(t, fetcher.requests, 2)
	require.Equal(t, []string{"x"}, ids(run.Final))

	fetcher.features = nil
	run, err = e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.ErrorIs(t, err, ErrNoData)
	require.ErrorIs(t, err, boom)
	require.Empty(t, run.Final)
}

func TestRunEndToEndOverHTTP(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		features := []map[string]any{}
		if q.Get("offset") == "0" {
			features = append(features, map[string]any{
				"geometry": map[string]any{"coordinates": []float64{14.41, 50.08}},
				"properties": map[string]any{
					"id": "lib-" + q.Get("districts"), "name": "Knihovna " + q.Get("districts"), "district": q.Get("districts"),
					"address":       map[string]any{"street_address": "Mariánské nám. 1", "postal_code": "115 72", "address_locality": "Praha", "address_country": "Česko"},
					"opening_hours": []map[string]any{{"day_of_week": 2, "opens": "09:00"}},
				},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"features": features})
	}))
	defer srv.Close()

	cfg := &config.Config{APIURL: srv.URL, APIKey: "k", HTTPTimeoutSec: 5}
	fetcher := golemio.New(cfg, newTestLogger())
	e, _ := newTestExtractor(t, fetcher, ExtractorOptions{Deduplicate: true})

	run, err := e.Run(context.Background(), testAxes("praha-1", "praha-2"))
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, run.Final, 2)
	require.Equal(t, "Tue 09:00", run.Final[0].CasOtvorenia)

	data, err := os.ReadFile(run.CSVPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "ID knižnice,Názov knižnice,Ulica,PSČ,Mesto,Kraj,Krajina,Zemepisná šírka,Zemepisná dĺžka,Čas otvorenia\n")
	require.Contains(t, string(data), "lib-praha-1,Knihovna praha-1,Mariánské nám. 1,115 72,Praha,praha-1,Česko,50.08,14.41,Tue 09:00\n")
}
