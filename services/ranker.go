package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golemio-extractor/models"
)

// Point is a reference location in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// ParsePoint parses a "lat,lng" string.
func ParsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("point %q must be lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	return Point{Lat: lat, Lng: lng}, nil
}

// ReferencePoint returns the first configured point, if it parses.
func ReferencePoint(latlngs []string) *Point {
	if len(latlngs) == 0 {
		return nil
	}
	p, err := ParsePoint(latlngs[0])
	if err != nil {
		return nil
	}
	return &p
}

// SquaredDistance is the squared Euclidean distance in degree space. Records
// without usable coordinates are infinitely far away.
func SquaredDistance(ref Point, r *models.Record) float64 {
	if !r.HasCoordinates() {
		return math.Inf(1)
	}
	lat, lng := *r.Latitude, *r.Longitude
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return math.Inf(1)
	}
	dLat := lat - ref.Lat
	dLng := lng - ref.Lng
	return dLat*dLat + dLng*dLng
}

// Rank sorts records in place: by distance to ref when given, otherwise by
// (kraj, name). The sort is stable so ties keep merge order.
func Rank(records []*models.Record, ref *Point) {
	if ref != nil {
		sort.SliceStable(records, func(i, j int) bool {
			return SquaredDistance(*ref, records[i]) < SquaredDistance(*ref, records[j])
		})
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Kraj != records[j].Kraj {
			return records[i].Kraj < records[j].Kraj
		}
		return records[i].Name < records[j].Name
	})
}

// Truncate returns at most limit records. A negative limit keeps everything.
func Truncate(records []*models.Record, limit int) []*models.Record {
	if limit < 0 || len(records) <= limit {
		return records
	}
	return records[:limit]
}
