package services

import (
	"strings"

	"golemio-extractor/models"
	"golemio-extractor/utils"
)

// weekdays maps the API's ISO day_of_week codes to short English names.
var weekdays = map[int]string{
	1: "Mon",
	2: "Tue",
	3: "Wed",
	4: "Thu",
	5: "Fri",
	6: "Sat",
	7: "Sun",
}

// Transformer maps raw API features into flat output records.
type Transformer struct {
	logger *utils.Logger
}

// NewTransformer creates a Transformer with the given logger.
func NewTransformer(logger *utils.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// TransformAll maps every feature, preserving order.
func (t *Transformer) TransformAll(features []models.Feature) []*models.Record {
	out := make([]*models.Record, 0, len(features))
	for i := range features {
		out = append(out, Transform(&features[i]))
	}
	t.logger.Debug("[transformer] Transformed %d features", len(out))
	return out
}

// Transform maps one feature. Missing text fields become empty strings;
// coordinates stay nil unless the geometry carries at least two values.
func Transform(f *models.Feature) *models.Record {
	props := f.Properties
	addr := props.Address
	if addr == nil {
		addr = &models.Address{}
	}

	r := &models.Record{
		ID:           props.ID.String(),
		Name:         props.Name.String(),
		Street:       addr.StreetAddress.String(),
		PostalCode:   addr.PostalCode.String(),
		City:         addr.AddressLocality.String(),
		Kraj:         props.District.String(),
		Country:      addr.AddressCountry.String(),
		CasOtvorenia: formatOpening(props.OpeningHours),
	}

	if coords := f.Geometry.Coordinates; len(coords) >= 2 {
		r.Longitude = coords[0]
		r.Latitude = coords[1]
	}
	return r
}

// formatOpening renders only the first opening-hours entry as "Mon 08:00",
// falling back to whichever half is present.
func formatOpening(hours []models.OpeningHour) string {
	if len(hours) == 0 {
		return ""
	}
	first := hours[0]

	var day string
	if code, ok := first.DayOfWeek.Int(); ok {
		day = weekdays[code]
	}
	opens := strings.TrimSpace(first.Opens.String())

	switch {
	case day != "" && opens != "":
		return day + " " + opens
	case opens != "":
		return opens
	default:
		return day
	}
}
