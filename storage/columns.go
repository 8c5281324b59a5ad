package storage

import (
	"strconv"

	"golemio-extractor/models"
)

// Header is the localized column order shared by the CSV and JSON outputs.
var Header = []string{
	"ID knižnice",
	"Názov knižnice",
	"Ulica",
	"PSČ",
	"Mesto",
	"Kraj",
	"Krajina",
	"Zemepisná šírka",
	"Zemepisná dĺžka",
	"Čas otvorenia",
}

// jsonRecord mirrors Header; field order drives key order in the output.
type jsonRecord struct {
	ID           string   `json:"ID knižnice"`
	Name         string   `json:"Názov knižnice"`
	Street       string   `json:"Ulica"`
	PostalCode   string   `json:"PSČ"`
	City         string   `json:"Mesto"`
	Kraj         string   `json:"Kraj"`
	Country      string   `json:"Krajina"`
	Latitude     *float64 `json:"Zemepisná šírka"`
	Longitude    *float64 `json:"Zemepisná dĺžka"`
	CasOtvorenia string   `json:"Čas otvorenia"`
}

func toJSONRecord(r *models.Record) jsonRecord {
	return jsonRecord{
		ID:           r.ID,
		Name:         r.Name,
		Street:       r.Street,
		PostalCode:   r.PostalCode,
		City:         r.City,
		Kraj:         r.Kraj,
		Country:      r.Country,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		CasOtvorenia: r.CasOtvorenia,
	}
}

func csvRow(r *models.Record) []string {
	return []string{
		r.ID,
		r.Name,
		r.Street,
		r.PostalCode,
		r.City,
		r.Kraj,
		r.Country,
		formatCoord(r.Latitude),
		formatCoord(r.Longitude),
		r.CasOtvorenia,
	}
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// SnapshotName is the base file name used for a snapshot date.
func SnapshotName(date string) string {
	return "libraries_" + date + "_ALL"
}
