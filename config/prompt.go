package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golemio-extractor/models"
)

// PromptAxes asks for each parameter axis on out and reads answers from in.
// Empty answers keep the defaults. Prompted districts form one group.
func PromptAxes(in io.Reader, out io.Writer) (models.Axes, error) {
	sc := bufio.NewScanner(in)
	ask := func(question string) string {
		fmt.Fprintln(out, question)
		if sc.Scan() {
			return strings.TrimSpace(sc.Text())
		}
		return ""
	}

	axes := models.Axes{
		Districts:    [][]string{{"praha-1"}},
		LatLngs:      []string{DefaultLatLng},
		Ranges:       []int{10000},
		Limits:       []int{10},
		Offsets:      []int{0},
		UpdatedSince: []string{DefaultUpdatedSince},
	}

	if v := ask("Enter districts separated by comma (e.g. praha-1,praha-2) or leave empty for default:"); v != "" {
		if ds := SplitList(v, ","); len(ds) > 0 {
			axes.Districts = [][]string{ds}
		}
	}
	if v := ask("Enter coordinates lat,lng (e.g. 50.124935,14.457204) or leave empty for default:"); v != "" {
		axes.LatLngs = []string{v}
	}
	if v := ask("Enter range in meters (e.g. 10000) or leave empty for default:"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return models.Axes{}, fmt.Errorf("config: invalid range %q: %w", v, err)
		}
		axes.Ranges = []int{n}
	}
	if v := ask("Enter limit (e.g. 10) or leave empty for default:"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return models.Axes{}, fmt.Errorf("config: invalid limit %q", v)
		}
		axes.Limits = []int{n}
	}
	if v := ask("Enter offset (e.g. 0) or leave empty for default:"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return models.Axes{}, fmt.Errorf("config: invalid offset %q", v)
		}
		axes.Offsets = []int{n}
	}
	if v := ask("Enter updated_since (e.g. 2019-05-18T07:38:37.000Z) or leave empty for default:"); v != "" {
		axes.UpdatedSince = []string{v}
	}

	return axes, sc.Err()
}

// Axes derives the parameter axes from c. Every configured district becomes
// its own single-district group. Empty optional axes collapse to one zero
// value so the fetcher applies its fallbacks.
func (c *Config) Axes() models.Axes {
	axes := models.Axes{
		LatLngs:      c.LatLngs,
		Ranges:       c.Ranges,
		Limits:       c.Limits,
		Offsets:      c.Offsets,
		UpdatedSince: c.UpdatedSince,
	}
	for _, d := range c.Districts {
		axes.Districts = append(axes.Districts, []string{d})
	}
	if len(axes.Districts) == 0 {
		axes.Districts = [][]string{nil}
	}
	if len(axes.LatLngs) == 0 {
		axes.LatLngs = []string{""}
	}
	if len(axes.Ranges) == 0 {
		axes.Ranges = []int{0}
	}
	if len(axes.Offsets) == 0 {
		axes.Offsets = []int{0}
	}
	if len(axes.UpdatedSince) == 0 {
		axes.UpdatedSince = []string{""}
	}
	return axes
}
