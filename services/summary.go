package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golemio-extractor/models"
	"golemio-extractor/utils"
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate computes the run report. ref, when set, selects the nearest
// written library.
func (s *SummaryService) Generate(run *models.Run, ref *Point) *models.RunSummary {
	summary := &models.RunSummary{
		RecordsByKraj: make(map[string]int),
	}
	if run == nil {
		return summary
	}

	summary.RunID = run.ID
	summary.Date = run.Date
	summary.Combinations = len(run.Combinations)
	summary.MergedRecords = len(run.Merged)
	summary.WrittenRecords = len(run.Final)
	summary.CSVPath = run.CSVPath
	summary.JSONPath = run.JSONPath

	for _, res := range run.Results {
		switch res.Status {
		case models.CombinationFailed:
			summary.FailedCombinations++
		case models.CombinationEmpty:
			summary.EmptyCombinations++
		}
	}

	for _, r := range run.Final {
		if r.Kraj != "" {
			summary.RecordsByKraj[r.Kraj]++
		}
		if !r.HasCoordinates() {
			summary.WithoutCoordinates++
			continue
		}
		if ref != nil && (summary.Nearest == nil || SquaredDistance(*ref, r) < SquaredDistance(*ref, summary.Nearest)) {
			summary.Nearest = r
		}
	}

	return summary
}

func (s *SummaryService) Print(w io.Writer, r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📚 GOLEMIO LIBRARIES SNAPSHOT %s\033[0m\n", r.Date)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID               : %s\n", r.RunID)
	fmt.Fprintf(w, "  Combinations         : \033[1m%d\033[0m (empty %d, failed %d)\n",
		r.Combinations, r.EmptyCombinations, r.FailedCombinations)
	fmt.Fprintf(w, "  Merged records       : \033[1m%d\033[0m\n", r.MergedRecords)
	fmt.Fprintf(w, "  Written records      : \033[1m%d\033[0m\n", r.WrittenRecords)
	fmt.Fprintf(w, "  Without coordinates  : %d\n", r.WithoutCoordinates)
	fmt.Fprintln(w)

	if r.Nearest != nil {
		fmt.Fprintf(w, "\033[1;33m  Nearest Library\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.Nearest.Name, 50))
		fmt.Fprintf(w, "  Address : %s, %s %s\n", r.Nearest.Street, r.Nearest.PostalCode, r.Nearest.City)
		if r.Nearest.CasOtvorenia != "" {
			fmt.Fprintf(w, "  Opens   : %s\n", r.Nearest.CasOtvorenia)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Libraries by Kraj\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.RecordsByKraj) == 0 {
		fmt.Fprintf(w, "  No district data\n")
	} else {
		type krajCount struct {
			kraj  string
			count int
		}
		var counts []krajCount
		for k, c := range r.RecordsByKraj {
			counts = append(counts, krajCount{k, c})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].kraj < counts[j].kraj
		})
		for _, kc := range counts {
			bar := strings.Repeat("█", kc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(kc.kraj, 28), bar, kc.count)
		}
	}

	if r.CSVPath != "" || r.JSONPath != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  CSV  → %s\n", r.CSVPath)
		fmt.Fprintf(w, "  JSON → %s\n", r.JSONPath)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
