package review

// Stats aggregates reports across a run for the viewer header and the CLI summary.
type Stats struct {
	Pages       int            `json:"pages"`
	Reviewed    int            `json:"reviewed"`
	TotalIssues int            `json:"total_issues"`
	Quality     map[string]int `json:"quality"`
	Severity    map[string]int `json:"severity"`
}

// NewStats returns empty stats with every known bucket present.
func NewStats() *Stats {
	return &Stats{
		Quality: map[string]int{
			QualityExcellent: 0,
			QualityGood:      0,
			QualityFair:      0,
			QualityPoor:      0,
		},
		Severity: map[string]int{
			SeverityCritical: 0,
			SeverityMajor:    0,
			SeverityMinor:    0,
		},
	}
}

// Add counts one page. A nil report counts the page as not reviewed.
func (s *Stats) Add(r *Report) {
	s.Pages++
	if r == nil {
		return
	}
	s.Reviewed++
	s.Quality[r.Quality()]++
	s.TotalIssues += len(r.Issues)
	for _, iss := range r.Issues {
		if iss.Severity != "" {
			s.Severity[iss.Severity]++
		}
	}
}

// ComputeStats aggregates reports; nil entries are pages without a usable review.
func ComputeStats(reports []*Report) *Stats {
	s := NewStats()
	for _, r := range reports {
		s.Add(r)
	}
	return s
}
