package evaluation

import "fmt"

// Thresholds gate a run. Zero values disable a check.
type Thresholds struct {
	MinSectionRecall float64
	MinTermRecall    float64
	MaxFailed        int
}

// Check lists every threshold the summary misses.
func (t Thresholds) Check(s *Summary) []string {
	var violations []string
	if t.MinSectionRecall > 0 && s.AvgSectionRecall < t.MinSectionRecall {
		violations = append(violations, fmt.Sprintf("section recall %.3f below %.3f", s.AvgSectionRecall, t.MinSectionRecall))
	}
	if t.MinTermRecall > 0 && s.AvgTermRecall < t.MinTermRecall {
		violations = append(violations, fmt.Sprintf("term recall %.3f below %.3f", s.AvgTermRecall, t.MinTermRecall))
	}
	if t.MaxFailed > 0 && s.Failed > t.MaxFailed {
		violations = append(violations, fmt.Sprintf("%d failed cases exceed %d", s.Failed, t.MaxFailed))
	}
	return violations
}
