package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"bizops-governance/backend/internal/governance"
	"bizops-governance/backend/pkg/models"
)

// historyWeeks is the length of the synthetic trend series.
const historyWeeks = 12

// RegionCompliance buckets compliance by the workflow's region, which
// the dashboards use as a department proxy.
type RegionCompliance struct {
	Region    string `json:"region"`
	Total     int    `json:"total"`
	Compliant int    `json:"compliant"`
}

// TrendPoint is one synthetic history sample.
type TrendPoint struct {
	Week  string `json:"week"`
	Score int    `json:"score"`
}

// ScoreTrend aggregates current governance compliance for a business.
// The history series is synthetic jitter around the current average,
// a placeholder until health snapshots are stored over time.
type ScoreTrend struct {
	BusinessID     string                       `json:"business_id"`
	Total          int                          `json:"total"`
	Compliant      int                          `json:"compliant"`
	ComplianceRate float64                      `json:"compliance_rate"`
	AverageScore   int                          `json:"average_score"`
	ByRegion       []RegionCompliance           `json:"by_region"`
	ByViolation    map[models.ViolationType]int `json:"by_violation"`
	History        []TrendPoint                 `json:"history"`
}

// ScoreTrend aggregates the persisted health of every workflow under a
// business. Workflows never enforced count as non-compliant with a
// zero score. Violation buckets are keyed on the stored issue codes,
// never on message text.
func (s *GovernanceService) ScoreTrend(ctx context.Context, businessID string) (*ScoreTrend, error) {
	workflows, err := s.repo.ListWorkflowsByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	trend := &ScoreTrend{
		BusinessID:  businessID,
		Total:       len(workflows),
		ByViolation: make(map[models.ViolationType]int),
	}
	regions := make(map[string]*RegionCompliance)
	scoreSum := 0
	for _, w := range workflows {
		score := 0
		if w.Health != nil {
			score = w.Health.Score
			for _, issue := range w.Health.Issues {
				if violation, ok := governance.RemediableViolation(issue.Code); ok {
					trend.ByViolation[violation]++
				}
			}
		}
		scoreSum += score
		compliant := score >= compliantScore
		if compliant {
			trend.Compliant++
		}

		region := w.Region
		if region == "" {
			region = "unassigned"
		}
		rc, ok := regions[region]
		if !ok {
			rc = &RegionCompliance{Region: region}
			regions[region] = rc
		}
		rc.Total++
		if compliant {
			rc.Compliant++
		}
	}

	if trend.Total > 0 {
		trend.ComplianceRate = float64(trend.Compliant) / float64(trend.Total)
		trend.AverageScore = scoreSum / trend.Total
	}
	for _, rc := range regions {
		trend.ByRegion = append(trend.ByRegion, *rc)
	}
	sort.Slice(trend.ByRegion, func(i, j int) bool {
		return trend.ByRegion[i].Region < trend.ByRegion[j].Region
	})
	trend.History = syntheticHistory(trend.AverageScore)
	return trend, nil
}

// syntheticHistory jitters around the current average score. The real
// time series needs stored snapshots; this keeps the dashboard chart
// populated until those exist.
func syntheticHistory(average int) []TrendPoint {
	points := make([]TrendPoint, historyWeeks)
	for i := range points {
		score := average + rand.IntN(11) - 5
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		points[i] = TrendPoint{
			Week:  fmt.Sprintf("W-%d", historyWeeks-i),
			Score: score,
		}
	}
	if len(points) > 0 {
		points[historyWeeks-1].Score = average
	}
	return points
}
