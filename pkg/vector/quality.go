package vector

import "math"

// Quality issue classes. Each one present costs 0.25 of the score.
const (
	IssueNonFinite   = "non_finite_values"
	IssueOutOfRange  = "values_out_of_range"
	IssueLowVariance = "near_zero_variance"
	IssueTooShort    = "insufficient_length"
)

const (
	maxOutOfRangeFraction = 0.1
	minVariance           = 1e-6
	issuePenalty          = 0.25
)

type QualityReport struct {
	Valid  bool     `json:"valid"`
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

func (p *Preparator) ValidateQuality(v []float64) QualityReport {
	return ValidateQuality(v)
}

func ValidateQuality(v []float64) QualityReport {
	var issues []string

	var finite []float64
	outOfRange := 0
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		finite = append(finite, x)
		if x < -1 || x > 1 {
			outOfRange++
		}
	}
	if len(finite) < len(v) {
		issues = append(issues, IssueNonFinite)
	}
	if len(v) > 0 && float64(outOfRange)/float64(len(v)) > maxOutOfRangeFraction {
		issues = append(issues, IssueOutOfRange)
	}
	if variance(finite) < minVariance {
		issues = append(issues, IssueLowVariance)
	}
	if len(v) < VectorLength {
		issues = append(issues, IssueTooShort)
	}

	score := math.Max(0, 1-issuePenalty*float64(len(issues)))
	return QualityReport{Valid: len(issues) == 0, Score: score, Issues: issues}
}

// variance is the population variance; fewer than two values count as zero.
func variance(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	var sum float64
	for _, x := range v {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(v))
}
