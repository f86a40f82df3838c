// Package match holds match engine results.
package match

import (
	"math"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
)

// DefaultThreshold is the minimum aggregated score a job needs to be reported.
const DefaultThreshold = 0.6

// Result is the best resume evidence for one job posting.
type Result struct {
	JobOriginIndex int     `json:"job_origin_index"`
	Score          float64 `json:"score"`
}

// ValidateThreshold accepts values in [0, 1].
func ValidateThreshold(th float64) error {
	if math.IsNaN(th) || th < 0 || th > 1 {
		return domain.InvalidArgf("threshold %v outside [0,1]", th)
	}
	return nil
}

// Matched pairs a result with the posting it refers to.
type Matched struct {
	Result
	Job job.Job `json:"job"`
}
