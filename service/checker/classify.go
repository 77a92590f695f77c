package checker

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/JustinTDCT/onlineTracker/model"
)

// Verdict is the status derived from a set of probe attempts.
type Verdict struct {
	Status         model.Status
	ResponseTimeMs *int
	Details        string
}

// Classify applies success-rate banding first and latency banding to the
// remaining case. latencies holds the latency of every successful attempt.
// noun names the attempts in details, e.g. "pings".
func Classify(successes, total int, latencies []float64, okMs, degradedMs int, noun string) Verdict {
	if total <= 0 {
		return Verdict{Status: model.StatusUnknown, Details: "No probe attempts"}
	}

	var v Verdict
	if len(latencies) > 0 {
		mean := int(stat.Mean(latencies, nil))
		v.ResponseTimeMs = &mean
	}

	rateDetails := fmt.Sprintf("%d/%d %s succeeded (%d%%)", successes, total, noun, successes*100/total)
	switch {
	case 2*successes <= total:
		v.Status = model.StatusDown
		v.Details = rateDetails
		return v
	case 4*successes <= 3*total:
		v.Status = model.StatusDegraded
		v.Details = rateDetails
		return v
	}

	if v.ResponseTimeMs == nil {
		v.Status = model.StatusUnknown
		v.Details = "No response time data"
		return v
	}
	switch mean := *v.ResponseTimeMs; {
	case mean <= okMs:
		v.Status = model.StatusUp
	case mean <= degradedMs:
		v.Status = model.StatusDegraded
		v.Details = fmt.Sprintf("High latency: %dms", mean)
	default:
		v.Status = model.StatusDown
		v.Details = fmt.Sprintf("Very high latency: %dms", mean)
	}
	return v
}
