package sink

import (
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
)

// Summary aggregates the outcomes of a run.
type Summary struct {
	Entities       int                      `json:"entities"`
	Errors         int                      `json:"errors"`
	ErrorsByCode   map[simerr.Code]int      `json:"errors_by_code,omitempty"`
	Deaths         map[entity.DeathType]int `json:"deaths"`
	WithOPL        int                      `json:"with_opl"`
	Cancers        int                      `json:"cancers"`
	CancersByStage map[string]int           `json:"cancers_by_stage,omitempty"`
	ScreenDetected int                      `json:"screen_detected"`
	Recurrences    int                      `json:"recurrences"`
	FalsePositives int                      `json:"false_positives"`
	FalseNegatives int                      `json:"false_negatives"`
	DentalVisits   int                      `json:"dental_visits"`

	// DeathAge is the mean and standard deviation of the age at which
	// entities that did not fail left the model.
	DeathAgeMean float64 `json:"death_age_mean"`
	DeathAgeSD   float64 `json:"death_age_sd"`

	ages []float64
}

// ErrorRate is the fraction of entities that ended in the error state.
func (s Summary) ErrorRate() float64 {
	if s.Entities == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Entities)
}

// Summarize aggregates records.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		s.Add(r)
	}
	s.Finish()
	return s
}

// Add folds one record into the summary. Call Finish after the last one.
func (s *Summary) Add(r Record) {
	if s.Deaths == nil {
		s.ErrorsByCode = map[simerr.Code]int{}
		s.Deaths = map[entity.DeathType]int{}
		s.CancersByStage = map[string]int{}
	}
	s.Entities++
	s.DentalVisits += r.DentalVisits
	s.FalsePositives += r.FalsePositives
	s.FalseNegatives += r.FalseNegatives
	if r.HasOPL {
		s.WithOPL++
	}
	if r.FirstCancer != "" {
		s.Cancers++
		s.CancersByStage[r.FirstCancer]++
		if r.ScreenDetected {
			s.ScreenDetected++
		}
	}
	if r.TxRecurrence != "" {
		s.Recurrences++
	}
	if r.Failed() {
		s.Errors++
		code := r.ErrorCode
		if code == "" {
			code = "UNKNOWN"
		}
		s.ErrorsByCode[code]++
		return
	}
	s.Deaths[r.DeathType]++
	s.ages = append(s.ages, r.DeathAge())
}

// Finish computes the death age statistics.
func (s *Summary) Finish() {
	switch len(s.ages) {
	case 0:
	case 1:
		s.DeathAgeMean = s.ages[0]
	default:
		s.DeathAgeMean, s.DeathAgeSD = stat.PopMeanStdDev(s.ages, nil)
	}
}
