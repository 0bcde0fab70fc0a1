package allocation

import (
	"fmt"
)

// Status tiers
const (
	StatusNormal   StatusTier = "normal"
	StatusWarning  StatusTier = "warning"
	StatusCritical StatusTier = "critical"
)

// Tier thresholds, in percent of the semester limit.
const (
	WarningThreshold  = 75.0
	CriticalThreshold = 90.0
)

// StatusTier grades how full a semester budget is. It is cosmetic only.
type StatusTier string

// TierFor returns the status tier of a usage percentage.
func TierFor(percent float64) StatusTier {
	switch {
	case percent >= CriticalThreshold:
		return StatusCritical
	case percent >= WarningThreshold:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// Projection is the budget picture of a summary, optionally with a draft candidate added.
type Projection struct {
	TotalLimit     int
	Allocated      int // recomputed sum of the contents
	Baseline       int // Allocated minus the excluded content's marks
	CandidateMarks int

	Remaining          int // TotalLimit - Allocated; may be negative
	ProjectedRemaining int // TotalLimit - (Baseline + CandidateMarks); may be negative, saturates at the int bounds

	CurrentPercent   float64
	ProjectedPercent float64
	CurrentStatus    StatusTier
	ProjectedStatus  StatusTier

	WouldExceedLimit bool
	ExceedsBy        int
	Message          string
}

// CurrentBarWidth is CurrentPercent clamped to [0, 100].
func (p Projection) CurrentBarWidth() float64 {
	return clampPercent(p.CurrentPercent)
}

// ProjectedBarWidth is ProjectedPercent clamped to [0, 100].
func (p Projection) ProjectedBarWidth() float64 {
	return clampPercent(p.ProjectedPercent)
}

// HasDraft reports whether a positive candidate was projected.
func (p Projection) HasDraft() bool {
	return p.CandidateMarks > 0
}

// Result converts a draft projection into the ValidationResult the server would return.
func (p Projection) Result() ValidationResult {
	return ValidationResult{
		IsValid:          !p.WouldExceedLimit,
		RemainingMarks:   p.ProjectedRemaining,
		WouldExceedLimit: p.WouldExceedLimit,
		Message:          p.Message,
	}
}

// Project computes the projection of adding candidate marks to the summary.
// A candidate <= 0 means there is no draft: the projected figures equal the current ones.
func Project(s SemesterAllocationSummary, candidate int) (Projection, error) {
	return ProjectDraft(s, ValidationRequest{SemesterID: s.SemesterID, CandidateMarks: candidate})
}

// ProjectDraft computes the projection of a validation request against the summary,
// leaving req.ExcludeContentID's current marks out of the baseline.
// An unknown excluded content is ignored.
func ProjectDraft(s SemesterAllocationSummary, req ValidationRequest) (Projection, error) {
	if s.TotalLimit <= 0 {
		return Projection{}, ErrInvalidLimit
	}

	allocated := s.AllocatedSum()
	baseline := allocated
	if req.ExcludeContentID != "" {
		if c, ok := s.Content(req.ExcludeContentID); ok {
			baseline = subMarks(baseline, c.AllocatedMarks)
		}
	}

	candidate := req.CandidateMarks
	if candidate < 0 {
		candidate = 0
	}
	projected := allocated
	if candidate > 0 {
		projected = addMarks(baseline, candidate)
	}

	p := Projection{
		TotalLimit:         s.TotalLimit,
		Allocated:          allocated,
		Baseline:           baseline,
		CandidateMarks:     candidate,
		Remaining:          subMarks(s.TotalLimit, allocated),
		ProjectedRemaining: subMarks(s.TotalLimit, projected),
		CurrentPercent:     percentOf(allocated, s.TotalLimit),
		ProjectedPercent:   percentOf(projected, s.TotalLimit),
	}
	p.CurrentStatus = TierFor(p.CurrentPercent)
	p.ProjectedStatus = TierFor(p.ProjectedPercent)

	if candidate > 0 {
		// compared against the headroom so a huge candidate cannot wrap into range
		if candidate > subMarks(s.TotalLimit, baseline) {
			p.WouldExceedLimit = true
			p.ExceedsBy = subMarks(candidate, subMarks(s.TotalLimit, baseline))
			p.Message = fmt.Sprintf(
				"Allocating %d marks would exceed the semester limit of %d by %d marks",
				candidate, s.TotalLimit, p.ExceedsBy,
			)
		} else {
			p.Message = fmt.Sprintf(
				"Allocating %d marks is within the semester limit; %d marks will remain",
				candidate, p.ProjectedRemaining,
			)
		}
	}
	return p, nil
}

// Evaluate answers a validation request against the summary, the way the allocation API does.
func Evaluate(s SemesterAllocationSummary, req ValidationRequest) (ValidationResult, error) {
	if req.CandidateMarks <= 0 {
		return ValidationResult{}, ErrInvalidCandidate
	}
	p, err := ProjectDraft(s, req)
	if err != nil {
		return ValidationResult{}, err
	}
	return p.Result(), nil
}

func percentOf(marks, limit int) float64 {
	return float64(marks) * 100 / float64(limit)
}

func clampPercent(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}
