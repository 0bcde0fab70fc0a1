package allocation

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/markalloc/core"
)

// Content types
const (
	ContentExam       ContentType = "exam"
	ContentAssignment ContentType = "assignment"
	ContentQuiz       ContentType = "quiz"
	ContentMaterial   ContentType = "material"
	ContentNote       ContentType = "note"
)

// MaxMarks bounds any single mark figure accepted from a client.
const MaxMarks = 1000000

// ContentTypes lists every known ContentType.
var ContentTypes = []ContentType{ContentExam, ContentAssignment, ContentQuiz, ContentMaterial, ContentNote}

type ContentType string

func (ct ContentType) IsValid() bool {
	for _, t := range ContentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// CurrentSemester selects whichever semester the server marks as current.
const CurrentSemester SemesterSelector = "current"

// SemesterSelector names the semester a summary is requested for: an ID or CurrentSemester.
type SemesterSelector string

// SelectSemester returns the selector for the given semester ID; an empty ID selects the current semester.
func SelectSemester(id string) SemesterSelector {
	id = core.CleanString(id)
	if id == "" {
		return CurrentSemester
	}
	return SemesterSelector(id)
}

func (sel SemesterSelector) IsCurrent() bool {
	return sel == "" || sel == CurrentSemester
}

func (sel SemesterSelector) String() string {
	if sel == "" {
		return string(CurrentSemester)
	}
	return string(sel)
}

type Semester struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalMarkLimit int       `json:"total_mark_limit"`
	IsCurrent      bool      `json:"is_current"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// ContentAllocation is one content item's share of a semester's marks.
type ContentAllocation struct {
	ContentID      string      `json:"content_id"`
	ContentTitle   string      `json:"content_title"`
	ContentType    ContentType `json:"content_type"`
	AllocatedMarks int         `json:"allocated_marks"`
}

// SemesterAllocationSummary is the server's view of a semester's mark budget.
// TotalAllocated and RemainingMarks are denormalised by the server and may be stale:
// the sum of Contents is authoritative.
type SemesterAllocationSummary struct {
	SemesterID     string              `json:"semester_id"`
	SemesterName   string              `json:"semester_name"`
	TotalAllocated int                 `json:"total_allocated"`
	TotalLimit     int                 `json:"total_limit"`
	RemainingMarks int                 `json:"remaining_marks"`
	Contents       []ContentAllocation `json:"contents"`
}

// NewSummary builds a consistent summary of the semester's contents.
func NewSummary(sem Semester, contents []ContentAllocation) SemesterAllocationSummary {
	if contents == nil {
		contents = []ContentAllocation{}
	}
	s := SemesterAllocationSummary{
		SemesterID:   sem.ID,
		SemesterName: sem.Name,
		TotalLimit:   sem.TotalMarkLimit,
		Contents:     contents,
	}
	return s.Recomputed()
}

// AllocatedSum is the sum of the contents' allocated marks, saturating at the int bounds.
func (s SemesterAllocationSummary) AllocatedSum() int {
	var sum int
	for _, c := range s.Contents {
		sum = addMarks(sum, c.AllocatedMarks)
	}
	return sum
}

// addMarks returns a+b clamped to [math.MinInt, math.MaxInt].
func addMarks(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

// subMarks returns a-b clamped to [math.MinInt, math.MaxInt].
func subMarks(a, b int) int {
	if b == math.MinInt {
		if a >= 0 {
			return math.MaxInt
		}
		return a - b
	}
	return addMarks(a, -b)
}

// IsConsistent reports whether the scalar totals agree with the contents.
func (s SemesterAllocationSummary) IsConsistent() bool {
	sum := s.AllocatedSum()
	return s.TotalAllocated == sum && s.RemainingMarks == subMarks(s.TotalLimit, sum)
}

// CheckInvariant returns an *InvariantViolation if the scalar totals disagree with the contents.
func (s SemesterAllocationSummary) CheckInvariant() error {
	if s.IsConsistent() {
		return nil
	}
	return &InvariantViolation{
		SemesterID:        s.SemesterID,
		ReportedAllocated: s.TotalAllocated,
		ReportedRemaining: s.RemainingMarks,
		AllocatedSum:      s.AllocatedSum(),
		TotalLimit:        s.TotalLimit,
	}
}

// Recomputed returns a copy whose scalar totals are derived from the contents.
// Applying it twice yields the same summary.
func (s SemesterAllocationSummary) Recomputed() SemesterAllocationSummary {
	out := s
	if s.Contents != nil {
		out.Contents = make([]ContentAllocation, len(s.Contents))
		copy(out.Contents, s.Contents)
	}
	out.TotalAllocated = out.AllocatedSum()
	out.RemainingMarks = subMarks(out.TotalLimit, out.TotalAllocated)
	return out
}

// Content returns the content with the given ID.
func (s SemesterAllocationSummary) Content(id string) (ContentAllocation, bool) {
	for _, c := range s.Contents {
		if c.ContentID == id {
			return c, true
		}
	}
	return ContentAllocation{}, false
}

// ValidationRequest asks whether CandidateMarks more marks fit in a semester.
// When ExcludeContentID is set, that content's current marks are left out of the baseline
// (the content is being edited and CandidateMarks is its new value).
type ValidationRequest struct {
	SemesterID       string      `json:"semester_id" validate:"required"`
	CandidateMarks   int         `json:"candidate_marks" validate:"posmarks,maxmarks"`
	ContentType      ContentType `json:"content_type,omitempty" validate:"omitempty,contenttype"`
	ExcludeContentID string      `json:"exclude_content_id,omitempty"`
}

func (req *ValidationRequest) Validate(validate *validator.Validate) error {
	req.SemesterID = core.CleanString(req.SemesterID)
	req.ContentType = ContentType(core.CleanString(string(req.ContentType), true /* lower */))
	req.ExcludeContentID = core.CleanString(req.ExcludeContentID)
	return validate.Struct(req)
}

type ValidationResult struct {
	IsValid          bool   `json:"is_valid"`
	RemainingMarks   int    `json:"remaining_marks"`
	WouldExceedLimit bool   `json:"would_exceed_limit"`
	Message          string `json:"message"`
}

type NewSemester struct {
	Name           string `json:"name" validate:"required"`
	TotalMarkLimit int    `json:"total_mark_limit" validate:"posmarks,maxmarks"`
	IsCurrent      bool   `json:"is_current"`
}

func (ns *NewSemester) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type NewContent struct {
	Title          string      `json:"content_title" validate:"required"`
	Type           ContentType `json:"content_type" validate:"required,contenttype"`
	AllocatedMarks int         `json:"allocated_marks" validate:"gte=0,maxmarks"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Type = ContentType(core.CleanString(string(nc.Type), true /* lower */))
	return validate.Struct(nc)
}

// UpdateContent holds the fields of a content to change; zero values are left untouched.
type UpdateContent struct {
	Title          string      `json:"content_title"`
	Type           ContentType `json:"content_type" validate:"omitempty,contenttype"`
	AllocatedMarks *int        `json:"allocated_marks" validate:"omitempty,gte=0,maxmarks"`
}

func (uc *UpdateContent) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Type = ContentType(core.CleanString(string(uc.Type), true /* lower */))
	return validate.Struct(uc)
}
