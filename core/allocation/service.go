package allocation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/markalloc/core"
)

var (
	NowFunc = time.Now // mockable
	newID   = func() string { return uuid.New().String() }
)

type (
	// SummaryFetcher fetches the allocation summary of a semester.
	SummaryFetcher interface {
		FetchSemesterAllocation(ctx context.Context, sel SemesterSelector) (SemesterAllocationSummary, error)
	}

	// MarkValidator checks a draft mark value against a semester's budget.
	MarkValidator interface {
		ValidateMarkAllocation(ctx context.Context, req ValidationRequest) (ValidationResult, error)
	}

	// RemoteAPI is the allocation API the client side engine talks to.
	RemoteAPI interface {
		SummaryFetcher
		MarkValidator
	}

	Repository interface {
		// CreateSemester stores a new semester; if it is current, any other semester stops being current.
		CreateSemester(ctx context.Context, sem Semester) (Semester, error)
		QuerySemesters(ctx context.Context) ([]Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)
		GetCurrentSemester(ctx context.Context) (Semester, error)
		// QueryContents returns the semester's contents in creation order.
		QueryContents(ctx context.Context, semesterID string) ([]ContentAllocation, error)
		CreateContent(ctx context.Context, semesterID string, content ContentAllocation) (ContentAllocation, error)
		UpdateContent(ctx context.Context, semesterID string, content ContentAllocation) (ContentAllocation, error)
		DeleteContent(ctx context.Context, semesterID, contentID string) error
	}

	// Service is the server side of the allocation API.
	// It owns committed allocations and enforces the semester budget at commit time.
	Service struct {
		repo   Repository
		logger core.Logger

		// serialises budget checks with the writes they guard
		commitMu sync.Mutex
	}
)

var _ RemoteAPI = (*Service)(nil)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) getSemester(ctx context.Context, sel SemesterSelector) (Semester, error) {
	if sel.IsCurrent() {
		return svc.repo.GetCurrentSemester(ctx)
	}
	return svc.repo.GetSemester(ctx, string(sel))
}

func (svc *Service) summary(ctx context.Context, sem Semester) (SemesterAllocationSummary, error) {
	contents, err := svc.repo.QueryContents(ctx, sem.ID)
	if err != nil {
		return SemesterAllocationSummary{}, errors.Wrapf(err, "querying contents of semester %s", sem.ID)
	}
	return NewSummary(sem, contents), nil
}

func (svc *Service) FetchSemesterAllocation(ctx context.Context, sel SemesterSelector) (SemesterAllocationSummary, error) {
	sem, err := svc.getSemester(ctx, sel)
	if err != nil {
		return SemesterAllocationSummary{}, err
	}
	return svc.summary(ctx, sem)
}

// ValidateMarkAllocation evaluates a draft against the committed allocations; nothing is stored.
func (svc *Service) ValidateMarkAllocation(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	summary, err := svc.FetchSemesterAllocation(ctx, SelectSemester(req.SemesterID))
	if err != nil {
		return ValidationResult{}, err
	}
	return Evaluate(summary, req)
}

func (svc *Service) QuerySemesters(ctx context.Context) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx)
}

func (svc *Service) GetSemester(ctx context.Context, sel SemesterSelector) (Semester, error) {
	return svc.getSemester(ctx, sel)
}

func (svc *Service) CreateSemester(ctx context.Context, ns NewSemester) (Semester, error) {
	if ns.TotalMarkLimit <= 0 {
		return Semester{}, core.NewValidationError(
			ErrInvalidLimit,
			core.FieldError{Field: "total_mark_limit", Error: ErrInvalidLimit.Error()},
		)
	}
	if err := checkMarksBound("total_mark_limit", ns.TotalMarkLimit); err != nil {
		return Semester{}, err
	}
	now := NowFunc().UTC()
	sem := Semester{
		ID:             newID(),
		Name:           ns.Name,
		TotalMarkLimit: ns.TotalMarkLimit,
		IsCurrent:      ns.IsCurrent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateSemester(ctx, sem)
}

func checkMarksBound(field string, marks int) error {
	if marks <= MaxMarks {
		return nil
	}
	return core.NewValidationError(ErrTooManyMarks, core.FieldError{Field: field, Error: ErrTooManyMarks.Error()})
}

// checkBudget rejects a commit that would take the semester over its limit.
func (svc *Service) checkBudget(summary SemesterAllocationSummary, req ValidationRequest) error {
	res, err := Evaluate(summary, req)
	if err != nil {
		return err
	}
	if res.WouldExceedLimit {
		svc.logger.Info("allocation rejected: "+res.Message, core.Fields{
			"semester_id":     summary.SemesterID,
			"candidate_marks": req.CandidateMarks,
			"remaining_marks": res.RemainingMarks,
		})
		return core.NewValidationError(
			ErrBudgetExceeded,
			core.FieldError{Field: "allocated_marks", Error: res.Message},
		)
	}
	return nil
}

// CommitContent adds a content to the semester if its marks fit in the remaining budget.
func (svc *Service) CommitContent(ctx context.Context, sel SemesterSelector, nc NewContent) (ContentAllocation, error) {
	if err := checkMarksBound("allocated_marks", nc.AllocatedMarks); err != nil {
		return ContentAllocation{}, err
	}

	svc.commitMu.Lock()
	defer svc.commitMu.Unlock()

	sem, err := svc.getSemester(ctx, sel)
	if err != nil {
		return ContentAllocation{}, err
	}
	if nc.AllocatedMarks > 0 {
		summary, err := svc.summary(ctx, sem)
		if err != nil {
			return ContentAllocation{}, err
		}
		req := ValidationRequest{SemesterID: sem.ID, CandidateMarks: nc.AllocatedMarks, ContentType: nc.Type}
		if err := svc.checkBudget(summary, req); err != nil {
			return ContentAllocation{}, err
		}
	}

	content := ContentAllocation{
		ContentID:      newID(),
		ContentTitle:   nc.Title,
		ContentType:    nc.Type,
		AllocatedMarks: nc.AllocatedMarks,
	}
	return svc.repo.CreateContent(ctx, sem.ID, content)
}

// UpdateContent edits a committed content. New marks are checked against the budget excluding the
// content's current marks; lowering the marks is always allowed.
func (svc *Service) UpdateContent(ctx context.Context, semesterID, contentID string, uc UpdateContent) (ContentAllocation, error) {
	svc.commitMu.Lock()
	defer svc.commitMu.Unlock()

	sem, err := svc.repo.GetSemester(ctx, semesterID)
	if err != nil {
		return ContentAllocation{}, err
	}
	summary, err := svc.summary(ctx, sem)
	if err != nil {
		return ContentAllocation{}, err
	}
	content, ok := summary.Content(contentID)
	if !ok {
		return ContentAllocation{}, ErrContentNotFound
	}

	if uc.Title != "" {
		content.ContentTitle = uc.Title
	}
	if uc.Type != "" {
		content.ContentType = uc.Type
	}
	if uc.AllocatedMarks != nil {
		marks := *uc.AllocatedMarks
		if err := checkMarksBound("allocated_marks", marks); err != nil {
			return ContentAllocation{}, err
		}
		if marks > content.AllocatedMarks {
			req := ValidationRequest{
				SemesterID:       sem.ID,
				CandidateMarks:   marks,
				ContentType:      content.ContentType,
				ExcludeContentID: content.ContentID,
			}
			if err := svc.checkBudget(summary, req); err != nil {
				return ContentAllocation{}, err
			}
		}
		content.AllocatedMarks = marks
	}
	return svc.repo.UpdateContent(ctx, sem.ID, content)
}

func (svc *Service) DeleteContent(ctx context.Context, semesterID, contentID string) error {
	svc.commitMu.Lock()
	defer svc.commitMu.Unlock()
	return svc.repo.DeleteContent(ctx, semesterID, contentID)
}
