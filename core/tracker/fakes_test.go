package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/markalloc/core/allocation"
)

const waitTimeout = 2 * time.Second

type (
	fetchReply struct {
		summary allocation.SemesterAllocationSummary
		err     error
	}

	pendingFetch struct {
		ctx   context.Context
		sel   allocation.SemesterSelector
		reply chan fetchReply
	}

	// fakeFetcher blocks every fetch until the test replies to it.
	fakeFetcher struct {
		calls chan *pendingFetch
	}

	validationReply struct {
		res allocation.ValidationResult
		err error
	}

	pendingValidation struct {
		ctx   context.Context
		req   allocation.ValidationRequest
		reply chan validationReply
	}

	// fakeValidator blocks every validation until the test replies to it.
	fakeValidator struct {
		calls chan *pendingValidation
	}
)

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *pendingFetch, 16)}
}

func (f *fakeFetcher) FetchSemesterAllocation(ctx context.Context, sel allocation.SemesterSelector) (allocation.SemesterAllocationSummary, error) {
	p := &pendingFetch{ctx: ctx, sel: sel, reply: make(chan fetchReply, 1)}
	f.calls <- p
	select {
	case r := <-p.reply:
		return r.summary, r.err
	case <-ctx.Done():
		return allocation.SemesterAllocationSummary{}, ctx.Err()
	}
}

func (f *fakeFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("no fetch request")
		return nil
	}
}

func (p *pendingFetch) respond(summary allocation.SemesterAllocationSummary, err error) {
	p.reply <- fetchReply{summary: summary, err: err}
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{calls: make(chan *pendingValidation, 16)}
}

func (f *fakeValidator) ValidateMarkAllocation(ctx context.Context, req allocation.ValidationRequest) (allocation.ValidationResult, error) {
	p := &pendingValidation{ctx: ctx, req: req, reply: make(chan validationReply, 1)}
	f.calls <- p
	select {
	case r := <-p.reply:
		return r.res, r.err
	case <-ctx.Done():
		return allocation.ValidationResult{}, ctx.Err()
	}
}

func (f *fakeValidator) next(t *testing.T) *pendingValidation {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("no validation request")
		return nil
	}
}

func (f *fakeValidator) expectNone(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected validation request: %+v", p.req)
	case <-time.After(50 * time.Millisecond):
	}
}

func (p *pendingValidation) respond(res allocation.ValidationResult, err error) {
	p.reply <- validationReply{res: res, err: err}
}

func semesterSummary(id string, limit int, marks ...int) allocation.SemesterAllocationSummary {
	contents := make([]allocation.ContentAllocation, 0, len(marks))
	for i, m := range marks {
		contents = append(contents, allocation.ContentAllocation{
			ContentID:      id + "-" + string(rune('a'+i)),
			ContentTitle:   "Content",
			ContentType:    allocation.ContentAssignment,
			AllocatedMarks: m,
		})
	}
	return allocation.NewSummary(allocation.Semester{ID: id, Name: "Semester " + id, TotalMarkLimit: limit}, contents)
}
