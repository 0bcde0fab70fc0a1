package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/markalloc/core/allocation"
	"github.com/trezcool/markalloc/tests"
)

func Test_home(t *testing.T) {
	server, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mark Allocation API")
}

func Test_allocationApi_semesterAllocation(t *testing.T) {
	server, repo := setup(t)

	runHTTPTests(t, server, []httpTest{
		{
			name: "no current semester", path: "/v1/semesters/current/allocation",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "current semester not found"}),
		},
	})

	past := testutil.CreateSemester(t, repo, "Spring 2024", 80, false)
	curr := testutil.CreateSemester(t, repo, "Fall 2024", 100, true)
	exam := testutil.CreateContent(t, repo, curr.ID, "Midterm", allocation.ContentExam, 60)
	quiz := testutil.CreateContent(t, repo, curr.ID, "Quiz 1", allocation.ContentQuiz, 20)

	currSummary := allocation.SemesterAllocationSummary{
		SemesterID:     curr.ID,
		SemesterName:   "Fall 2024",
		TotalAllocated: 80,
		TotalLimit:     100,
		RemainingMarks: 20,
		Contents:       []allocation.ContentAllocation{exam, quiz},
	}

	runHTTPTests(t, server, []httpTest{
		{name: "current", path: "/v1/semesters/current/allocation", wantCode: http.StatusOK, wantData: marchallObj(t, currSummary)},
		{name: "by id", path: "/v1/semesters/" + curr.ID + "/allocation", wantCode: http.StatusOK, wantData: marchallObj(t, currSummary)},
		{name: "trailing slash", path: "/v1/semesters/" + curr.ID + "/allocation/", wantCode: http.StatusOK, wantData: marchallObj(t, currSummary)},
		{
			name: "empty semester", path: "/v1/semesters/" + past.ID + "/allocation", wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.SemesterAllocationSummary{
				SemesterID:     past.ID,
				SemesterName:   "Spring 2024",
				TotalLimit:     80,
				RemainingMarks: 80,
				Contents:       []allocation.ContentAllocation{},
			}),
		},
		{name: "unknown", path: "/v1/semesters/lol/allocation", wantCode: http.StatusNotFound, wantData: marchallObj(t, errSemesterNotFound)},
	})
}

func Test_allocationApi_validateMarks(t *testing.T) {
	server, repo := setup(t)

	sem := testutil.CreateSemester(t, repo, "Fall 2024", 100, true)
	testutil.CreateContent(t, repo, sem.ID, "Midterm", allocation.ContentExam, 60)
	quiz := testutil.CreateContent(t, repo, sem.ID, "Quiz 1", allocation.ContentQuiz, 20)

	body := func(req allocation.ValidationRequest) []byte { return marchallObj(t, req) }

	runHTTPTests(t, server, []httpTest{
		{
			name: "within limit", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     body(allocation.ValidationRequest{SemesterID: sem.ID, CandidateMarks: 15}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.ValidationResult{
				IsValid:        true,
				RemainingMarks: 5,
				Message:        "Allocating 15 marks is within the semester limit; 5 marks will remain",
			}),
		},
		{
			name: "exceeds limit", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     body(allocation.ValidationRequest{SemesterID: sem.ID, CandidateMarks: 30, ContentType: allocation.ContentAssignment}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.ValidationResult{
				RemainingMarks:   -10,
				WouldExceedLimit: true,
				Message:          "Allocating 30 marks would exceed the semester limit of 100 by 10 marks",
			}),
		},
		{
			name: "editing excludes the content", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     body(allocation.ValidationRequest{SemesterID: sem.ID, CandidateMarks: 25, ExcludeContentID: quiz.ContentID}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.ValidationResult{
				IsValid:        true,
				RemainingMarks: 15,
				Message:        "Allocating 25 marks is within the semester limit; 15 marks will remain",
			}),
		},
		{
			name: "current semester", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     []byte(`{"semester_id": "current", "candidate_marks": 20}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.ValidationResult{
				IsValid:        true,
				RemainingMarks: 0,
				Message:        "Allocating 20 marks is within the semester limit; 0 marks will remain",
			}),
		},
		{
			name: "invalid data", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     []byte(`{"semester_id": "  ", "candidate_marks": 0, "content_type": "essay"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"semester_id":     "this field is required",
				"candidate_marks": "must be a positive number of marks",
				"content_type":    "invalid content type",
			}),
		},
		{
			name: "too many marks", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     []byte(`{"semester_id": "current", "candidate_marks": 9223372036854775807}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"candidate_marks": "must be at most 1000000 marks"}),
		},
		{
			name: "unknown semester", method: http.MethodPost, path: "/v1/allocations/validate",
			body:     body(allocation.ValidationRequest{SemesterID: "lol", CandidateMarks: 5}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errSemesterNotFound),
		},
	})

	// nothing was committed
	summary, err := allocation.NewService(repo, testutil.NewLogger()).
		FetchSemesterAllocation(context.Background(), allocation.CurrentSemester)
	require.NoError(t, err)
	assert.Equal(t, 80, summary.TotalAllocated)
}

func Test_allocationApi_semesters(t *testing.T) {
	server, repo := setup(t)

	runHTTPTests(t, server, []httpTest{
		{name: "empty", path: "/v1/semesters", wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "invalid data", method: http.MethodPost, path: "/v1/semesters",
			body:     []byte(`{"name": "", "total_mark_limit": -1}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"total_mark_limit": "must be a positive number of marks",
			}),
		},
	})

	spring := testutil.CreateSemester(t, repo, "Spring 2024", 80, true)

	req, rec := newRequest(http.MethodPost, "/v1/semesters", []byte(`{"name": " Fall 2024 ", "total_mark_limit": 100, "is_current": true}`))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var fall allocation.Semester
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fall))
	assert.NotEmpty(t, fall.ID)
	assert.Equal(t, "Fall 2024", fall.Name)
	assert.Equal(t, 100, fall.TotalMarkLimit)
	assert.True(t, fall.IsCurrent)

	spring.IsCurrent = false
	runHTTPTests(t, server, []httpTest{
		{name: "list", path: "/v1/semesters", wantCode: http.StatusOK, wantData: marchallList(t, spring, fall)},
		{name: "current", path: "/v1/semesters/current", wantCode: http.StatusOK, wantData: marchallObj(t, fall)},
		{name: "by id", path: "/v1/semesters/" + spring.ID, wantCode: http.StatusOK, wantData: marchallObj(t, spring)},
		{name: "unknown", path: "/v1/semesters/lol", wantCode: http.StatusNotFound, wantData: marchallObj(t, errSemesterNotFound)},
	})
}

func Test_allocationApi_contents(t *testing.T) {
	server, repo := setup(t)

	sem := testutil.CreateSemester(t, repo, "Fall 2024", 100, true)
	exam := testutil.CreateContent(t, repo, sem.ID, "Midterm", allocation.ContentExam, 60)
	quiz := testutil.CreateContent(t, repo, sem.ID, "Quiz 1", allocation.ContentQuiz, 20)

	contentsPath := "/v1/semesters/" + sem.ID + "/contents"
	quizPath := contentsPath + "/" + quiz.ContentID

	runHTTPTests(t, server, []httpTest{
		{
			name: "commit over budget", method: http.MethodPost, path: contentsPath,
			body:     []byte(`{"content_title": "Essay", "content_type": "assignment", "allocated_marks": 30}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"allocated_marks": "Allocating 30 marks would exceed the semester limit of 100 by 10 marks",
			}),
		},
		{
			name: "commit invalid", method: http.MethodPost, path: contentsPath,
			body:     []byte(`{"content_title": "", "content_type": "essay", "allocated_marks": 5}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"content_title": "this field is required",
				"content_type":  "invalid content type",
			}),
		},
		{
			name: "commit to unknown semester", method: http.MethodPost, path: "/v1/semesters/lol/contents",
			body:     []byte(`{"content_title": "Essay", "content_type": "assignment", "allocated_marks": 5}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errSemesterNotFound),
		},
		{
			name: "edit over budget", method: http.MethodPut, path: quizPath,
			body:     []byte(`{"allocated_marks": 45}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"allocated_marks": "Allocating 45 marks would exceed the semester limit of 100 by 5 marks",
			}),
		},
		{
			name: "edit within budget", method: http.MethodPut, path: quizPath,
			body:     []byte(`{"content_title": "Quiz 1b", "allocated_marks": 40}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.ContentAllocation{
				ContentID:      quiz.ContentID,
				ContentTitle:   "Quiz 1b",
				ContentType:    allocation.ContentQuiz,
				AllocatedMarks: 40,
			}),
		},
		{
			name: "edit unknown content", method: http.MethodPut, path: contentsPath + "/lol",
			body:     []byte(`{"allocated_marks": 1}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "content not found"}),
		},
		{name: "delete", method: http.MethodDelete, path: contentsPath + "/" + exam.ContentID, wantCode: http.StatusNoContent},
		{
			name: "delete again", method: http.MethodDelete, path: contentsPath + "/" + exam.ContentID,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "content not found"}),
		},
	})

	req, rec := newRequest(http.MethodPost, contentsPath, []byte(`{"content_title": "Final", "content_type": "EXAM", "allocated_marks": 60}`))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var final allocation.ContentAllocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.NotEmpty(t, final.ContentID)
	assert.Equal(t, allocation.ContentExam, final.ContentType)

	quiz.ContentTitle = "Quiz 1b"
	quiz.AllocatedMarks = 40
	runHTTPTests(t, server, []httpTest{
		{
			name: "summary", path: "/v1/semesters/current/allocation", wantCode: http.StatusOK,
			wantData: marchallObj(t, allocation.SemesterAllocationSummary{
				SemesterID:     sem.ID,
				SemesterName:   "Fall 2024",
				TotalAllocated: 100,
				TotalLimit:     100,
				RemainingMarks: 0,
				Contents:       []allocation.ContentAllocation{quiz, final},
			}),
		},
	})
}

func Test_metrics(t *testing.T) {
	server, repo := setup(t)
	sem := testutil.CreateSemester(t, repo, "Fall 2024", 100, true)

	for _, marks := range []string{"10", "20", "200"} {
		req, rec := newRequest(http.MethodPost, "/v1/allocations/validate",
			[]byte(`{"semester_id": "`+sem.ID+`", "candidate_marks": `+marks+`}`))
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req, rec := newRequest(http.MethodGet, "/metrics")
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(rec.Body.String(), "\n")
	assert.Contains(t, lines, `markalloc_api_validations_total{outcome="valid"} 2`)
	assert.Contains(t, lines, `markalloc_api_validations_total{outcome="exceeds"} 1`)
}
