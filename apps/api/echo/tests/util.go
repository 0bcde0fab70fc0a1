package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/markalloc/apps/api/echo"
	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
	sqlxrepos "github.com/trezcool/markalloc/storage/database/sqlx"
	"github.com/trezcool/markalloc/tests"
)

var errSemesterNotFound = httpErr{Error: "semester not found"}

func setup(t *testing.T) (*Server, allocation.Repository) {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewAllocationRepository(db)

	// set up services
	svc := allocation.NewService(repo, testutil.NewLogger())

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	allocation.InitValidators(validate, translator)

	// set up server
	server := NewServer(
		ServerDeps{
			Conf:          &core.Config{TestMode: true, Server: core.ServerConfig{DisableReqLogs: true}},
			Logger:        testutil.NewLogger(),
			AllocationSvc: svc,
			Validate:      validate,
			Translator:    translator,
		},
	)
	t.Cleanup(func() { _ = server.Close() })
	return server, repo
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if !(ok1 && ok2) {
		return false, nil
	}
	return assert.ElementsMatch(t, l1, l2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		if rec.Body.Len() > 0 {
			t.Errorf("failed! data = %v; want no data", rec.Body.String())
		}
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, server http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newRequest(method, tt.path, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
