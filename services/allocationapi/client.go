package allocapisvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/markalloc/core"
	"github.com/trezcool/markalloc/core/allocation"
)

const validateEndpoint = "/v1/allocations/validate"

// Client talks to the allocation API over HTTP.
type Client struct {
	baseURL string
	token   string
	rest    *rest.Client
}

var _ allocation.RemoteAPI = (*Client)(nil)

// NewClient returns a Client for conf.Allocation.APIBaseURL.
// Calls are bounded by their context, not by httpClient's timeout; a nil httpClient uses a default one.
func NewClient(conf *core.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(conf.Allocation.APIBaseURL, "/"),
		token:   conf.Allocation.APIToken,
		rest:    &rest.Client{HTTPClient: httpClient},
	}
}

func summaryEndpoint(sel allocation.SemesterSelector) string {
	return "/v1/semesters/" + url.PathEscape(sel.String()) + "/allocation"
}

func (c *Client) FetchSemesterAllocation(ctx context.Context, sel allocation.SemesterSelector) (allocation.SemesterAllocationSummary, error) {
	var summary allocation.SemesterAllocationSummary
	if err := c.do(ctx, rest.Get, summaryEndpoint(sel), nil, &summary); err != nil {
		return allocation.SemesterAllocationSummary{}, errors.Wrap(err, "fetching semester allocation")
	}
	return summary, nil
}

func (c *Client) ValidateMarkAllocation(ctx context.Context, req allocation.ValidationRequest) (allocation.ValidationResult, error) {
	var res allocation.ValidationResult
	if err := c.do(ctx, rest.Post, validateEndpoint, req, &res); err != nil {
		return allocation.ValidationResult{}, errors.Wrap(err, "validating mark allocation")
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method rest.Method, endpoint string, in, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + endpoint,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return newStatusError(res)
	}
	if err = json.Unmarshal([]byte(res.Body), out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

// StatusError is a non-2xx answer of the allocation API.
type StatusError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func newStatusError(res *rest.Response) *StatusError {
	serr := &StatusError{StatusCode: res.StatusCode}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(res.Body), &body); err != nil {
		serr.Message = strings.TrimSpace(res.Body)
		return serr
	}
	if msg, ok := body["error"].(string); ok && len(body) == 1 {
		serr.Message = msg
		return serr
	}
	serr.Fields = make(map[string]string, len(body))
	for fld, v := range body {
		serr.Fields[fld] = fmt.Sprint(v)
	}
	return serr
}

func (e *StatusError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		flds := make([]string, 0, len(e.Fields))
		for fld, fErr := range e.Fields {
			flds = append(flds, fld+": "+fErr)
		}
		sort.Strings(flds)
		msg = strings.Join(flds, ", ")
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, msg)
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound
}
