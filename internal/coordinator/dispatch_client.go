package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alicklee/gridmr/internal/httpapi"
	"github.com/alicklee/gridmr/internal/model"
)

// dispatchClient performs the coordinator-to-worker HTTP call posting a
// task to a worker's /task/execute, with a bounded request timeout.
type dispatchClient struct {
	http *http.Client
}

func newDispatchClient(timeout time.Duration) *dispatchClient {
	return &dispatchClient{http: &http.Client{Timeout: timeout}}
}

// execute dispatches req to worker baseURL and returns the TaskResult a
// successful response carries. A non-2xx response or any transport error
// is reported as an error, which the scheduler treats as a transient
// transport failure.
func (c *dispatchClient) execute(ctx context.Context, baseURL string, req httpapi.TaskExecuteRequest) (*model.TaskResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/task/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("dispatch: worker responded %s", resp.Status)
	}

	var out httpapi.TaskExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("dispatch: decode response: %w", err)
	}

	if out.Status == model.TaskFailed {
		msg := out.Error
		if msg == "" && out.Result != nil {
			msg = out.Result.ErrorMessage
		}
		return &model.TaskResult{
			TaskID:       out.TaskID,
			Status:       model.TaskFailed,
			ErrorMessage: msg,
		}, nil
	}

	if out.Result == nil {
		return nil, fmt.Errorf("dispatch: worker reported success with no result")
	}
	return out.Result, nil
}
