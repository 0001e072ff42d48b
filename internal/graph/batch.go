package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// batchLimit is Graph's hard cap on sub-requests per $batch call.
const batchLimit = 20

// DeleteMessages removes the given messages from the mailbox.
func (c *Client) DeleteMessages(ctx context.Context, ids []string) error {
	return c.batchMutate(ctx, http.MethodDelete, ids, nil)
}

// MarkRead flags the given messages as read.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	return c.batchMutate(ctx, http.MethodPatch, ids, map[string]interface{}{"isRead": true})
}

// batchMutate applies one mutation to every id through the $batch endpoint,
// in sub-batches within the provider cap.
func (c *Client) batchMutate(ctx context.Context, method string, ids []string, body interface{}) error {
	var failed int
	for start := 0; start < len(ids); start += batchLimit {
		end := start + batchLimit
		if end > len(ids) {
			end = len(ids)
		}
		n, err := c.runBatch(ctx, method, ids[start:end], body)
		if err != nil {
			return err
		}
		failed += n
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batch operations failed", failed, len(ids))
	}
	return nil
}

// runBatch executes one $batch call and returns how many sub-operations the
// provider rejected.
func (c *Client) runBatch(ctx context.Context, method string, ids []string, stepBody interface{}) (int, error) {
	reqBody := batchRequest{Requests: make([]batchStep, 0, len(ids))}
	for i, id := range ids {
		step := batchStep{
			ID:     strconv.Itoa(i + 1),
			Method: method,
			URL:    c.userPath() + "/messages/" + id,
		}
		if stepBody != nil {
			step.Body = stepBody
			step.Headers = map[string]string{"Content-Type": "application/json"}
		}
		reqBody.Requests = append(reqBody.Requests, step)
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/v1.0/$batch", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("batch request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading batch response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("batch request failed: %s - %s", resp.Status, string(respBody))
	}
	var parsed batchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, fmt.Errorf("parsing batch response: %w", err)
	}
	failed := 0
	for _, r := range parsed.Responses {
		if r.Status >= 400 {
			failed++
		}
	}
	return failed, nil
}
