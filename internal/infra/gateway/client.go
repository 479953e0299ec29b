// Package gateway is the thin HTTP client for the remote receipt gateway.
// The gateway is a black box; only its request/response shapes are assumed.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"notary/internal/domain"
)

type Client struct {
	baseURL string
	authKey string
	httpDo  func(*http.Request) (*http.Response, error)
}

const maxResponseBytes = 1 << 20

func NewClient(baseURL, authKey string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		authKey: authKey,
		httpDo:  doer,
	}, nil
}

type ToolCallRequest struct {
	ToolID  string         `json:"tool_id"`
	Args    map[string]any `json:"args"`
	AuthKey string         `json:"auth_key"`
}

type RetrievalRequest struct {
	Query    string   `json:"query"`
	Datasets []string `json:"datasets"`
	AuthKey  string   `json:"auth_key"`
}

type SubmitResponse struct {
	ReceiptID string `json:"receipt_id"`
}

// SubmitToolCall executes a tool action through the gateway and returns the
// identifier of the receipt it issued.
func (c *Client) SubmitToolCall(ctx context.Context, req ToolCallRequest) (SubmitResponse, error) {
	if req.AuthKey == "" {
		req.AuthKey = c.authKey
	}
	var resp SubmitResponse
	if err := c.postJSON(ctx, "/mcp/tools/call", req, &resp); err != nil {
		return SubmitResponse{}, err
	}
	if resp.ReceiptID == "" {
		return SubmitResponse{}, fmt.Errorf("%w: no receipt_id returned", domain.ErrGatewayUnavailable)
	}
	return resp, nil
}

// SubmitRetrievalQuery executes a retrieval action through the gateway.
func (c *Client) SubmitRetrievalQuery(ctx context.Context, req RetrievalRequest) (SubmitResponse, error) {
	if req.AuthKey == "" {
		req.AuthKey = c.authKey
	}
	var resp SubmitResponse
	if err := c.postJSON(ctx, "/mcp/retrieval/query", req, &resp); err != nil {
		return SubmitResponse{}, err
	}
	if resp.ReceiptID == "" {
		return SubmitResponse{}, fmt.Errorf("%w: no receipt_id returned", domain.ErrGatewayUnavailable)
	}
	return resp, nil
}

// FetchReceipt retrieves the full receipt document by identifier.
func (c *Client) FetchReceipt(ctx context.Context, receiptID string) (domain.Receipt, error) {
	if receiptID == "" {
		return nil, errors.New("receipt id is required")
	}
	var receipt domain.Receipt
	if err := c.getJSON(ctx, "/receipts/"+receiptID, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// VerifyReceipt asks the gateway for its own verdict. Cross-check only;
// local binding stays authoritative.
func (c *Client) VerifyReceipt(ctx context.Context, receiptID string) (domain.GatewayCheck, error) {
	var check domain.GatewayCheck
	if err := c.getJSON(ctx, "/verify/receipt/"+receiptID, &check); err != nil {
		return domain.GatewayCheck{}, err
	}
	return check, nil
}

// RequestAnchor asks the gateway to anchor the receipt commitment to L2.
func (c *Client) RequestAnchor(ctx context.Context, receiptID string) (domain.AnchorRecord, error) {
	var record domain.AnchorRecord
	if err := c.postJSON(ctx, "/anchor/l2/"+receiptID, nil, &record); err != nil {
		return domain.AnchorRecord{}, err
	}
	return record, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.httpDo(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrGatewayUnavailable, req.Method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrGatewayUnavailable, path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: status %d: %s", domain.ErrGatewayUnavailable, req.Method, path, resp.StatusCode, truncate(body, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrGatewayUnavailable, path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
