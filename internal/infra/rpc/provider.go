package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/holdings/internal/snapshot/metrics"
)

// Provider is a JSON-RPC over HTTP endpoint for one network.
type Provider struct {
	network    string
	endpoint   string
	httpClient *http.Client
}

// NewProvider creates a JSON-RPC provider for a network endpoint.
func NewProvider(network, endpoint string, timeout time.Duration) *Provider {
	return &Provider{
		network:  network,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// BatchCall is one request inside a JSON-RPC batch.
type BatchCall struct {
	Method string
	Params any
}

// BatchResult is the outcome of one call in a batch, aligned with the
// request order. Absent is set when the call returned an error or a null
// result; the batch as a whole still succeeds.
type BatchResult struct {
	Result json.RawMessage
	Absent bool
}

// Call makes a single JSON-RPC call.
func (p *Provider) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.network, method).Inc()

	body, err := p.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.network, method).Inc()
		return nil, err
	}
	metrics.RPCLatency.WithLabelValues(p.network, method).Observe(time.Since(start).Seconds())

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.network, method).Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.network, method).Inc()
		return nil, resp.Error
	}
	return resp.Result, nil
}

// CallBatch sends one JSON-RPC batch containing all calls and returns
// per-call results in request order. A failed or null entry becomes an
// absent result rather than failing the batch.
func (p *Provider) CallBatch(ctx context.Context, calls []BatchCall) ([]BatchResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.network, "batch").Inc()

	reqs := make([]rpcRequest, len(calls))
	for i, c := range calls {
		reqs[i] = rpcRequest{JSONRPC: "2.0", Method: c.Method, Params: c.Params, ID: i}
	}

	body, err := p.post(ctx, reqs)
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.network, "batch").Inc()
		return nil, err
	}
	metrics.RPCLatency.WithLabelValues(p.network, "batch").Observe(time.Since(start).Seconds())

	var resps []rpcResponse
	if err := json.Unmarshal(body, &resps); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.network, "batch").Inc()
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	// Responses may arrive in any order; align by id.
	results := make([]BatchResult, len(calls))
	for i := range results {
		results[i].Absent = true
	}
	for _, r := range resps {
		if r.ID < 0 || r.ID >= len(results) {
			continue
		}
		if r.Error != nil || len(r.Result) == 0 || string(r.Result) == "null" {
			continue
		}
		results[r.ID] = BatchResult{Result: r.Result}
	}
	return results, nil
}

func (p *Provider) post(ctx context.Context, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
