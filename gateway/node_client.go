package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/octopus-network/relay-client/types"
)

const (
	defaultScheme   = "http://"
	contentType     = "Content-Type"
	applicationJson = "application/json"

	finalityFinal = "final"
	handlerError  = "HANDLER_ERROR"
)

/*
NodeClient talks to the ledger RPC node using its JSON-RPC 2.0 API. It
implements Viewer, change calls need signature and go through WalletClient.
*/
type NodeClient struct {
	url        string
	httpClient http.Client
	limiter    *rate.Limiter
	reqID      atomic.Uint64
}

type NodeClientOption func(*NodeClient)

/*
WithRateLimit limits the number of requests per second sent to the node.
Zero or negative "rps" means no limit.
*/
func WithRateLimit(rps float64, burst int) NodeClientOption {
	return func(nc *NodeClient) {
		if rps <= 0 {
			nc.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		nc.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithHTTPTimeout(d time.Duration) NodeClientOption {
	return func(nc *NodeClient) {
		nc.httpClient.Timeout = d
	}
}

func NewNodeClient(nodeURL string, opts ...NodeClientOption) (*NodeClient, error) {
	u, err := parseBaseURL(nodeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid node URL: %w", err)
	}
	nc := &NodeClient{
		url:        u.String(),
		httpClient: http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(nc)
	}
	return nc, nil
}

type (
	rpcRequest struct {
		JSONRPC string `json:"jsonrpc"`
		ID      string `json:"id"`
		Method  string `json:"method"`
		Params  any    `json:"params"`
	}

	rpcResponse struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}

	rpcError struct {
		Name    string          `json:"name"`
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
		Cause   *struct {
			Name string          `json:"name"`
			Info json.RawMessage `json:"info"`
		} `json:"cause"`
	}

	callFunctionParams struct {
		RequestType string `json:"request_type"`
		Finality    string `json:"finality"`
		AccountID   string `json:"account_id"`
		MethodName  string `json:"method_name"`
		ArgsBase64  string `json:"args_base64"`
	}

	callFunctionResult struct {
		Result []int   `json:"result"`
		Error  *string `json:"error"`
	}

	blockResult struct {
		Header struct {
			Height uint64 `json:"height"`
		} `json:"header"`
	}
)

func (e *rpcError) String() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Cause != nil && e.Cause.Name != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Name)
	}
	if len(e.Data) > 0 && string(e.Data) != "null" {
		var s string
		if json.Unmarshal(e.Data, &s) != nil {
			s = string(e.Data)
		}
		sb.WriteString(": ")
		sb.WriteString(s)
	}
	return sb.String()
}

/*
CallFunction executes view method of the contract with finality "final".
The contract args and the returned result are JSON documents.
*/
func (nc *NodeClient) CallFunction(ctx context.Context, contract types.AccountID, method string, args []byte) ([]byte, error) {
	params := callFunctionParams{
		RequestType: "call_function",
		Finality:    finalityFinal,
		AccountID:   contract.String(),
		MethodName:  method,
		ArgsBase64:  base64.StdEncoding.EncodeToString(args),
	}
	var res callFunctionResult
	if err := nc.call(ctx, method, "query", params, &res); err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, rejection(method, *res.Error)
	}
	b := make([]byte, len(res.Result))
	for i, v := range res.Result {
		if v < 0 || v > 255 {
			return nil, transportErr(method, fmt.Errorf("invalid byte value %d at position %d of the call result", v, i))
		}
		b[i] = byte(v)
	}
	return b, nil
}

// BlockHeight returns the height of the latest final block.
func (nc *NodeClient) BlockHeight(ctx context.Context) (uint64, error) {
	var res blockResult
	if err := nc.call(ctx, "block", "block", map[string]string{"finality": finalityFinal}, &res); err != nil {
		return 0, err
	}
	return res.Header.Height, nil
}

/*
call sends JSON-RPC request and decodes the result into "result". Node
handler errors (the request was executed and failed) are returned as contract
rejection, everything else as transport error.
*/
func (nc *NodeClient) call(ctx context.Context, label, rpcMethod string, params, result any) error {
	if nc.limiter != nil {
		if err := nc.limiter.Wait(ctx); err != nil {
			return transportErr(label, fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprintf("%d", nc.reqID.Add(1)),
		Method:  rpcMethod,
		Params:  params,
	})
	if err != nil {
		return transportErr(label, fmt.Errorf("encoding request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nc.url, bytes.NewReader(body))
	if err != nil {
		return transportErr(label, fmt.Errorf("failed to build %s request: %w", rpcMethod, err))
	}
	req.Header.Set(contentType, applicationJson)

	rsp, err := nc.httpClient.Do(req)
	if err != nil {
		return transportErr(label, fmt.Errorf("request %s failed: %w", rpcMethod, err))
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return transportErr(label, fmt.Errorf("failed to read %s response: %w", rpcMethod, err))
	}

	var rpcRsp rpcResponse
	if err := json.Unmarshal(data, &rpcRsp); err != nil {
		if rsp.StatusCode != http.StatusOK {
			return transportErr(label, fmt.Errorf("unexpected response status code: %d", rsp.StatusCode))
		}
		return transportErr(label, fmt.Errorf("failed to unmarshal %s response: %w", rpcMethod, err))
	}
	if rpcRsp.Error != nil {
		if rpcRsp.Error.Name == handlerError {
			return rejection(label, rpcRsp.Error.String())
		}
		return transportErr(label, errors.New(rpcRsp.Error.String()))
	}
	if rsp.StatusCode != http.StatusOK {
		return transportErr(label, fmt.Errorf("unexpected response status code: %d", rsp.StatusCode))
	}
	if len(rpcRsp.Result) == 0 {
		return transportErr(label, fmt.Errorf("%s response has no result", rpcMethod))
	}
	if err := json.Unmarshal(rpcRsp.Result, result); err != nil {
		return transportErr(label, fmt.Errorf("failed to unmarshal %s result: %w", rpcMethod, err))
	}
	return nil
}

func parseBaseURL(s string) (*url.URL, error) {
	if s == "" {
		return nil, errors.New("URL is empty")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = defaultScheme + s
	}
	return url.Parse(s)
}
