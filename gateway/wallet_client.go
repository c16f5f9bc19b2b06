package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/octopus-network/relay-client/types"
)

const FunctionCallsPath = "api/v1/function-calls"

type (
	// AccountSource returns the account on behalf of which change calls are signed.
	AccountSource interface {
		AccountID() types.AccountID
	}

	/*
		WalletClient implements Sender by delegating function calls to the signing
		wallet service. The wallet holds the keys, signs and broadcasts the
		transaction and reports the outcome of the execution.
	*/
	WalletClient struct {
		httpClient      http.Client
		functionCallURL *url.URL
		signer          AccountSource
	}

	functionCallRequest struct {
		SignerID   types.AccountID `json:"signer_id"`
		ReceiverID types.AccountID `json:"receiver_id"`
		MethodName string          `json:"method_name"`
		Args       json.RawMessage `json:"args"`
		Gas        types.Gas       `json:"gas"`
		Deposit    types.Amount    `json:"deposit"`
	}

	functionCallResponse struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
)

const (
	callStatusSuccess = "success"
	callStatusFailure = "failure"
)

func NewWalletClient(walletURL string, signer AccountSource) (*WalletClient, error) {
	if signer == nil {
		return nil, errors.New("account source is nil")
	}
	u, err := parseBaseURL(walletURL)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet URL: %w", err)
	}
	return &WalletClient{
		httpClient:      http.Client{Timeout: 2 * time.Minute},
		functionCallURL: u.JoinPath(FunctionCallsPath),
		signer:          signer,
	}, nil
}

func (wc *WalletClient) FunctionCall(ctx context.Context, contract types.AccountID, method string, args []byte, gas types.Gas, deposit types.Amount) ([]byte, error) {
	signer := wc.signer.AccountID()
	if signer == "" {
		return nil, transportErr(method, errors.New("no signed-in account"))
	}
	body, err := json.Marshal(functionCallRequest{
		SignerID:   signer,
		ReceiverID: contract,
		MethodName: method,
		Args:       args,
		Gas:        gas,
		Deposit:    deposit,
	})
	if err != nil {
		return nil, transportErr(method, fmt.Errorf("encoding function call: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.functionCallURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, transportErr(method, fmt.Errorf("failed to build function call request: %w", err))
	}
	req.Header.Set(contentType, applicationJson)

	rsp, err := wc.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(method, fmt.Errorf("request function call failed: %w", err))
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, transportErr(method, fmt.Errorf("failed to read function call response: %w", err))
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, transportErr(method, fmt.Errorf("unexpected response status code %d: %s", rsp.StatusCode, bytes.TrimSpace(data)))
	}

	var fcr functionCallResponse
	if err := json.Unmarshal(data, &fcr); err != nil {
		return nil, transportErr(method, fmt.Errorf("failed to unmarshal function call response: %w", err))
	}
	switch fcr.Status {
	case callStatusSuccess:
		return fcr.Result, nil
	case callStatusFailure:
		return nil, rejection(method, fcr.Error)
	default:
		return nil, transportErr(method, fmt.Errorf("unknown function call status %q", fcr.Status))
	}
}
