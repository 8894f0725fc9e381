package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Provider using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ Provider = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Ethereum JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors (reverts, user rejections) are returned immediately;
// only transport failures and 429s are retried.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// ChainID returns the chain identifier.
func (c *HTTPClient) ChainID(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", nil, &result); err != nil {
		return nil, err
	}
	return DecodeBig(result)
}

// BlockNumber returns the latest block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return DecodeUint64(result)
}

// Accounts returns the currently exposed accounts without prompting.
func (c *HTTPClient) Accounts(ctx context.Context) ([]Address, error) {
	var result []Address
	if err := c.call(ctx, "eth_accounts", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RequestAccounts asks the provider to connect an account.
func (c *HTTPClient) RequestAccounts(ctx context.Context) ([]Address, error) {
	var result []Address
	if err := c.call(ctx, "eth_requestAccounts", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Call executes a read-only contract call at the latest block.
func (c *HTTPClient) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	callObj := map[string]interface{}{
		"to":   msg.To,
		"data": EncodeBytes(msg.Data),
	}
	if msg.From != "" {
		callObj["from"] = msg.From
	}

	var result string
	if err := c.call(ctx, "eth_call", []interface{}{callObj, "latest"}, &result); err != nil {
		return nil, err
	}
	return DecodeBytes(result)
}

// SendTransaction submits a transaction for signing and broadcast.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx TxRequest) (Hash, error) {
	txObj := map[string]interface{}{
		"from": tx.From,
		"to":   tx.To,
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		txObj["value"] = EncodeBig(tx.Value)
	}
	if len(tx.Data) > 0 {
		txObj["data"] = EncodeBytes(tx.Data)
	}

	var result Hash
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{txObj}, &result); err != nil {
		return "", err
	}
	return result, nil
}

// rpcReceipt is the raw RPC response for eth_getTransactionReceipt.
type rpcReceipt struct {
	TransactionHash Hash     `json:"transactionHash"`
	BlockNumber     string   `json:"blockNumber"`
	Status          string   `json:"status"`
	GasUsed         string   `json:"gasUsed"`
	ContractAddress *Address `json:"contractAddress"`
	Logs            []rpcLog `json:"logs"`
}

// TransactionReceipt returns the receipt for a mined transaction.
// Returns (nil, nil) while the transaction is still pending.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, h Hash) (*Receipt, error) {
	var result *rpcReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{h}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	receipt := &Receipt{TxHash: result.TransactionHash}

	var err error
	if receipt.BlockNumber, err = DecodeUint64(result.BlockNumber); err != nil {
		return nil, fmt.Errorf("decode blockNumber: %w", err)
	}
	if receipt.Status, err = DecodeUint64(result.Status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if result.GasUsed != "" {
		if receipt.GasUsed, err = DecodeUint64(result.GasUsed); err != nil {
			return nil, fmt.Errorf("decode gasUsed: %w", err)
		}
	}
	if result.ContractAddress != nil {
		receipt.ContractAddress = *result.ContractAddress
	}
	for _, raw := range result.Logs {
		lg, err := raw.toLog()
		if err != nil {
			return nil, err
		}
		receipt.Logs = append(receipt.Logs, lg)
	}

	return receipt, nil
}

// rpcLog is the raw RPC response item for eth_getLogs.
type rpcLog struct {
	Address         Address `json:"address"`
	Topics          []Hash  `json:"topics"`
	Data            string  `json:"data"`
	BlockNumber     string  `json:"blockNumber"`
	TransactionHash Hash    `json:"transactionHash"`
	LogIndex        string  `json:"logIndex"`
	Removed         bool    `json:"removed"`
}

func (r rpcLog) toLog() (Log, error) {
	lg := Log{
		Address: r.Address,
		Topics:  r.Topics,
		TxHash:  r.TransactionHash,
		Removed: r.Removed,
	}

	var err error
	if lg.Data, err = DecodeBytes(r.Data); err != nil {
		return Log{}, fmt.Errorf("decode log data: %w", err)
	}
	if r.BlockNumber != "" {
		if lg.BlockNumber, err = DecodeUint64(r.BlockNumber); err != nil {
			return Log{}, fmt.Errorf("decode log blockNumber: %w", err)
		}
	}
	if r.LogIndex != "" {
		if lg.LogIndex, err = DecodeUint64(r.LogIndex); err != nil {
			return Log{}, fmt.Errorf("decode logIndex: %w", err)
		}
	}

	return lg, nil
}

// FilterLogs returns historical logs matching the query.
func (c *HTTPClient) FilterLogs(ctx context.Context, q FilterQuery) ([]Log, error) {
	filter := map[string]interface{}{
		"fromBlock": "0x0",
		"toBlock":   "latest",
	}
	if q.FromBlock != nil {
		filter["fromBlock"] = EncodeUint64(*q.FromBlock)
	}
	if q.ToBlock != nil {
		filter["toBlock"] = EncodeUint64(*q.ToBlock)
	}
	if q.Address != "" {
		filter["address"] = q.Address
	}
	if len(q.Topics) > 0 {
		topics := make([]interface{}, len(q.Topics))
		for i, t := range q.Topics {
			if t != nil {
				topics[i] = *t
			}
		}
		filter["topics"] = topics
	}

	var result []rpcLog
	if err := c.call(ctx, "eth_getLogs", []interface{}{filter}, &result); err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(result))
	for _, raw := range result {
		lg, err := raw.toLog()
		if err != nil {
			return nil, err
		}
		logs = append(logs, lg)
	}

	return logs, nil
}

// BalanceAt returns the native balance of an address in wei.
func (c *HTTPClient) BalanceAt(ctx context.Context, addr Address) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{addr, "latest"}, &result); err != nil {
		return nil, err
	}
	return DecodeBig(result)
}

// CodeAt returns the bytecode deployed at an address.
func (c *HTTPClient) CodeAt(ctx context.Context, addr Address) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_getCode", []interface{}{addr, "latest"}, &result); err != nil {
		return nil, err
	}
	return DecodeBytes(result)
}
