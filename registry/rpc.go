package registry

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/soundkey/tone"
)

const soundHashOfSig = "soundHashOf(address)"

// RPCRegistry reads soundHashOf from a registry contract over JSON-RPC
type RPCRegistry struct {
	url      string
	contract Address
	client   *http.Client
	selector [4]byte
	nextID   atomic.Uint64
}

// NewRPCRegistry creates a reader for the contract at the node url
func NewRPCRegistry(url, contract string) (*RPCRegistry, error) {
	addr, err := ParseAddress(contract)
	if err != nil {
		return nil, fmt.Errorf("registry contract: %w", err)
	}
	return &RPCRegistry{
		url:      url,
		contract: addr,
		client:   &http.Client{Timeout: 10 * time.Second},
		selector: Selector(soundHashOfSig),
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     uint64    `json:"id"`
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type callMsg struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// CallData returns the ABI-encoded soundHashOf(account) call
func (r *RPCRegistry) CallData(account Address) []byte {
	data := make([]byte, 4+32)
	copy(data, r.selector[:])
	copy(data[4+12:], account[:])
	return data
}

func (r *RPCRegistry) SoundHashOf(ctx context.Context, account string) (tone.Secret, error) {
	addr, err := ParseAddress(account)
	if err != nil {
		return tone.Secret{}, err
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      r.nextID.Add(1),
		Method:  "eth_call",
		Params: []any{
			callMsg{To: r.contract.Hex(), Data: "0x" + hex.EncodeToString(r.CallData(addr))},
			"latest",
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return tone.Secret{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return tone.Secret{}, fmt.Errorf("%w: %v", ErrRPC, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return tone.Secret{}, fmt.Errorf("%w: %v", ErrRPC, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tone.Secret{}, fmt.Errorf("%w: http %d", ErrRPC, resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return tone.Secret{}, fmt.Errorf("%w: decode: %v", ErrRPC, err)
	}
	if out.Error != nil {
		return tone.Secret{}, fmt.Errorf("%w: %d %s", ErrRPC, out.Error.Code, out.Error.Message)
	}

	// Empty result: no contract code at the address
	result := strings.TrimPrefix(out.Result, "0x")
	if result == "" {
		return tone.Secret{}, nil
	}
	raw, err := hex.DecodeString(result)
	if err != nil || len(raw) < 32 {
		return tone.Secret{}, fmt.Errorf("%w: malformed result %q", ErrRPC, out.Result)
	}

	var s tone.Secret
	copy(s[:], raw[:32])
	return s, nil
}
