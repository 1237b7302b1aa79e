// Package protocol implements the JSON-RPC 2.0 envelope and the MCP
// message types exchanged with servers over stdio.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC protocol version used on the wire.
const Version = "2.0"

// ProtocolVersion is the MCP protocol version sent during initialization.
const ProtocolVersion = "2024-11-05"

// Well-known MCP method names.
const (
	MethodInitialize        = "initialize"
	MethodToolsList         = "tools/list"
	MethodToolsCall         = "tools/call"
	MethodResourcesList     = "resources/list"
	MethodResourcesRead     = "resources/read"
	NotificationInitialized = "notifications/initialized"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

type idKind int

const (
	idNull idKind = iota
	idNumber
	idString
)

// RequestID identifies a JSON-RPC request. On the wire it is a bare number,
// a bare string, or null (notifications carry a null id). The zero value is
// the null id. RequestID is comparable and can be used as a map key.
type RequestID struct {
	kind idKind
	num  int64
	str  string
}

// NumberID returns a numeric request id.
func NumberID(n int64) RequestID {
	return RequestID{kind: idNumber, num: n}
}

// StringID returns a string request id.
func StringID(s string) RequestID {
	return RequestID{kind: idString, str: s}
}

// NullID returns the null request id used by notifications.
func NullID() RequestID {
	return RequestID{}
}

// IsNull reports whether the id is null.
func (id RequestID) IsNull() bool {
	return id.kind == idNull
}

// String renders the id for logging.
func (id RequestID) String() string {
	switch id.kind {
	case idNumber:
		return strconv.FormatInt(id.num, 10)
	case idString:
		return id.str
	default:
		return "null"
	}
}

// MarshalJSON renders the id untagged: number, string, or null.
func (id RequestID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idNumber:
		return strconv.AppendInt(nil, id.num, 10), nil
	case idString:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a string, or null.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = RequestID{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = RequestID{kind: idString, str: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("invalid request id %s: %w", trimmed, err)
	}
	i, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("invalid request id %s", trimmed)
		}
		i = int64(f)
	}
	*id = RequestID{kind: idNumber, num: i}
	return nil
}

// Request is a JSON-RPC request expecting a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a successful JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// ErrorResponse is a failed JSON-RPC response.
type ErrorResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Error   RPCError  `json:"error"`
}

// Notification is a JSON-RPC message with no id and no reply.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface so RPC errors can be returned directly.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request with the given id, method, and params.
// Params may be nil, in which case the field is omitted on the wire.
func NewRequest(id RequestID, method string, params any) (*Request, error) {
	req := &Request{JSONRPC: Version, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewNotification builds a notification with the given method and params.
func NewNotification(method string, params any) (*Notification, error) {
	n := &Notification{JSONRPC: Version, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		n.Params = raw
	}
	return n, nil
}

// Message is implemented by the four JSON-RPC message shapes returned
// by ParseMessage.
type Message interface {
	message()
}

func (*Request) message()       {}
func (*Response) message()      {}
func (*ErrorResponse) message() {}
func (*Notification) message()  {}

// messageProbe holds the superset of fields used to classify a wire line.
type messageProbe struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// ParseMessage classifies a single wire line as a Request, Response,
// ErrorResponse, or Notification, tried in that order. A line that fits
// none of the shapes yields a ProtocolError.
func ParseMessage(data []byte) (Message, error) {
	var probe messageProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ProtocolError{Line: string(data), Err: err}
	}

	hasID := len(probe.ID) > 0 && !bytes.Equal(bytes.TrimSpace(probe.ID), []byte("null"))

	switch {
	case hasID && probe.Method != "":
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, &ProtocolError{Line: string(data), Err: err}
		}
		return &req, nil
	case hasID && probe.Result != nil:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, &ProtocolError{Line: string(data), Err: err}
		}
		return &resp, nil
	case hasID && probe.Error != nil:
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil {
			return nil, &ProtocolError{Line: string(data), Err: err}
		}
		return &errResp, nil
	case probe.Method != "":
		var note Notification
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, &ProtocolError{Line: string(data), Err: err}
		}
		return &note, nil
	}

	return nil, &ProtocolError{Line: string(data), Err: fmt.Errorf("unrecognized message shape")}
}

// ProtocolError indicates a wire line that could not be parsed or classified.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
