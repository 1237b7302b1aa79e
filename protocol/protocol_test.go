package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRequestID_Marshal(t *testing.T) {
	tests := []struct {
		name string
		id   RequestID
		want string
	}{
		{name: "number", id: NumberID(42), want: "42"},
		{name: "string", id: StringID("abc-123"), want: `"abc-123"`},
		{name: "null", id: NullID(), want: "null"},
		{name: "zero value is null", id: RequestID{}, want: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.id)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestRequestID_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RequestID
	}{
		{name: "number", input: "7", want: NumberID(7)},
		{name: "string", input: `"req-9"`, want: StringID("req-9")},
		{name: "null", input: "null", want: NullID()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RequestID
			if err := json.Unmarshal([]byte(tt.input), &id); err != nil {
				t.Fatalf("Failed to unmarshal %s: %v", tt.input, err)
			}
			if id != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, id, tt.want)
			}
		})
	}
}

func TestRequestID_MapKey(t *testing.T) {
	m := map[RequestID]string{
		NumberID(1):   "one",
		StringID("1"): "string one",
		NullID():      "null",
	}

	if m[NumberID(1)] != "one" {
		t.Error("numeric key lookup failed")
	}
	if m[StringID("1")] != "string one" {
		t.Error("string key lookup failed")
	}
	// A numeric 1 and a string "1" must be distinct keys
	if len(m) != 3 {
		t.Errorf("len(m) = %d, want 3", len(m))
	}
}

func TestNewRequest_OmitsNilParams(t *testing.T) {
	req, err := NewRequest(NumberID(1), "tools/list", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if _, ok := decoded["params"]; ok {
		t.Error("params should be omitted when nil")
	}
	if string(decoded["id"]) != "1" {
		t.Errorf("id = %s, want 1", decoded["id"])
	}
}

func TestNewNotification_NullID(t *testing.T) {
	n, err := NewNotification(NotificationInitialized, nil)
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if _, ok := decoded["id"]; ok {
		t.Error("notifications should not carry an id field")
	}
	if decoded["method"] == nil {
		t.Error("method should be present")
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // expected concrete type
	}{
		{
			name:  "request",
			input: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`,
			want:  "request",
		},
		{
			name:  "response",
			input: `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`,
			want:  "response",
		},
		{
			name:  "error response",
			input: `{"jsonrpc":"2.0","id":"x","error":{"code":-32601,"message":"Method not found"}}`,
			want:  "error",
		},
		{
			name:  "notification",
			input: `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			want:  "notification",
		},
		{
			name:  "notification with null id",
			input: `{"jsonrpc":"2.0","id":null,"method":"notifications/progress","params":{}}`,
			want:  "notification",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}

			var got string
			switch msg.(type) {
			case *Request:
				got = "request"
			case *Response:
				got = "response"
			case *ErrorResponse:
				got = "error"
			case *Notification:
				got = "notification"
			}
			if got != tt.want {
				t.Errorf("ParseMessage classified as %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: `{"jsonrpc":`},
		{name: "no method no result no error", input: `{"jsonrpc":"2.0","id":5}`},
		{name: "empty object", input: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error for malformed input")
			}
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Errorf("error = %T, want *ProtocolError", err)
			}
		})
	}
}

func TestParseMessage_ErrorResponseFields(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32602,"message":"Invalid params","data":"missing name"}}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	errResp, ok := msg.(*ErrorResponse)
	if !ok {
		t.Fatalf("message type = %T, want *ErrorResponse", msg)
	}
	if errResp.ID != NumberID(3) {
		t.Errorf("ID = %v, want 3", errResp.ID)
	}
	if errResp.Error.Code != CodeInvalidParams {
		t.Errorf("Code = %d, want %d", errResp.Error.Code, CodeInvalidParams)
	}
	if errResp.Error.Message != "Invalid params" {
		t.Errorf("Message = %q, want %q", errResp.Error.Message, "Invalid params")
	}
}

func TestRPCError_Error(t *testing.T) {
	e := &RPCError{Code: CodeMethodNotFound, Message: "Method not found"}
	if got := e.Error(); got != "rpc error -32601: Method not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestInitializeParams_Marshal(t *testing.T) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capability{
			Tools: &ToolCapability{ListChanged: true},
		},
		ClientInfo: ClientInfo{
			Name:    "mcpcore",
			Version: "1.0.0",
		},
	}

	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded InitializeParams
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if decoded.ProtocolVersion != "2024-11-05" {
		t.Errorf("ProtocolVersion = %q, want %q", decoded.ProtocolVersion, "2024-11-05")
	}
	if decoded.ClientInfo.Name != "mcpcore" {
		t.Errorf("ClientInfo.Name = %q, want %q", decoded.ClientInfo.Name, "mcpcore")
	}
}

func TestToolCallResult_Unmarshal(t *testing.T) {
	input := `{"content":[{"type":"text","text":"file contents"}],"isError":false}`

	var result ToolCallResult
	if err := json.Unmarshal([]byte(input), &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if len(result.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(result.Content))
	}
	if result.Content[0].Text != "file contents" {
		t.Errorf("Text = %q, want %q", result.Content[0].Text, "file contents")
	}
	if result.IsError {
		t.Error("IsError should be false")
	}
}
