package client

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/zhubert/mcpcore/protocol"
)

func TestSession_ListResources(t *testing.T) {
	fake := newFakeTransport()
	fake.responses[protocol.MethodResourcesList] = json.RawMessage(`{
		"resources": [
			{"uri": "file:///etc/hosts", "name": "hosts", "mimeType": "text/plain"}
		]
	}`)
	s := NewSession("filesystem", fake)

	resources, err := s.ListResources(context.Background())
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("len(resources) = %d, want 1", len(resources))
	}
	if resources[0].URI != "file:///etc/hosts" {
		t.Errorf("URI = %q", resources[0].URI)
	}
}

func TestSession_ReadResource(t *testing.T) {
	fake := newFakeTransport()
	fake.responses[protocol.MethodResourcesRead] = json.RawMessage(`{
		"contents": [
			{"uri": "file:///etc/hosts", "mimeType": "text/plain", "text": "127.0.0.1 localhost"}
		]
	}`)
	s := NewSession("filesystem", fake)

	contents, err := s.ReadResource(context.Background(), "file:///etc/hosts")
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1", len(contents))
	}
	if contents[0].Text != "127.0.0.1 localhost" {
		t.Errorf("Text = %q", contents[0].Text)
	}
}

func TestContentText(t *testing.T) {
	tests := []struct {
		name  string
		items []protocol.ContentItem
		want  string
	}{
		{
			name:  "single text item",
			items: []protocol.ContentItem{{Type: "text", Text: "boom"}},
			want:  "boom",
		},
		{
			name: "multiple items joined",
			items: []protocol.ContentItem{
				{Type: "text", Text: "line one"},
				{Type: "text", Text: "line two"},
			},
			want: "line one\nline two",
		},
		{
			name:  "no text falls back",
			items: []protocol.ContentItem{{Type: "image"}},
			want:  "tool reported an error",
		},
		{
			name:  "empty falls back",
			items: nil,
			want:  "tool reported an error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contentText(tt.items); got != tt.want {
				t.Errorf("contentText = %q, want %q", got, tt.want)
			}
		})
	}
}
