package models

import (
	"encoding/json"
	"testing"
)

func TestEventKindRoundTrip(t *testing.T) {
	for kind, name := range eventNames {
		parsed, ok := ParseEventKind(name)
		if !ok {
			t.Fatalf("ParseEventKind(%q) not recognized", name)
		}
		if parsed != kind {
			t.Fatalf("ParseEventKind(%q) = %v, want %v", name, parsed, kind)
		}
		if kind.String() != name {
			t.Fatalf("(%v).String() = %q, want %q", kind, kind.String(), name)
		}
	}
}

func TestParseEventKindRejectsUnknown(t *testing.T) {
	cases := []string{"", "chat:New-Message", "presence_user_online", "CONNECT", "chat:"}
	for _, name := range cases {
		if _, ok := ParseEventKind(name); ok {
			t.Errorf("ParseEventKind(%q) accepted, want rejection", name)
		}
	}
}

func TestWireNamesAreCaseSensitive(t *testing.T) {
	if _, ok := ParseEventKind("Ping"); ok {
		t.Fatal("event names must be case-sensitive")
	}
	if _, ok := ParseEventKind("ping"); !ok {
		t.Fatal("lowercase ping must parse")
	}
}

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		in   string
		want Namespace
		ok   bool
	}{
		{"", NamespaceDefault, true},
		{"/", NamespaceDefault, true},
		{"/chat", NamespaceChat, true},
		{"/notifications", NamespaceNotifications, true},
		{"/admin", NamespaceDefault, false},
		{"chat", NamespaceDefault, false},
	}
	for _, tt := range tests {
		got, ok := ParseNamespace(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseNamespace(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventChatNewMessage, map[string]string{"chat_id": "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if env.Event != "chat:new-message" {
		t.Fatalf("event = %q", env.Event)
	}

	var payload map[string]string
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["chat_id"] != "c1" {
		t.Fatalf("payload = %v", payload)
	}

	empty, err := NewEnvelope(EventPong, nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Data != nil {
		t.Fatalf("expected no data for nil payload, got %s", empty.Data)
	}
}
