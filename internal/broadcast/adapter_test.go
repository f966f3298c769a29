package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type captureSink struct {
	frames []Frame
}

func (s *captureSink) DeliverRemote(f Frame) {
	s.frames = append(s.frames, f)
}

func TestHandleSkipsOwnFrames(t *testing.T) {
	sink := &captureSink{}
	a := New("instance-a", nil, nil, sink, zerolog.Nop())

	own, _ := json.Marshal(Frame{Origin: "instance-a", Event: "chat:new-message"})
	other, _ := json.Marshal(Frame{Origin: "instance-b", Event: "chat:new-message"})

	a.handle(string(own))
	a.handle(string(other))

	if len(sink.frames) != 1 {
		t.Fatalf("delivered %d frames, want 1", len(sink.frames))
	}
	if sink.frames[0].Origin != "instance-b" {
		t.Fatalf("delivered frame from %q", sink.frames[0].Origin)
	}
}

func TestHandleDropsMalformedFrame(t *testing.T) {
	sink := &captureSink{}
	a := New("instance-a", nil, nil, sink, zerolog.Nop())

	a.handle("{not json")

	if len(sink.frames) != 0 {
		t.Fatalf("delivered %d frames, want 0", len(sink.frames))
	}
}

func TestFrameRoundTrip(t *testing.T) {
	in := Frame{
		Origin:    "instance-a",
		Namespace: "/chat",
		Room:      "chat:42",
		Event:     "chat:new-message",
		Payload:   json.RawMessage(`{"chat_id":"42"}`),
		Exclude:   "deadbeef",
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Frame
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	if out.Origin != in.Origin || out.Namespace != in.Namespace || out.Room != in.Room ||
		out.Event != in.Event || out.Exclude != in.Exclude {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if string(out.Payload) != string(in.Payload) {
		t.Fatalf("payload = %s", out.Payload)
	}
}

func TestFrameOmitsEmptyRoom(t *testing.T) {
	data, err := json.Marshal(Frame{Origin: "a", Event: "presence:user-online"})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["room"]; ok {
		t.Fatal("empty room should be omitted from the wire frame")
	}
	if _, ok := raw["exclude"]; ok {
		t.Fatal("empty exclude should be omitted from the wire frame")
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, backoffBase},
		{1, backoffBase},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, 1600 * time.Millisecond},
		{6, backoffCap},
		{12, backoffCap},
		{40, backoffCap},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Minute) {
		t.Fatal("sleep should report cancellation")
	}
}

func TestNoopRelayAcceptsFrames(t *testing.T) {
	if err := (Noop{}).Publish(context.Background(), Frame{Event: "ping"}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
}
