package publish

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type recordingSink struct {
	payloads [][]byte
	err      error
}

func (s *recordingSink) Publish(_ context.Context, _ string, payload []byte) error {
	s.payloads = append(s.payloads, payload)
	return s.err
}

func TestFanout_DeliversToPrimaryAndSubscribers(t *testing.T) {
	sink := &recordingSink{}
	f := NewFanout(sink, zap.NewNop().Sugar())

	var got []byte
	f.Subscribe(func(_ context.Context, _ string, payload []byte) {
		got = payload
	})

	if err := f.Publish(context.Background(), "ch", []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.payloads) != 1 {
		t.Errorf("primary sink received %d payloads, want 1", len(sink.payloads))
	}
	if string(got) != "hello" {
		t.Errorf("subscriber received %q, want hello", got)
	}
}

func TestFanout_PanickingSubscriberIsIsolated(t *testing.T) {
	f := NewFanout(nil, zap.NewNop().Sugar())

	f.Subscribe(func(context.Context, string, []byte) { panic("boom") })
	delivered := false
	f.Subscribe(func(context.Context, string, []byte) { delivered = true })

	if err := f.Publish(context.Background(), "ch", []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !delivered {
		t.Error("second subscriber must still receive the event")
	}
}

func TestFanout_PrimaryErrorSurfacesButSubscribersRun(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	f := NewFanout(sink, zap.NewNop().Sugar())

	delivered := false
	f.Subscribe(func(context.Context, string, []byte) { delivered = true })

	err := f.Publish(context.Background(), "ch", []byte("x"))
	if err == nil {
		t.Error("expected primary sink error to surface")
	}
	if !delivered {
		t.Error("subscriber must run even when the primary sink fails")
	}
}
