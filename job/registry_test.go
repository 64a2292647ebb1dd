package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/codec"
	"github.com/xraph/foreman/job"
)

type emailPayload struct {
	To      string `json:"to" msgpack:"to"`
	Subject string `json:"subject" msgpack:"subject"`
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := job.NewRegistry()

	var got emailPayload
	def := job.NewDefinition(job.TypeSendEmail, func(_ context.Context, p emailPayload) error {
		got = p
		return nil
	})

	if err := job.RegisterDefinition(r, def); err != nil {
		t.Fatalf("RegisterDefinition failed: %v", err)
	}

	h, ok := r.Get(job.TypeSendEmail)
	if !ok {
		t.Fatal("expected handler to be registered")
	}

	payload, _ := json.Marshal(emailPayload{To: "alice@example.com", Subject: "Hello"})
	if err := h(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", got.To, "alice@example.com")
	}
	if got.Subject != "Hello" {
		t.Errorf("Subject = %q, want %q", got.Subject, "Hello")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := job.NewRegistry()

	noop := func(context.Context, []byte) error { return nil }
	if err := r.Register(job.TypeRefreshFeed, noop); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := r.Register(job.TypeRefreshFeed, noop)
	if !errors.Is(err, foreman.ErrHandlerAlreadyRegistered) {
		t.Errorf("second Register error = %v, want ErrHandlerAlreadyRegistered", err)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := job.NewRegistry()
	if _, ok := r.Get("no-such-type"); ok {
		t.Error("expected Get to return false for unregistered type")
	}
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := job.NewRegistry()
	noop := func(context.Context, []byte) error { return nil }

	for _, typ := range []job.Type{"zeta", "alpha", "mid"} {
		if err := r.Register(typ, noop); err != nil {
			t.Fatalf("Register(%q) failed: %v", typ, err)
		}
	}

	got := r.Types()
	want := []job.Type{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Types() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegisterDefinition_DecodeFailureIsPermanent(t *testing.T) {
	r := job.NewRegistry()

	def := job.NewDefinition(job.TypeSendEmail, func(_ context.Context, _ emailPayload) error {
		t.Fatal("handler must not run on decode failure")
		return nil
	})
	if err := job.RegisterDefinition(r, def); err != nil {
		t.Fatalf("RegisterDefinition failed: %v", err)
	}

	h, _ := r.Get(job.TypeSendEmail)
	err := h(context.Background(), []byte("{not json"))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !job.IsPermanent(err) {
		t.Errorf("decode failure should be permanent, got %v", err)
	}
}

func TestRegisterDefinition_EmptyPayload(t *testing.T) {
	r := job.NewRegistry()

	var got emailPayload
	def := job.NewDefinition(job.TypeSendEmail, func(_ context.Context, p emailPayload) error {
		got = p
		return nil
	})
	if err := job.RegisterDefinition(r, def); err != nil {
		t.Fatalf("RegisterDefinition failed: %v", err)
	}

	h, _ := r.Get(job.TypeSendEmail)
	if err := h(context.Background(), nil); err != nil {
		t.Fatalf("empty payload should decode to zero value, got %v", err)
	}
	if got != (emailPayload{}) {
		t.Errorf("payload = %+v, want zero value", got)
	}
}

func TestDefinition_MsgpackCodec(t *testing.T) {
	r := job.NewRegistry()

	var got emailPayload
	def := job.NewDefinition(job.TypeSendEmail, func(_ context.Context, p emailPayload) error {
		got = p
		return nil
	})
	def.Codec = codec.Msgpack{}

	if err := job.RegisterDefinition(r, def); err != nil {
		t.Fatalf("RegisterDefinition failed: %v", err)
	}

	payload, err := def.Encode(emailPayload{To: "bob@example.com", Subject: "Hi"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	h, _ := r.Get(job.TypeSendEmail)
	if err := h(context.Background(), payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if got.To != "bob@example.com" {
		t.Errorf("To = %q, want %q", got.To, "bob@example.com")
	}
}

func TestNewDefinition_Options(t *testing.T) {
	def := job.NewDefinition(job.TypeCaptureScreenshot,
		func(_ context.Context, _ emailPayload) error { return nil },
		job.WithMaxAttempts(7),
		job.WithPriority(42),
		job.WithDedupeKey("shot:listing:9"),
	)

	if def.Opts.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", def.Opts.MaxAttempts)
	}
	if def.Opts.Priority == nil || *def.Opts.Priority != 42 {
		t.Errorf("Priority = %v, want 42", def.Opts.Priority)
	}
	if def.Opts.DedupeKey != "shot:listing:9" {
		t.Errorf("DedupeKey = %q, want %q", def.Opts.DedupeKey, "shot:listing:9")
	}
}
