package eventbus

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type args struct {
	data interface{}
}

func newBufferLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_Publish(t *testing.T) {
	type args2 struct {
		data interface{}
	}
	log, logBuffer := newBufferLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		t.Error("should not be called")
	})
	publisher.Publish(&args2{
		data: "test",
	})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "eventbus.Publish: no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	log, _ := newBufferLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	called := false
	var data interface{}
	publisher.Subscribe(func(e *args) {
		called = true
		data = e.data
	})
	publisher.Publish(&args{
		data: "test",
	})
	if !called {
		t.Error("should be called")
	}
	if data != "test" {
		t.Errorf("expected: %v, got: %v", "test", data)
	}
}

func TestMatchSignature(t *testing.T) {
	type args struct {
	}
	type args2 struct {
	}
	if !MatchSignature(func(e *args) {}, []interface{}{&args{}}) {
		t.Error("expected true")
	}
	if MatchSignature(func(e *args) {}, []interface{}{&args2{}}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *args) {}, []interface{}{}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *args) {}, []interface{}{&args{}, &args{}}) {
		t.Error("expected false")
	}

	if !MatchSignature(func(ctx context.Context) {}, []interface{}{context.Background()}) {
		t.Error("expected true")
	}
}

func TestPublisher_PanicRecovery(t *testing.T) {
	log, logBuffer := newBufferLogger(logrus.ErrorLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {
		panic("intentional panic for testing")
	})

	publisher.Publish(&args{data: "test"})

	output := logBuffer.String()
	if !strings.Contains(output, "panicked") {
		t.Errorf("log should contain 'panicked', got: %q", output)
	}
	if !strings.Contains(output, "intentional panic for testing") {
		t.Errorf("log should contain panic message, got: %q", output)
	}
}

func TestPublisher_PublishE(t *testing.T) {
	log, _ := newBufferLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log).(EventBusWithError)

	if err := publisher.PublishE(&args{data: "x"}); !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("expected ErrNoSubscribers, got %v", err)
	}

	wantErr := errors.New("handler failed")
	publisher.Subscribe(func(e *args) error { return wantErr })
	if err := publisher.PublishE(&args{data: "x"}); !errors.Is(err, wantErr) {
		t.Errorf("expected handler error, got %v", err)
	}

	publisher.Clear()
	publisher.Subscribe(func(e *args) error { return nil })
	if err := publisher.PublishE(&args{data: "x"}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestPublisher_Clear(t *testing.T) {
	log, _ := newBufferLogger(logrus.PanicLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *args) {})
	publisher.Subscribe(func(e *args) error { return nil })
	if publisher.SubscribersCount() != 2 {
		t.Fatal("expected 2 subscribers")
	}
	publisher.Clear()
	if publisher.SubscribersCount() != 0 {
		t.Fatal("expected 0 subscribers")
	}
}
