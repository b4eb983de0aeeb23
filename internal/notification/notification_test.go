package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/spliteth/spliteth/internal/logging"
)

func TestLoggerNotifierMasksDestination(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	n := NewLoggerNotifier(logger)

	err := n.Send(context.Background(), Message{Kind: KindSessionCode, Destination: "+32478163203", Body: "Your spliteth code: Ab12Cd"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "+32478163203") {
		t.Fatalf("phone number leaked into log: %s", out)
	}
	if !strings.Contains(out, "*********203") || !strings.Contains(out, "Ab12Cd") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSNSNotifierPublishesSMS(t *testing.T) {
	client := &fakeSNS{}
	n := NewSNSNotifier(client, "spliteth", logging.Discard())

	if err := n.Send(context.Background(), Message{Kind: KindSessionCode, Destination: "+32478163203", Body: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aws.ToString(client.input.PhoneNumber) != "+32478163203" || aws.ToString(client.input.Message) != "hi" {
		t.Fatalf("unexpected publish input: %+v", client.input)
	}
	if got := aws.ToString(client.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue); got != "spliteth" {
		t.Fatalf("expected sender id, got %q", got)
	}
}

func TestSNSNotifierWrapsError(t *testing.T) {
	boom := errors.New("throttled")
	n := NewSNSNotifier(&fakeSNS{err: boom}, "", nil)
	if err := n.Send(context.Background(), Message{Destination: "+1", Body: "code"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNotifiersRejectIncompleteMessages(t *testing.T) {
	client := &fakeSNS{}
	notifiers := []Notifier{NewLoggerNotifier(logging.Discard()), NewSNSNotifier(client, "", nil)}
	for _, n := range notifiers {
		if err := n.Send(context.Background(), Message{Kind: KindSessionCode, Body: "x"}); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("%T: expected ErrInvalidMessage, got %v", n, err)
		}
	}
	if client.input != nil {
		t.Fatalf("nothing should be published")
	}
}
