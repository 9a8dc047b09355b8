package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"

	"vitalstats/internal/queue"
)

func TestToKafka_HeadersSorted(t *testing.T) {
	msg := &queue.Message{
		Key:   []byte("k"),
		Value: []byte(`{"all":true}`),
		Headers: map[string]string{
			queue.HeaderMessageID:   "abc",
			queue.HeaderContentType: "application/json",
		},
	}

	out := toKafka(msg)

	if string(out.Key) != "k" || string(out.Value) != `{"all":true}` {
		t.Errorf("unexpected message %+v", out)
	}
	if len(out.Headers) != 2 {
		t.Fatalf("len(Headers) = %v, want 2", len(out.Headers))
	}
	if out.Headers[0].Key != queue.HeaderContentType || out.Headers[1].Key != queue.HeaderMessageID {
		t.Errorf("headers not sorted: %+v", out.Headers)
	}
}

func TestFromKafka(t *testing.T) {
	msg := kafka.Message{
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: []kafka.Header{{Key: queue.HeaderMessageID, Value: []byte("abc")}},
	}

	out := fromKafka(msg)

	if out.Header(queue.HeaderMessageID) != "abc" {
		t.Errorf("Header = %q, want abc", out.Header(queue.HeaderMessageID))
	}
	if out.Header("missing") != "" {
		t.Error("missing header should be empty")
	}
}
