package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"vitalstats/internal/cache"
	cachemem "vitalstats/internal/cache/memory"
	"vitalstats/internal/domain"
	"vitalstats/internal/queue"
	"vitalstats/internal/queue/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRequest_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    []string
		wantErr bool
	}{
		{
			name: "all",
			req:  Request{All: true, Keys: []string{"ignored_1"}},
			want: nil,
		},
		{
			name: "explicit keys",
			req:  Request{Keys: []string{"ufStats_35_2025", "regioes"}},
			want: []string{"regioes", "ufStats_35_2025"},
		},
		{
			name: "targets deduplicated with keys",
			req: Request{
				Keys: []string{"ufStats_35_2025"},
				Targets: []Target{
					{Kind: cache.KindStateStatistics, Params: []string{"35", "2025"}},
					{Kind: cache.KindStates, Params: []string{"2025", "todas"}},
					{Kind: cache.KindMunicipalities, Params: []string{"35"}},
				},
			},
			want: []string{"estados_2025_todas", "municipios_35", "ufStats_35_2025"},
		},
		{
			name: "states with region id",
			req:  Request{Targets: []Target{{Kind: cache.KindStates, Params: []string{"2024", "3"}}}},
			want: []string{"estados_2024_3"},
		},
		{name: "empty", req: Request{}, wantErr: true},
		{name: "unknown key kind", req: Request{Keys: []string{"foo_1"}}, wantErr: true},
		{
			name:    "wrong arity",
			req:     Request{Targets: []Target{{Kind: cache.KindStateStatistics, Params: []string{"35"}}}},
			wantErr: true,
		},
		{
			name:    "non numeric param",
			req:     Request{Targets: []Target{{Kind: cache.KindMunicipalities, Params: []string{"sp"}}}},
			wantErr: true,
		},
		{
			name:    "unknown target kind",
			req:     Request{Targets: []Target{{Kind: "cartorios", Params: nil}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Resolve()
			if tt.wantErr {
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Resolve()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	q := memory.NewQueue(10, testLogger())
	publisher := NewPublisher(q, testLogger())

	msg, err := publisher.Publish(context.Background(), &Request{Keys: []string{"ufStats_35_2025"}})
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if msg.ID == "" || msg.All || len(msg.Keys) != 1 {
		t.Errorf("message = %+v", msg)
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %v, want 1", q.Len())
	}
}

func TestPublisher_RejectsInvalidRequest(t *testing.T) {
	q := memory.NewQueue(10, testLogger())
	publisher := NewPublisher(q, testLogger())

	_, err := publisher.Publish(context.Background(), &Request{})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if q.Len() != 0 {
		t.Error("invalid request must not be queued")
	}
}

func TestPublisher_QueueClosed(t *testing.T) {
	q := memory.NewQueue(10, testLogger())
	_ = q.Close()
	publisher := NewPublisher(q, testLogger())

	_, err := publisher.Publish(context.Background(), &Request{All: true})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("expected ErrPublishFailed, got %v", err)
	}
}

func TestPartitionKey_Deterministic(t *testing.T) {
	a := partitionKey(&Message{Keys: []string{"regioes", "ufStats_35_2025"}})
	b := partitionKey(&Message{ID: "other", Keys: []string{"regioes", "ufStats_35_2025"}})
	c := partitionKey(&Message{All: true})

	if a != b {
		t.Error("same keys should share a partition key")
	}
	if a == c {
		t.Error("different scopes should not collide")
	}
	if len(a) != 16 {
		t.Errorf("len = %v, want 16", len(a))
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestProcessor_AppliesInvalidations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := memory.NewQueue(10, testLogger())
	store := cachemem.NewStore(0)
	for _, key := range []string{"ufStats_35_2025", "ufStats_33_2025", "regioes"} {
		_ = cache.Save(ctx, store, key, []int{1})
	}

	processor := NewProcessor(q, store, testLogger())
	go func() { _ = processor.Start(ctx) }()

	publisher := NewPublisher(q, testLogger())
	if _, err := publisher.Publish(ctx, &Request{Keys: []string{"ufStats_35_2025"}}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	waitFor(t, func() bool { return store.Len() == 2 })
	if entry, _ := store.Get(ctx, "ufStats_35_2025"); entry != nil {
		t.Error("ufStats_35_2025 should be gone")
	}
	if entry, _ := store.Get(ctx, "ufStats_33_2025"); entry == nil {
		t.Error("ufStats_33_2025 should be kept")
	}

	if _, err := publisher.Publish(ctx, &Request{All: true}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	waitFor(t, func() bool { return store.Len() == 0 })
}

func TestProcessor_SkipsMalformedMessages(t *testing.T) {
	ctx := context.Background()
	store := cachemem.NewStore(0)
	_ = cache.Save(ctx, store, "regioes", []int{1})
	processor := NewProcessor(memory.NewQueue(1, testLogger()), store, testLogger())

	err := processor.handleMessage(ctx, &queue.Message{Value: []byte("{not json")})
	if err != nil {
		t.Errorf("malformed message should be skipped, got %v", err)
	}
	if store.Len() != 1 {
		t.Error("malformed message must not touch the store")
	}

	payload, _ := json.Marshal(Message{ID: "x", Keys: []string{"regioes"}})
	if err := processor.handleMessage(ctx, &queue.Message{Value: payload}); err != nil {
		t.Fatalf("handleMessage error: %v", err)
	}
	if store.Len() != 0 {
		t.Error("regioes should be deleted")
	}
}
