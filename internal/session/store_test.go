package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
)

func outcome() *entity.BatchOutcome {
	return &entity.BatchOutcome{
		BatchID:   uuid.New(),
		Results:   []entity.AnalysisResult{{StudentName: "Asha"}},
		Aggregate: entity.AnalysisResult{StudentName: "Class Average"},
		Submitted: 1,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	t.Run("put then get", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore(time.Minute)
		o := outcome()
		if err := s.Put(context.Background(), o); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := s.Get(context.Background(), o.BatchID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.BatchID != o.BatchID {
			t.Errorf("got batch %s, want %s", got.BatchID, o.BatchID)
		}
		if len(got.Results) != 1 || got.Results[0].StudentName != "Asha" {
			t.Errorf("results round-trip mismatch: %+v", got.Results)
		}
	})

	t.Run("unknown batch is not found", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore(time.Minute)
		_, err := s.Get(context.Background(), uuid.New())
		if !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("outcomes are write-once", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore(time.Minute)
		o := outcome()
		if err := s.Put(context.Background(), o); err != nil {
			t.Fatalf("put: %v", err)
		}
		err := s.Put(context.Background(), o)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput on duplicate put, got %v", err)
		}
	})

	t.Run("entries expire", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore(time.Millisecond)
		o := outcome()
		if err := s.Put(context.Background(), o); err != nil {
			t.Fatalf("put: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		_, err := s.Get(context.Background(), o.BatchID)
		if !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after expiry, got %v", err)
		}
	})
}
