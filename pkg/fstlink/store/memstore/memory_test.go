package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
)

func labels(values ...string) store.Fields {
	f := store.NewFields()
	f.Strings["label"] = values
	return f
}

func TestUpsertAssignsIDsInOrder(t *testing.T) {
	ctx := context.Background()
	ix := New()

	a, _ := ix.Upsert(ctx, "urn:a", labels("A"))
	b, _ := ix.Upsert(ctx, "urn:b", labels("B"))
	again, _ := ix.Upsert(ctx, "urn:a", labels("Alpha"))
	if a != 0 || b != 1 || again != 0 {
		t.Fatalf("Unexpected ids: %d %d %d", a, b, again)
	}

	s, err := ix.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer s.Release()
	if s.Version() != 3 || s.MaxDoc() != 2 {
		t.Errorf("Unexpected version %d / maxDoc %d", s.Version(), s.MaxDoc())
	}

	doc, err := s.Document(ctx, 0, []string{store.IDField, "label"})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.First(store.IDField) != "urn:a" || doc.First("label") != "Alpha" {
		t.Errorf("Unexpected document: %+v", doc)
	}
	if ix.FieldReads("label") != 1 {
		t.Errorf("Expected 1 label read, got %d", ix.FieldReads("label"))
	}
}

func TestSearcherSeesVersionAtCheckout(t *testing.T) {
	ctx := context.Background()
	ix := New()
	ix.Upsert(ctx, "urn:a", labels("A"))

	s, _ := ix.Acquire(ctx)
	defer s.Release()
	ix.Upsert(ctx, "urn:b", labels("B"))

	if s.Version() != 1 || s.MaxDoc() != 1 {
		t.Errorf("Searcher should keep its checkout version, got %d / %d", s.Version(), s.MaxDoc())
	}
}

func TestDocumentFailures(t *testing.T) {
	ctx := context.Background()
	ix := New()
	ix.Upsert(ctx, "urn:a", labels("A"))
	boom := errors.New("boom")
	ix.FailDocument(0, boom)

	s, _ := ix.Acquire(ctx)
	defer s.Release()
	if _, err := s.Document(ctx, 0, []string{"label"}); !errors.Is(err, boom) {
		t.Errorf("Expected injected error, got %v", err)
	}
	if _, err := s.Document(ctx, 5, []string{"label"}); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestClosedIndex(t *testing.T) {
	ctx := context.Background()
	ix := New()
	ix.Close()
	if _, err := ix.Acquire(ctx); !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := ix.Upsert(ctx, "urn:a", labels("A")); !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := ix.Upsert(ctx, "", labels("A")); err == nil {
		t.Error("Should reject empty uri")
	}
}

func TestForEachValue(t *testing.T) {
	ctx := context.Background()
	ix := New()
	ix.Upsert(ctx, "urn:a", labels("A", "Ay"))
	ix.Upsert(ctx, "urn:b", labels("B"))

	s, _ := ix.Acquire(ctx)
	defer s.Release()
	var got []string
	err := s.ForEachValue(ctx, "label", func(id uint32, v string) error {
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachValue: %v", err)
	}
	if len(got) != 3 || got[0] != "A" || got[1] != "Ay" || got[2] != "B" {
		t.Errorf("Unexpected values: %v", got)
	}
	s.Release()
	if ix.Refs() != 0 {
		t.Errorf("Expected no refs, got %d", ix.Refs())
	}
}
