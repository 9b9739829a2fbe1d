package frontier_test

import (
	"context"
	"testing"
)

func TestCreateSessionInsertsTokenAndSeedRowTogether(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tokenID, err := store.CreateSession(ctx, "https://h.net/", "DOMAIN_ONLY", "deadbeef")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	token, err := store.GetToken(ctx, tokenID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if token.URL != "https://h.net/" || token.Mode != "DOMAIN_ONLY" {
		t.Errorf("unexpected token: %+v", token)
	}

	count, err := store.Count(ctx, tokenID)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1 (seed url)", count)
	}

	present, err := store.HasHash(ctx, tokenID, "deadbeef")
	if err != nil {
		t.Fatalf("HasHash: %v", err)
	}
	if !present {
		t.Error("expected seed hash to already be present after CreateSession")
	}
}

func TestRecordArtifactPersistsPageArtifactRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tokenID, err := store.CreateSession(ctx, "https://h.net/", "DOMAIN_ONLY", "deadbeef")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := store.RecordArtifact(ctx, tokenID, "https://h.net/docs/guide", "output/abc123.md", "contenthash"); err != nil {
		t.Fatalf("RecordArtifact: %v", err)
	}
}
