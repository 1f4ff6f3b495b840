//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"telegram-sticker-cloner/internal/domain/model"
)

func TestDocumentRepo(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	repo := NewDocumentRepo(testPool, NewTxManager(testPool), "test")

	t.Run("should return nil before the first save", func(t *testing.T) {
		doc, err := repo.Load(ctx)
		if err != nil || doc != nil {
			t.Fatalf("expected nil document, got %v, %v", doc, err)
		}
	})

	t.Run("should round trip the document", func(t *testing.T) {
		// --- Arrange ---
		doc := model.NewDocument()
		doc.Settings.AddChannel("news")
		doc.RedeemCodes["CODE12345678"] = &model.RedeemCode{
			Code: "CODE12345678", Days: 30, Limit: model.Capped(3),
			ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		}

		// --- Act ---
		if err := repo.Save(ctx, doc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		doc.Settings.AddChannel("second")
		if err := repo.Save(ctx, doc); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}
		got, err := repo.Load(ctx)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got.Settings.Channels) != 2 {
			t.Errorf("expected 2 channels after upsert, got %v", got.Settings.Channels)
		}
		if max, ok := got.RedeemCodes["CODE12345678"].Limit.Max(); !ok || max != 3 {
			t.Errorf("expected capped limit 3, got %v", got.RedeemCodes["CODE12345678"].Limit)
		}
	})
}
