package mongo

import (
	"context"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zaptest"

	"github.com/mojokb/ha-custom-stt/domain/entities"
)

// TestTranscriptionRepository_Integration requires a running MongoDB
// instance (skipped if MONGODB_URI is not set)
func TestTranscriptionRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	testDB := client.Database("stt_gateway_test")
	defer testDB.Drop(ctx)

	repo := NewTranscriptionRepository(testDB, logger)

	t.Run("CreateAndGet", func(t *testing.T) {
		record := entities.NewTranscriptionRecord("test-device-001", "en-US", 32000)
		record.Succeed("turn off the lights", 350)

		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}

		retrieved, err := repo.GetByID(ctx, record.ID)
		if err != nil {
			t.Fatalf("Failed to get record: %v", err)
		}
		if retrieved == nil {
			t.Fatal("Expected record, got nil")
		}

		if retrieved.Text != "turn off the lights" {
			t.Errorf("Expected text 'turn off the lights', got %q", retrieved.Text)
		}

		if retrieved.State != entities.TranscriptionStateSuccess {
			t.Errorf("Expected state %s, got %s", entities.TranscriptionStateSuccess, retrieved.State)
		}
	})

	t.Run("ListByDeviceID", func(t *testing.T) {
		deviceID := "test-device-002"
		for i := 0; i < 3; i++ {
			record := entities.NewTranscriptionRecord(deviceID, "ko-KR", 8000)
			record.Succeed("테스트", 100)
			if err := repo.Create(ctx, record); err != nil {
				t.Fatalf("Failed to create record: %v", err)
			}
		}

		records, err := repo.ListByDeviceID(ctx, deviceID, 2)
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}

		if len(records) != 2 {
			t.Errorf("Expected 2 records with limit 2, got %d", len(records))
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		record, err := repo.GetByID(ctx, "does-not-exist")
		if err != nil {
			t.Fatalf("Expected no error for missing record, got %v", err)
		}
		if record != nil {
			t.Errorf("Expected nil for missing record, got %+v", record)
		}
	})
}
