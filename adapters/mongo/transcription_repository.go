package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mojokb/ha-custom-stt/domain/entities"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
)

// historyTTL bounds how long transcription records are retained.
const historyTTL = 30 * 24 * time.Hour

// TranscriptionRepository implements repositories.TranscriptionRepository
// using MongoDB
type TranscriptionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewTranscriptionRepository creates a new MongoDB transcription repository
func NewTranscriptionRepository(db *mongo.Database, logger *zap.Logger) repositories.TranscriptionRepository {
	collection := db.Collection("transcriptions")

	// Create indexes for better performance
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		deviceIDIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "device_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		}

		// TTL index for automatic cleanup of old records
		ttlIndex := mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(historyTTL.Seconds())),
		}

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{deviceIDIndex, ttlIndex})
		if err != nil {
			logger.Warn("Failed to create transcription indexes", zap.Error(err))
		}
	}()

	return &TranscriptionRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) Create(ctx context.Context, record *entities.TranscriptionRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create transcription record: %w", err)
	}

	return nil
}

// GetByID implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) GetByID(ctx context.Context, id string) (*entities.TranscriptionRecord, error) {
	if id == "" {
		return nil, errors.New("record ID cannot be empty")
	}

	var record entities.TranscriptionRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transcription record %s: %w", id, err)
	}

	return &record, nil
}

// ListByDeviceID implements repositories.TranscriptionRepository
func (r *TranscriptionRepository) ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.TranscriptionRecord, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"device_id": deviceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcriptions for device %s: %w", deviceID, err)
	}
	defer cursor.Close(ctx)

	var records []*entities.TranscriptionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode transcription records: %w", err)
	}

	return records, nil
}
