package repositories

import (
	"context"

	"github.com/mojokb/ha-custom-stt/domain/entities"
)

// TranscriptionRepository defines data access methods for transcription
// history
type TranscriptionRepository interface {
	Create(ctx context.Context, record *entities.TranscriptionRecord) error
	GetByID(ctx context.Context, id string) (*entities.TranscriptionRecord, error)
	ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.TranscriptionRecord, error)
}

// DeviceRepository defines data access methods for gateway devices
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	// ValidateDevice validates device credentials for authentication
	ValidateDevice(serialNumber, secret string) (*entities.Device, error)
}
