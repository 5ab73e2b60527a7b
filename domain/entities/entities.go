package entities

import (
	"errors"
	"time"
)

// Device represents a host installation (e.g. a Home Assistant instance)
// that is allowed to call the gateway
type Device struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	SerialNumber string    `json:"serial_number" bson:"serial_number"`
	Model        string    `json:"model" bson:"model"`
	MacAddress   string    `json:"mac_address" bson:"mac_address"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Domain validation methods
func (d *Device) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if d.Model == "" {
		return errors.New("model is required")
	}
	return nil
}
