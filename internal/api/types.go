package api

import "github.com/vozcasa/vozcasa/domain/entities"

// ErrorResponse is the uniform error body for every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DeviceListResponse wraps the full device inventory.
type DeviceListResponse struct {
	Devices []entities.Device `json:"devices"`
}

// SetPowerRequest switches one device on or off from the UI.
type SetPowerRequest struct {
	On bool `json:"on"`
}

// SetValueRequest adjusts one device's scalar value from the UI.
type SetValueRequest struct {
	Value float64 `json:"value"`
}

// DeviceResponse returns the device's state after a mutation.
type DeviceResponse struct {
	Device entities.Device `json:"device"`
}
