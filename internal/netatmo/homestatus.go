package netatmo

import (
	"encoding/json"
	"fmt"
)

// ProviderError is an error object embedded in a Netatmo response body
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RoomStatus is the state of a single room as reported by /homestatus
type RoomStatus struct {
	ID                  string   `json:"id"`
	MeasuredTemperature float64  `json:"therm_measured_temperature"`
	Humidity            *float64 `json:"humidity"`
	SetpointTemperature float64  `json:"therm_setpoint_temperature"`
	SetpointMode        string   `json:"therm_setpoint_mode"`
	SetpointEndTime     *int64   `json:"therm_setpoint_end_time"`
}

// HomeStatus is the decoded /homestatus response
type HomeStatus struct {
	Error *ProviderError `json:"error"`
	Body  struct {
		Home struct {
			ID    string       `json:"id"`
			Rooms []RoomStatus `json:"rooms"`
		} `json:"home"`
		Errors []ProviderError `json:"errors"`
	} `json:"body"`
}

// ParseHomeStatus decodes a /homestatus response
func ParseHomeStatus(data []byte) (*HomeStatus, error) {
	var status HomeStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse home status: %w", err)
	}
	return &status, nil
}

// Room returns the status of the room with the given id
func (h *HomeStatus) Room(id string) (*RoomStatus, bool) {
	for i := range h.Body.Home.Rooms {
		if h.Body.Home.Rooms[i].ID == id {
			return &h.Body.Home.Rooms[i], true
		}
	}
	return nil, false
}
