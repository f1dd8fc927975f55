package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type LoginEvent struct {
	LoginDate time.Time `json:"loginDate"`
}

type ParameterChange struct {
	ChangeDate time.Time `json:"changeDate"`
	Mode       Mode      `json:"mode"`
	Settings   Settings  `json:"settings"`
}

// UnmarshalJSON resolves the settings variant from the recorded mode. Stored
// history is read leniently so older files with extra fields still load.
func (c *ParameterChange) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChangeDate time.Time       `json:"changeDate"`
		Mode       Mode            `json:"mode"`
		Settings   json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	settings, err := decodeSettings(raw.Mode, raw.Settings, false)
	if err != nil {
		return fmt.Errorf("parameter change at %s: %w", raw.ChangeDate.Format(time.RFC3339), err)
	}

	c.ChangeDate = raw.ChangeDate
	c.Mode = raw.Mode
	c.Settings = settings
	return nil
}

// HistoryEntry is the audit trail of a single user.
type HistoryEntry struct {
	Username         string            `json:"username"`
	SerialNumber     string            `json:"serialNumber"`
	RegistrationDate time.Time         `json:"registrationDate"`
	LoginHistory     []LoginEvent      `json:"loginHistory"`
	ParameterChanges []ParameterChange `json:"parameterChanges"`
}

func NewHistoryEntry(username, serialNumber string, registeredAt time.Time) HistoryEntry {
	return HistoryEntry{
		Username:         username,
		SerialNumber:     serialNumber,
		RegistrationDate: registeredAt.UTC(),
		LoginHistory:     []LoginEvent{},
		ParameterChanges: []ParameterChange{},
	}
}

// FindHistory returns the index of the entry for username, or -1.
func FindHistory(entries []HistoryEntry, username string) int {
	for i := range entries {
		if entries[i].Username == username {
			return i
		}
	}
	return -1
}
