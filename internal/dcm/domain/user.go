package domain

// MaxUsers is the number of accounts a single device programmer may hold.
const MaxUsers = 10

type UserRecord struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"` // argon2id PHC string
	SerialNumber string    `json:"serialNumber"`
	Modes        ModeTable `json:"modes"`
	LastUsedMode Mode      `json:"lastUsedMode"`
}

// UserSummary is the part of a record that may leave the backend.
type UserSummary struct {
	Username     string `json:"username"`
	SerialNumber string `json:"serialNumber"`
	LastUsedMode Mode   `json:"lastUsedMode"`
}

// NewUserRecord builds a freshly registered record with factory mode settings.
func NewUserRecord(username, passwordHash, serialNumber string) UserRecord {
	return UserRecord{
		Username:     username,
		PasswordHash: passwordHash,
		SerialNumber: serialNumber,
		Modes:        DefaultModeTable(),
		LastUsedMode: ModeOff,
	}
}

func (u UserRecord) Summary() UserSummary {
	return UserSummary{
		Username:     u.Username,
		SerialNumber: u.SerialNumber,
		LastUsedMode: u.LastUsedMode,
	}
}

// FindUser returns the index of the record named username, or -1.
func FindUser(records []UserRecord, username string) int {
	for i := range records {
		if records[i].Username == username {
			return i
		}
	}
	return -1
}
