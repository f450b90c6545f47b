package model

// UserRecord is one entry of the user directory. Records written by the agent
// carry a bcrypt hash in PasswordHash and no Salt. Records from older clients
// carry a hex SHA-256 of Salt+password.
type UserRecord struct {
	Username     string `json:"u"`
	PasswordHash string `json:"ph"`
	Salt         string `json:"salt,omitempty"`
	Role         string `json:"role,omitempty"`
}
