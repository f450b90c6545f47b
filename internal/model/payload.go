package model

import "time"

// SchemaVersion is stamped into every payload's meta block.
const SchemaVersion = 1

// Payload is the unit stored in the outbox and posted to the delivery webhook.
// A payload is never modified after it has been built.
type Payload struct {
	Meta      Meta   `json:"meta"`
	Record    Record `json:"record"`
	RequestID string `json:"request_id"`
}

// Meta describes who submitted a record, when, and from which install.
type Meta struct {
	Version     int       `json:"version"`
	SubmittedAt time.Time `json:"submitted_at"`
	Timezone    string    `json:"timezone"`
	Team        *string   `json:"team"`
	UserAgent   string    `json:"ua"`
	User        *string   `json:"user"`
	ClientID    string    `json:"client_id"`
}

// Record is a single stand inspection.
type Record struct {
	Stand      string     `json:"stand"`
	Area       string     `json:"area"`
	Street     string     `json:"street"`
	ClientInfo string     `json:"client_info"`
	Electrical Electrical `json:"electrical"`
	Water      Water      `json:"water"`
	StandNote  string     `json:"stand_note"`
	GPS        *GPSFix    `json:"gps"`
}

// Electrical holds the electrical meter attributes of a stand.
type Electrical struct {
	Serial       string `json:"sn"`
	Type         string `json:"type"`
	Minisub      string `json:"minisub"`
	Feeder       string `json:"feeder"`
	SupplyCable  string `json:"supply_cable"`
	BreakerState string `json:"breaker_state"`
}

// Water holds the water meter attributes of a stand.
type Water struct {
	Serial string `json:"sn"`
	Type   string `json:"type"`
}

// GPSFix is the last known position reported by the device.
type GPSFix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"ts"`
}
