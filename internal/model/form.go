package model

import (
	"strings"
	"time"
)

// Form is the capture form as the UI sends it. It doubles as the draft snapshot,
// so the JSON names follow the form's field ids.
type Form struct {
	Stand        string    `json:"stand"`
	Area         string    `json:"area"`
	Street       string    `json:"street"`
	ClientInfo   string    `json:"clientInfo"`
	ElecSerial   string    `json:"elecSn"`
	ElecType     string    `json:"elecType"`
	Minisub      string    `json:"minisub"`
	Feeder       string    `json:"feeder"`
	SupplyCable  string    `json:"supplyCable"`
	BreakerState string    `json:"breakerState"`
	WaterSerial  string    `json:"waterSn"`
	WaterType    string    `json:"waterType"`
	StandNote    string    `json:"standNote"`
	SavedAt      time.Time `json:"_ts"`
}

// Trimmed returns a copy of the form with surrounding whitespace removed from every field.
func (f Form) Trimmed() Form {
	return Form{
		Stand:        strings.TrimSpace(f.Stand),
		Area:         strings.TrimSpace(f.Area),
		Street:       strings.TrimSpace(f.Street),
		ClientInfo:   strings.TrimSpace(f.ClientInfo),
		ElecSerial:   strings.TrimSpace(f.ElecSerial),
		ElecType:     strings.TrimSpace(f.ElecType),
		Minisub:      strings.TrimSpace(f.Minisub),
		Feeder:       strings.TrimSpace(f.Feeder),
		SupplyCable:  strings.TrimSpace(f.SupplyCable),
		BreakerState: strings.TrimSpace(f.BreakerState),
		WaterSerial:  strings.TrimSpace(f.WaterSerial),
		WaterType:    strings.TrimSpace(f.WaterType),
		StandNote:    strings.TrimSpace(f.StandNote),
		SavedAt:      f.SavedAt,
	}
}

// Record maps the form onto the payload record. GPS is attached by the caller.
func (f Form) Record() Record {
	t := f.Trimmed()
	return Record{
		Stand:      t.Stand,
		Area:       t.Area,
		Street:     t.Street,
		ClientInfo: t.ClientInfo,
		Electrical: Electrical{
			Serial:       t.ElecSerial,
			Type:         t.ElecType,
			Minisub:      t.Minisub,
			Feeder:       t.Feeder,
			SupplyCable:  t.SupplyCable,
			BreakerState: t.BreakerState,
		},
		Water:     Water{Serial: t.WaterSerial, Type: t.WaterType},
		StandNote: t.StandNote,
	}
}
