// Package settings owns the device-wide settings record and the meter type catalogs.
package settings

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"meter-capture-agent/config"
	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/notification"
	"meter-capture-agent/internal/store"
)

// Key is the global key of the settings record.
var Key = store.Global("settings")

// UnknownType always sorts last in the electrical catalog.
const UnknownType = "Unknown"

// Messages shown to the actor.
const (
	MsgSaved     = "Settings saved"
	MsgAdminOnly = "Only admins can open Settings"
)

var (
	// ErrForbidden is returned when a non-admin tries to change settings.
	ErrForbidden = errors.New("admin role required")
	// ErrNoSuchEntry is returned when a catalog index is out of range.
	ErrNoSuchEntry = errors.New("no such catalog entry")
	// ErrEmptyEntry is returned when a blank catalog entry is added.
	ErrEmptyEntry = errors.New("catalog entry is empty")
)

// DefaultElecTypes is the built-in electrical meter catalog.
func DefaultElecTypes() []string {
	return []string{"Actaris", "Ampy", "CBI", "Econ", "Enligt", "Hexing", "Ihemeter 3PH WC", "Kamstrup 1PH", "Kamstrup 3PH", "L+G Cashpower", "L+G E460", "TSK/3", "VC1800", "VC3000", "VC3100", UnknownType}
}

// DefaultWaterTypes is the built-in water meter catalog.
func DefaultWaterTypes() []string {
	return []string{"Lesira", "Kent", "Sensus", "Elster"}
}

// Patch is an admin edit of the settings dialog. Nil fields are left alone.
type Patch struct {
	Webhook           *string `json:"webhook"`
	Team              *string `json:"team"`
	AuthWebhook       *string `json:"authWebhook"`
	CreateUserWebhook *string `json:"createUserWebhook"`
	UsersEndpoint     *string `json:"usersEndpoint"`
}

// Service reads and writes the settings record.
type Service struct {
	kv       *store.KV
	defaults config.DefaultsConfig
	notifier notification.Notifier
	mu       sync.Mutex
}

// NewService creates a settings service. defaults seed the webhook URLs
// when no settings have been stored yet.
func NewService(kv *store.KV, defaults config.DefaultsConfig, notifier notification.Notifier) *Service {
	return &Service{kv: kv, defaults: defaults, notifier: notifier}
}

func (s *Service) seed() model.Settings {
	return model.Settings{
		Webhook:           s.defaults.Webhook,
		WebhookURL:        s.defaults.Webhook,
		AuthWebhook:       s.defaults.AuthWebhook,
		CreateUserWebhook: s.defaults.CreateUserWebhook,
	}
}

func (s *Service) load() model.Settings {
	var cur model.Settings
	if !s.kv.Get(Key, &cur) {
		return s.seed()
	}
	return cur
}

// Ensure normalizes the stored settings, persists them and returns the result.
func (s *Service) Ensure() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := normalize(s.load())
	s.kv.Set(Key, out)
	return out
}

// Get returns the normalized settings without writing them back.
func (s *Service) Get() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return normalize(s.load())
}

// Endpoint returns the delivery webhook, or "" when none is set.
func (s *Service) Endpoint() string {
	st := s.Get()
	return unifiedWebhook(st)
}

// AuthEndpoint returns the login webhook.
func (s *Service) AuthEndpoint() string {
	return strings.TrimSpace(s.Get().AuthWebhook)
}

// CreateUserEndpoint returns the create-user webhook.
func (s *Service) CreateUserEndpoint() string {
	return strings.TrimSpace(s.Get().CreateUserWebhook)
}

// UsersEndpoint returns the users directory webhook.
func (s *Service) UsersEndpoint() string {
	return strings.TrimSpace(s.Get().UsersEndpoint)
}

// Team returns the team label stamped into payloads.
func (s *Service) Team() string {
	return strings.TrimSpace(s.Get().Team)
}

// Merge layers server-provided settings over the current ones (which are
// themselves layered over the configured defaults) and persists the result.
// Only the keys present in server are changed.
func (s *Service) Merge(server map[string]any) model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	layered := toMap(s.seed())
	for k, v := range toMap(s.load()) {
		layered[k] = v
	}
	for k, v := range server {
		layered[k] = v
	}

	var merged model.Settings
	raw, err := json.Marshal(layered)
	if err == nil {
		err = json.Unmarshal(raw, &merged)
	}
	if err != nil {
		log.WithError(err).Warn("server settings could not be merged; keeping current settings")
		return normalize(s.load())
	}

	out := normalize(merged)
	s.kv.Set(Key, out)
	return out
}

// Save applies an admin's edits.
func (s *Service) Save(actor *model.Actor, patch Patch) (model.Settings, error) {
	if !actor.IsAdmin() {
		return model.Settings{}, ErrForbidden
	}

	s.mu.Lock()
	cur := normalize(s.load())
	if patch.Webhook != nil {
		cur.Webhook = strings.TrimSpace(*patch.Webhook)
		cur.WebhookURL = cur.Webhook
	}
	if patch.Team != nil {
		cur.Team = strings.TrimSpace(*patch.Team)
	}
	if patch.AuthWebhook != nil {
		cur.AuthWebhook = strings.TrimSpace(*patch.AuthWebhook)
	}
	if patch.CreateUserWebhook != nil {
		cur.CreateUserWebhook = strings.TrimSpace(*patch.CreateUserWebhook)
	}
	if patch.UsersEndpoint != nil {
		cur.UsersEndpoint = strings.TrimSpace(*patch.UsersEndpoint)
	}
	s.kv.Set(Key, cur)
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.Notify(MsgSaved)
	}
	return cur, nil
}

func (s *Service) mutate(actor *model.Actor, fn func(*model.Settings) error) (model.Settings, error) {
	if !actor.IsAdmin() {
		return model.Settings{}, ErrForbidden
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := normalize(s.load())
	if err := fn(&cur); err != nil {
		return cur, err
	}
	cur = normalize(cur)
	s.kv.Set(Key, cur)
	return cur, nil
}

// AddElecType adds an electrical meter type. The catalog stays sorted with Unknown last.
func (s *Service) AddElecType(actor *model.Actor, name string) (model.Settings, error) {
	name = strings.TrimSpace(name)
	return s.mutate(actor, func(st *model.Settings) error {
		if name == "" {
			return ErrEmptyEntry
		}
		st.ElecTypes = append(st.ElecTypes, name)
		return nil
	})
}

// RemoveElecType removes the electrical type at index i. Unknown is always put back.
func (s *Service) RemoveElecType(actor *model.Actor, i int) (model.Settings, error) {
	return s.mutate(actor, func(st *model.Settings) error {
		if i < 0 || i >= len(st.ElecTypes) {
			return ErrNoSuchEntry
		}
		st.ElecTypes = append(st.ElecTypes[:i:i], st.ElecTypes[i+1:]...)
		return nil
	})
}

// AddWaterType appends a water meter type unless it is already listed.
func (s *Service) AddWaterType(actor *model.Actor, name string) (model.Settings, error) {
	name = strings.TrimSpace(name)
	return s.mutate(actor, func(st *model.Settings) error {
		if name == "" {
			return ErrEmptyEntry
		}
		for _, t := range st.WaterTypes {
			if t == name {
				return nil
			}
		}
		st.WaterTypes = append(st.WaterTypes, name)
		return nil
	})
}

// RemoveWaterType removes the water type at index i.
func (s *Service) RemoveWaterType(actor *model.Actor, i int) (model.Settings, error) {
	return s.mutate(actor, func(st *model.Settings) error {
		if i < 0 || i >= len(st.WaterTypes) {
			return ErrNoSuchEntry
		}
		st.WaterTypes = append(st.WaterTypes[:i:i], st.WaterTypes[i+1:]...)
		return nil
	})
}

func normalize(st model.Settings) model.Settings {
	st.ElecTypes = normalizeElec(st.ElecTypes)
	if st.WaterTypes == nil {
		st.WaterTypes = DefaultWaterTypes()
	}
	unified := unifiedWebhook(st)
	st.Webhook = unified
	st.WebhookURL = unified
	return st
}

func unifiedWebhook(st model.Settings) string {
	if w := strings.TrimSpace(st.Webhook); w != "" {
		return w
	}
	return strings.TrimSpace(st.WebhookURL)
}

// normalizeElec merges stored types with the defaults, drops duplicates,
// sorts case-insensitively and keeps Unknown as the final entry.
func normalizeElec(stored []string) []string {
	if stored == nil {
		return DefaultElecTypes()
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range append(append([]string{}, stored...), DefaultElecTypes()...) {
		t = strings.TrimSpace(t)
		if t == "" || t == UnknownType || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a == b {
			return out[i] < out[j]
		}
		return a < b
	})
	return append(out, UnknownType)
}

func toMap(st model.Settings) map[string]any {
	m := map[string]any{}
	raw, err := json.Marshal(st)
	if err != nil {
		return m
	}
	_ = json.Unmarshal(raw, &m)
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
	return m
}
