// Package capture turns a capture form into a payload and either delivers it
// directly or queues it in the outbox.
package capture

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"meter-capture-agent/internal/delivery"
	"meter-capture-agent/internal/draft"
	"meter-capture-agent/internal/identity"
	"meter-capture-agent/internal/ledger"
	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/notification"
	"meter-capture-agent/internal/outbox"
	"meter-capture-agent/internal/store"
)

// ClientIDKey is the global key of the install's stable id.
var ClientIDKey = store.Global("client_id")

const lastGPSKey = "lastGPS"

// Outcome is what happened to a submitted record.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeQueued    Outcome = "queued"
)

// Reason says why a record was queued instead of delivered.
type Reason string

const (
	ReasonNoEndpoint Reason = "no_endpoint"
	ReasonOffline    Reason = "offline"
	ReasonSendFailed Reason = "send_failed"
)

// Messages shown to the actor.
const (
	MsgDelivered  = "Submitted ✔"
	MsgNoEndpoint = "No webhook set – queued to Outbox"
	MsgQueued     = "Offline or server error – queued to Outbox"
)

// Result describes one accepted submission.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Reason    Reason  `json:"reason,omitempty"`
	Message   string  `json:"message"`
	RequestID string  `json:"request_id"`
	Queued    int     `json:"queued"`
	SentToday int     `json:"sent_today"`
}

// SettingsSource provides the delivery endpoint and the team label.
type SettingsSource interface {
	Endpoint() string
	Team() string
}

// Connectivity reports whether a direct send is worth attempting.
type Connectivity interface {
	Online() bool
}

// Deps are the collaborators of a Service.
type Deps struct {
	KV           *store.KV
	Scoper       *identity.Scoper
	Queue        *outbox.Queue
	Ledger       *ledger.Ledger
	Drafts       *draft.Cache
	Sender       delivery.Sender
	Settings     SettingsSource
	Connectivity Connectivity
	Notifier     notification.Notifier
	Timezone     string
}

// Service is the submission path.
type Service struct {
	Deps
	now func() time.Time

	clientIDMu sync.Mutex
}

// NewService creates a submission service.
func NewService(deps Deps) *Service {
	return &Service{Deps: deps, now: time.Now}
}

// Submit validates form, builds a payload and delivers or queues it. A
// *ValidationError means nothing was stored or sent. Every other case
// returns a Result and clears the draft.
func (s *Service) Submit(ctx context.Context, form model.Form, userAgent string) (Result, error) {
	trimmed := form.Trimmed()
	if err := checkRequired(trimmed); err != nil {
		return Result{}, err
	}

	p := s.buildPayload(trimmed, userAgent)
	logger := log.WithFields(log.Fields{"request_id": p.RequestID, "namespace": s.Scoper.Namespace().String()})

	var res Result
	switch url := strings.TrimSpace(s.Settings.Endpoint()); {
	case url == "":
		res = s.enqueue(p, ReasonNoEndpoint, MsgNoEndpoint)
	case s.Connectivity != nil && !s.Connectivity.Online():
		res = s.enqueue(p, ReasonOffline, MsgQueued)
	default:
		if err := s.Sender.Send(ctx, url, p); err != nil {
			logger.WithError(err).Warn("direct send failed; queued")
			res = s.enqueue(p, ReasonSendFailed, MsgQueued)
		} else {
			s.Ledger.Increment()
			res = Result{Outcome: OutcomeDelivered, Message: MsgDelivered, RequestID: p.RequestID}
		}
	}

	s.Drafts.Clear()
	res.Queued = s.Queue.Count()
	res.SentToday = s.Ledger.Today()
	logger.WithFields(log.Fields{"outcome": res.Outcome, "reason": res.Reason}).Info("record submitted")
	s.notify(res.Message)
	return res, nil
}

func (s *Service) enqueue(p model.Payload, reason Reason, msg string) Result {
	s.Queue.Enqueue(p)
	return Result{Outcome: OutcomeQueued, Reason: reason, Message: msg, RequestID: p.RequestID}
}

func (s *Service) buildPayload(f model.Form, userAgent string) model.Payload {
	meta := model.Meta{
		Version:     model.SchemaVersion,
		SubmittedAt: s.now().UTC(),
		Timezone:    s.Timezone,
		UserAgent:   userAgent,
		ClientID:    s.ClientID(),
	}
	if team := s.Settings.Team(); team != "" {
		meta.Team = &team
	}
	if actor := s.Scoper.Current(); actor != nil {
		u := actor.Username
		meta.User = &u
	}

	record := f.Record()
	record.GPS = s.LastGPS()

	return model.Payload{Meta: meta, Record: record, RequestID: uuid.NewString()}
}

// ClientID returns this install's id, creating it on first use.
func (s *Service) ClientID() string {
	s.clientIDMu.Lock()
	defer s.clientIDMu.Unlock()

	var id string
	if s.KV.Get(ClientIDKey, &id) && id != "" {
		return id
	}
	id = uuid.NewString()
	s.KV.Set(ClientIDKey, id)
	return id
}

// SaveDraft stores the in-progress form for the current actor.
func (s *Service) SaveDraft(form model.Form) model.Form {
	return s.Drafts.Save(form)
}

// LoadDraft returns the current actor's draft.
func (s *Service) LoadDraft() (model.Form, bool) {
	return s.Drafts.Load()
}

// ResetDraft discards the current actor's draft.
func (s *Service) ResetDraft() {
	s.Drafts.Clear()
}

// SetGPS records the last position fix for the current actor.
func (s *Service) SetGPS(fix model.GPSFix) model.GPSFix {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = s.now().UTC()
	}
	s.KV.Set(s.Scoper.Key(lastGPSKey), fix)
	return fix
}

// LastGPS returns the current actor's last position fix, or nil.
func (s *Service) LastGPS() *model.GPSFix {
	var fix model.GPSFix
	if !s.KV.Get(s.Scoper.Key(lastGPSKey), &fix) {
		return nil
	}
	return &fix
}

func (s *Service) notify(msg string) {
	if s.Notifier != nil && msg != "" {
		s.Notifier.Notify(msg)
	}
}
