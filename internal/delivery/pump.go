// Package delivery drains the outbox to the delivery webhook, oldest payload first.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"meter-capture-agent/internal/ledger"
	"meter-capture-agent/internal/notification"
	"meter-capture-agent/internal/outbox"
)

// Status is the way a drain ended.
type Status string

const (
	StatusBusy       Status = "busy"
	StatusNoEndpoint Status = "no_endpoint"
	StatusEmpty      Status = "empty"
	StatusDone       Status = "done"
	StatusHalted     Status = "halted"
	StatusCanceled   Status = "canceled"
)

// Messages shown to the actor.
const (
	MsgNoEndpoint = "Set your webhook in Settings"
	MsgNothing    = "Nothing to sync"
)

// EndpointSource yields the delivery URL, or "" when none is configured.
type EndpointSource interface {
	Endpoint() string
}

// DrainOptions controls one drain.
type DrainOptions struct {
	// Silent suppresses every message to the actor.
	Silent bool
}

// Report summarizes a drain.
type Report struct {
	Status    Status `json:"status"`
	Sent      int    `json:"sent"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message,omitempty"`
}

// Pump delivers queued payloads one at a time, stopping at the first failure.
// At most one drain runs per Pump; overlapping calls return StatusBusy.
type Pump struct {
	queue    *outbox.Queue
	ledger   *ledger.Ledger
	sender   Sender
	endpoint EndpointSource
	notifier notification.Notifier
	delay    time.Duration

	running atomic.Bool
}

// NewPump creates a pump. delay is the pause after each delivered payload.
func NewPump(queue *outbox.Queue, l *ledger.Ledger, sender Sender, endpoint EndpointSource, notifier notification.Notifier, delay time.Duration) *Pump {
	if delay < 0 {
		delay = 0
	}
	return &Pump{
		queue:    queue,
		ledger:   l,
		sender:   sender,
		endpoint: endpoint,
		notifier: notifier,
		delay:    delay,
	}
}

// Running reports whether a drain is in progress.
func (p *Pump) Running() bool {
	return p.running.Load()
}

// Drain sends the outbox of the current actor in FIFO order. The namespace is
// fixed when the drain starts.
func (p *Pump) Drain(ctx context.Context, opts DrainOptions) Report {
	if !p.running.CompareAndSwap(false, true) {
		return Report{Status: StatusBusy}
	}
	defer p.running.Store(false)

	url := strings.TrimSpace(p.endpoint.Endpoint())
	if url == "" {
		p.say(opts, MsgNoEndpoint)
		return Report{Status: StatusNoEndpoint, Remaining: p.queue.Count(), Message: MsgNoEndpoint}
	}

	ns := p.queue.Namespace()
	queue := p.queue.Pin(ns)
	sentLog := p.ledger.Pin(ns)
	logger := log.WithField("namespace", ns.String())

	if queue.Count() == 0 {
		p.say(opts, MsgNothing)
		return Report{Status: StatusEmpty, Message: MsgNothing}
	}

	sent := 0
	for {
		head, ok := queue.PeekHead()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			return p.canceled(logger, queue, sent)
		}

		if err := p.sender.Send(ctx, url, *head); err != nil {
			if ctx.Err() != nil {
				return p.canceled(logger, queue, sent)
			}
			logger.WithField("request_id", head.RequestID).WithError(err).Warn("delivery failed; halting drain")
			return p.finish(opts, StatusHalted, sent, queue.Count())
		}

		queue.RemoveHead()
		sentLog.Increment()
		sent++
		logger.WithField("request_id", head.RequestID).Info("payload delivered")

		if queue.Count() == 0 {
			break
		}
		if !wait(ctx, p.delay) {
			return p.canceled(logger, queue, sent)
		}
	}

	return p.finish(opts, StatusDone, sent, queue.Count())
}

func (p *Pump) finish(opts DrainOptions, status Status, sent, remaining int) Report {
	msg := fmt.Sprintf("Synced %d item(s)", sent)
	if status == StatusHalted {
		msg += fmt.Sprintf("; stopped on an error. Remaining: %d", remaining)
	} else {
		msg += "; done."
	}
	p.say(opts, msg)
	return Report{Status: status, Sent: sent, Remaining: remaining, Message: msg}
}

func (p *Pump) canceled(logger *log.Entry, queue *outbox.Queue, sent int) Report {
	remaining := queue.Count()
	logger.WithFields(log.Fields{"sent": sent, "remaining": remaining}).Info("drain canceled")
	return Report{Status: StatusCanceled, Sent: sent, Remaining: remaining}
}

func (p *Pump) say(opts DrainOptions, msg string) {
	if opts.Silent || p.notifier == nil {
		return
	}
	p.notifier.Notify(msg)
}

// wait pauses for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
