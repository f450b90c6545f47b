package notification

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"meter-capture-agent/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool delivers messages to every registered browser in the background.
type WorkerPool struct {
	size    int
	jobs    chan string
	subs    *Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs *Subscriptions, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*4),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Debugf("Push worker %d started", id)
	for {
		select {
		case msg := <-wp.jobs:
			wp.broadcast(msg)
		case <-ctx.Done():
			log.Debugf("Push worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues msg for delivery. It never blocks: when the queue is
// full the message is dropped.
func (wp *WorkerPool) Dispatch(msg string) {
	select {
	case wp.jobs <- msg:
	default:
		log.WithField("notification", msg).Warn("push queue full; message dropped")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// Notify makes the pool usable as a Notifier.
func (wp *WorkerPool) Notify(msg string) {
	wp.Dispatch(msg)
}

func (wp *WorkerPool) broadcast(msg string) {
	subs := wp.subs.List()
	if len(subs) == 0 {
		return
	}
	log.Debugf("Sending push %q to %d subscription(s)", msg, len(subs))
	for _, sub := range subs {
		wp.sendNotification(sub, []byte(msg))
	}
}

func (wp *WorkerPool) sendNotification(sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		wp.subs.Delete(sub.Endpoint)
	}
}
