package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meter-capture-agent/internal/identity"
	"meter-capture-agent/internal/ledger"
	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/outbox"
	"meter-capture-agent/internal/store"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(ctx context.Context, url string, p model.Payload) error
}

func (m *mockSender) Send(ctx context.Context, url string, p model.Payload) error {
	return m.SendFunc(ctx, url, p)
}

type staticEndpoint string

func (e staticEndpoint) Endpoint() string { return string(e) }

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
}

type fixture struct {
	scoper *identity.Scoper
	queue  *outbox.Queue
	ledger *ledger.Ledger
	notes  *recorder
}

func newFixture() *fixture {
	kv := store.NewKV(store.NewMemoryStorage())
	scoper := identity.NewScoper(kv)
	return &fixture{
		scoper: scoper,
		queue:  outbox.NewQueue(kv, scoper),
		ledger: ledger.New(kv, scoper, time.UTC),
		notes:  &recorder{},
	}
}

func (f *fixture) pump(sender Sender, endpoint string) *Pump {
	return NewPump(f.queue, f.ledger, sender, staticEndpoint(endpoint), f.notes, 0)
}

func (f *fixture) enqueue(ids ...string) {
	for _, id := range ids {
		f.queue.Enqueue(model.Payload{RequestID: id, Record: model.Record{Stand: id}})
	}
}

func TestPump_DrainsInOrder(t *testing.T) {
	f := newFixture()
	f.enqueue("p1", "p2", "p3")

	var order []string
	p := f.pump(&mockSender{SendFunc: func(ctx context.Context, url string, pl model.Payload) error {
		assert.Equal(t, "https://hook.example/in", url)
		order = append(order, pl.RequestID)
		return nil
	}}, " https://hook.example/in ")

	report := p.Drain(context.Background(), DrainOptions{})

	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, []string{"p1", "p2", "p3"}, order)
	assert.Equal(t, 0, f.queue.Count())
	assert.Equal(t, 3, f.ledger.Today())
	assert.Equal(t, []string{"Synced 3 item(s); done."}, f.notes.got)
}

func TestPump_HaltsOnFailureAndResumes(t *testing.T) {
	f := newFixture()
	f.enqueue("p1", "p2", "p3")

	failOn := "p2"
	var attempts []string
	sender := &mockSender{SendFunc: func(ctx context.Context, url string, pl model.Payload) error {
		attempts = append(attempts, pl.RequestID)
		if pl.RequestID == failOn {
			return errors.New("received non-2xx status code: 503")
		}
		return nil
	}}
	p := f.pump(sender, "https://hook.example/in")

	report := p.Drain(context.Background(), DrainOptions{})
	assert.Equal(t, StatusHalted, report.Status)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 2, report.Remaining)
	assert.Equal(t, []string{"p1", "p2"}, attempts, "p3 must not be attempted after a failure")
	assert.Equal(t, "Synced 1 item(s); stopped on an error. Remaining: 2", report.Message)

	head, ok := f.queue.PeekHead()
	require.True(t, ok)
	assert.Equal(t, "p2", head.RequestID)

	failOn = ""
	attempts = nil
	report = p.Drain(context.Background(), DrainOptions{})
	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, []string{"p2", "p3"}, attempts)
	assert.Equal(t, 3, f.ledger.Today())
}

func TestPump_NoEndpointAndEmpty(t *testing.T) {
	f := newFixture()
	called := false
	sender := &mockSender{SendFunc: func(ctx context.Context, url string, pl model.Payload) error {
		called = true
		return nil
	}}

	report := f.pump(sender, "https://hook.example/in").Drain(context.Background(), DrainOptions{})
	assert.Equal(t, StatusEmpty, report.Status)

	f.enqueue("p1")
	report = f.pump(sender, "   ").Drain(context.Background(), DrainOptions{})
	assert.Equal(t, StatusNoEndpoint, report.Status)
	assert.Equal(t, 1, report.Remaining)

	assert.False(t, called)
	assert.Equal(t, []string{MsgNothing, MsgNoEndpoint}, f.notes.got)
}

func TestPump_SilentSuppressesMessages(t *testing.T) {
	f := newFixture()
	f.enqueue("p1")
	p := f.pump(&mockSender{SendFunc: func(context.Context, string, model.Payload) error { return nil }}, "https://hook.example/in")

	assert.Equal(t, StatusDone, p.Drain(context.Background(), DrainOptions{Silent: true}).Status)
	assert.Equal(t, StatusEmpty, p.Drain(context.Background(), DrainOptions{Silent: true}).Status)
	assert.Empty(t, f.notes.got)
}

func TestPump_SecondDrainIsBusy(t *testing.T) {
	f := newFixture()
	f.enqueue("p1", "p2")

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	sender := &mockSender{SendFunc: func(ctx context.Context, url string, pl model.Payload) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		return nil
	}}
	p := f.pump(sender, "https://hook.example/in")

	done := make(chan Report)
	go func() { done <- p.Drain(context.Background(), DrainOptions{}) }()

	<-entered
	assert.True(t, p.Running())
	busy := p.Drain(context.Background(), DrainOptions{})
	assert.Equal(t, StatusBusy, busy.Status)

	close(release)
	first := <-done
	assert.Equal(t, StatusDone, first.Status)
	assert.Equal(t, 2, first.Sent)
	assert.Equal(t, 2, calls, "each payload is sent exactly once")
	assert.False(t, p.Running())
	assert.Equal(t, []string{"Synced 2 item(s); done."}, f.notes.got)
}

func TestPump_CancelDuringPacing(t *testing.T) {
	f := newFixture()
	f.enqueue("p1", "p2")

	ctx, cancel := context.WithCancel(context.Background())
	sender := &mockSender{SendFunc: func(context.Context, string, model.Payload) error {
		cancel()
		return nil
	}}
	p := NewPump(f.queue, f.ledger, sender, staticEndpoint("https://hook.example/in"), f.notes, time.Hour)

	report := p.Drain(ctx, DrainOptions{})
	assert.Equal(t, StatusCanceled, report.Status)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Remaining)
	assert.False(t, p.Running())
	assert.Empty(t, f.notes.got)
}

func TestPump_PinsNamespaceAtStart(t *testing.T) {
	f := newFixture()
	f.scoper.SetActor("A", "", "", time.Now())
	f.enqueue("a1", "a2")

	var order []string
	sender := &mockSender{SendFunc: func(ctx context.Context, url string, pl model.Payload) error {
		order = append(order, pl.RequestID)
		// Actor switches mid-drain.
		f.scoper.SetActor("B", "", "", time.Now())
		return nil
	}}

	report := f.pump(sender, "https://hook.example/in").Drain(context.Background(), DrainOptions{})
	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, []string{"a1", "a2"}, order)
	assert.Equal(t, 2, f.ledger.Pin(store.ActorNamespace("A")).Today())
	assert.Equal(t, 0, f.ledger.Pin(store.ActorNamespace("B")).Today())
}

func TestWebhookSender(t *testing.T) {
	status := http.StatusOK
	var received model.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(status)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer server.Close()

	s := NewWebhookSender(5 * time.Second)
	p := model.Payload{RequestID: "r-1", Record: model.Record{Stand: "77"}}

	assert.NoError(t, s.Send(context.Background(), server.URL, p), "body is ignored on 2xx")
	assert.Equal(t, "r-1", received.RequestID)
	assert.Equal(t, "77", received.Record.Stand)

	status = http.StatusInternalServerError
	assert.ErrorContains(t, s.Send(context.Background(), server.URL, p), "500")

	server.Close()
	assert.Error(t, s.Send(context.Background(), server.URL, p))
}
