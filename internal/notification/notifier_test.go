package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct{ got []string }

func (r *recorder) Notify(msg string) { r.got = append(r.got, msg) }

func TestThrottle(t *testing.T) {
	rec := &recorder{}
	th := NewThrottle(rec, 1500*time.Millisecond)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	th.Notify("You are offline. Submissions will queue to Outbox.")
	now = now.Add(time.Second)
	th.Notify("Back online")
	now = now.Add(600 * time.Millisecond)
	th.Notify("You are offline. Submissions will queue to Outbox.")

	assert.Equal(t, []string{
		"You are offline. Submissions will queue to Outbox.",
		"You are offline. Submissions will queue to Outbox.",
	}, rec.got)
}

func TestFeed_KeepsMostRecent(t *testing.T) {
	f := NewFeed(2)
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	f.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	f.Notify("one")
	f.Notify("two")
	f.Notify("three")

	recent := f.Recent()
	assert.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Message)
	assert.Equal(t, "three", recent[1].Message)

	since := f.Since(base.Add(2 * time.Second))
	assert.Len(t, since, 1)
	assert.Equal(t, "three", since[0].Message)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b, LogNotifier{}}.Notify("Settings saved")
	assert.Equal(t, []string{"Settings saved"}, a.got)
	assert.Equal(t, []string{"Settings saved"}, b.got)

	var got string
	NotifierFunc(func(msg string) { got = msg }).Notify("x")
	assert.Equal(t, "x", got)
}
