package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

type staticEndpoint string

func (s staticEndpoint) UsersEndpoint() string { return string(s) }

type fakeCurrent struct{ actor *model.Actor }

func (f *fakeCurrent) Current() *model.Actor { return f.actor }

// remoteUsers is an in-memory users webhook.
type remoteUsers struct {
	mu    sync.Mutex
	users []model.UserRecord
	down  bool
	puts  int
}

func (r *remoteUsers) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	switch req.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(usersDocument{Users: r.users})
	case http.MethodPut:
		var doc usersDocument
		if err := json.NewDecoder(req.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.users = doc.Users
		r.puts++
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newLocalDirectory(current *fakeCurrent) (*Directory, *store.KV) {
	kv := store.NewKV(store.NewMemoryStorage())
	d := NewDirectory(kv, nil, current, time.Second)
	d.cost = bcrypt.MinCost
	return d, kv
}

func saltedHash(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func TestAdd_AndVerify(t *testing.T) {
	d, kv := newLocalDirectory(&fakeCurrent{})
	ctx := context.Background()

	rec, err := d.Add(ctx, " lerato ", " pw1 ", "")
	require.NoError(t, err)
	assert.Equal(t, "lerato", rec.Username)
	assert.Equal(t, model.RoleUser, rec.Role)
	assert.Empty(t, rec.Salt)
	assert.NotEqual(t, "pw1", rec.PasswordHash)

	var stored []model.UserRecord
	require.True(t, kv.Get(LocalKey, &stored))
	require.Len(t, stored, 1)

	got, err := d.Verify(ctx, "lerato", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "lerato", got.Username)

	_, err = d.Verify(ctx, "lerato", "nope")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = d.Verify(ctx, "ghost", "pw1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdd_Rejections(t *testing.T) {
	d, _ := newLocalDirectory(&fakeCurrent{})
	ctx := context.Background()

	_, err := d.Add(ctx, "lerato", "  ", "")
	assert.ErrorIs(t, err, ErrCredentialsRequired)

	_, err = d.Add(ctx, "lerato", "pw", "admin")
	require.NoError(t, err)
	_, err = d.Add(ctx, "lerato", "other", "")
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Len(t, d.List(ctx), 1)
	assert.True(t, d.Exists(ctx, "lerato"))
}

func TestDelete_Rules(t *testing.T) {
	current := &fakeCurrent{}
	d, _ := newLocalDirectory(current)
	ctx := context.Background()

	_, err := d.Add(ctx, "admin", "pw", model.RoleAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, d.Delete(ctx, "ghost"), ErrUserNotFound)
	assert.ErrorIs(t, d.Delete(ctx, "admin"), ErrLastUser)

	_, err = d.Add(ctx, "sipho", "pw", "")
	require.NoError(t, err)

	current.actor = &model.Actor{Username: "sipho"}
	assert.ErrorIs(t, d.Delete(ctx, "sipho"), ErrSignedIn)
	assert.Len(t, d.List(ctx), 2)

	current.actor = &model.Actor{Username: "admin", Role: model.RoleAdmin}
	require.NoError(t, d.Delete(ctx, "sipho"))
	list := d.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "admin", list[0].Username)
}

func TestVerify_SaltedSHA256Records(t *testing.T) {
	d, kv := newLocalDirectory(&fakeCurrent{})
	kv.Set(LocalKey, []model.UserRecord{{Username: "old", Salt: "a1b2", PasswordHash: saltedHash("a1b2", "legacy")}})

	_, err := d.Verify(context.Background(), "old", "legacy")
	assert.NoError(t, err)
	_, err = d.Verify(context.Background(), "old", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestRemoteDirectory(t *testing.T) {
	remote := &remoteUsers{users: []model.UserRecord{{Username: "seed", Salt: "s", PasswordHash: saltedHash("s", "pw")}}}
	server := httptest.NewServer(remote)
	defer server.Close()

	kv := store.NewKV(store.NewMemoryStorage())
	d := NewDirectory(kv, staticEndpoint(server.URL), &fakeCurrent{}, time.Second)
	d.cost = bcrypt.MinCost
	ctx := context.Background()

	_, err := d.Add(ctx, "new", "pw2", "")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.puts)
	require.Len(t, remote.users, 2)
	assert.Equal(t, "new", remote.users[1].Username)

	// The webhook goes away: the mirror still answers.
	remote.mu.Lock()
	remote.down = true
	remote.mu.Unlock()

	_, err = d.Verify(ctx, "seed", "pw")
	assert.NoError(t, err)
	_, err = d.Verify(ctx, "new", "pw2")
	assert.NoError(t, err)

	require.NoError(t, d.Delete(ctx, "seed"))
	assert.Len(t, d.List(ctx), 1, "the local mirror keeps the change")
	remote.mu.Lock()
	assert.Len(t, remote.users, 2)
	remote.mu.Unlock()
}

func TestRemoteDirectory_InvalidShapeFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"people":[]}`))
	}))
	defer server.Close()

	kv := store.NewKV(store.NewMemoryStorage())
	kv.Set(LocalKey, []model.UserRecord{{Username: "cached"}})
	d := NewDirectory(kv, staticEndpoint(server.URL), nil, time.Second)

	list := d.List(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "cached", list[0].Username)
}
