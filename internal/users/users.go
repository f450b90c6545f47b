// Package users keeps the directory of accounts that may sign in on this
// device. The list lives behind the users webhook (GET to read, PUT to
// replace) and is mirrored in the local store so sign-in keeps working offline.
package users

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/store"
)

// LocalKey is the global key of the local mirror of the directory.
var LocalKey = store.Global("users")

var (
	ErrCredentialsRequired = errors.New("Username and password required")
	ErrUserExists          = errors.New("User already exists")
	ErrUserNotFound        = errors.New("User not found")
	ErrLastUser            = errors.New("Cannot delete the last user")
	ErrSignedIn            = errors.New("Log out before deleting this user")
	ErrWrongPassword       = errors.New("wrong password")
)

// EndpointSource provides the users webhook URL.
type EndpointSource interface {
	UsersEndpoint() string
}

// CurrentActor reports who is signed in.
type CurrentActor interface {
	Current() *model.Actor
}

type usersDocument struct {
	Users []model.UserRecord `json:"users"`
}

// Directory lists, adds, removes and verifies users.
type Directory struct {
	kv       *store.KV
	endpoint EndpointSource
	current  CurrentActor
	client   *http.Client
	cost     int

	mu sync.Mutex
}

// NewDirectory creates a directory. A nil endpoint keeps the directory local.
func NewDirectory(kv *store.KV, endpoint EndpointSource, current CurrentActor, timeout time.Duration) *Directory {
	return &Directory{
		kv:       kv,
		endpoint: endpoint,
		current:  current,
		client:   &http.Client{Timeout: timeout},
		cost:     bcrypt.DefaultCost,
	}
}

func (d *Directory) url() string {
	if d.endpoint == nil {
		return ""
	}
	return strings.TrimSpace(d.endpoint.UsersEndpoint())
}

// List returns the directory, preferring the remote copy. When the webhook is
// unset or unreachable the local mirror is returned.
func (d *Directory) List(ctx context.Context) []model.UserRecord {
	if url := d.url(); url != "" {
		remote, err := d.fetch(ctx, url)
		if err == nil {
			d.kv.Set(LocalKey, remote)
			return remote
		}
		log.WithError(err).Warn("users webhook unavailable; using local user list")
	}
	return d.local()
}

// Exists reports whether username is in the directory.
func (d *Directory) Exists(ctx context.Context, username string) bool {
	_, i := find(d.List(ctx), strings.TrimSpace(username))
	return i >= 0
}

// Add hashes password and appends a new user.
func (d *Directory) Add(ctx context.Context, username, password, role string) (model.UserRecord, error) {
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if username == "" || password == "" {
		return model.UserRecord{}, ErrCredentialsRequired
	}
	if role = strings.TrimSpace(role); role == "" {
		role = model.RoleUser
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.List(ctx)
	if _, i := find(list, username); i >= 0 {
		return model.UserRecord{}, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return model.UserRecord{}, fmt.Errorf("failed to hash password: %w", err)
	}
	rec := model.UserRecord{Username: username, PasswordHash: string(hash), Role: role}
	d.save(ctx, append(list, rec))
	log.WithField("user", username).Info("user added")
	return rec, nil
}

// Delete removes username. The last remaining user and the signed-in user
// cannot be removed.
func (d *Directory) Delete(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)

	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.List(ctx)
	_, i := find(list, username)
	if i < 0 {
		return ErrUserNotFound
	}
	if len(list) <= 1 {
		return ErrLastUser
	}
	if d.signedIn(username) {
		return ErrSignedIn
	}
	next := append(append([]model.UserRecord{}, list[:i]...), list[i+1:]...)
	d.save(ctx, next)
	log.WithField("user", username).Info("user deleted")
	return nil
}

// Verify checks password against the stored hash of username.
func (d *Directory) Verify(ctx context.Context, username, password string) (model.UserRecord, error) {
	rec, i := find(d.List(ctx), strings.TrimSpace(username))
	if i < 0 {
		return model.UserRecord{}, ErrUserNotFound
	}
	if !matches(rec, password) {
		return model.UserRecord{}, ErrWrongPassword
	}
	return rec, nil
}

func (d *Directory) signedIn(username string) bool {
	if d.current == nil {
		return false
	}
	cur := d.current.Current()
	return cur != nil && cur.Username == username
}

func matches(rec model.UserRecord, password string) bool {
	if rec.Salt != "" {
		sum := sha256.Sum256([]byte(rec.Salt + password))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(rec.PasswordHash))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) == nil
}

func find(list []model.UserRecord, username string) (model.UserRecord, int) {
	for i, rec := range list {
		if rec.Username == username {
			return rec, i
		}
	}
	return model.UserRecord{}, -1
}

func (d *Directory) local() []model.UserRecord {
	var list []model.UserRecord
	d.kv.Get(LocalKey, &list)
	if list == nil {
		list = []model.UserRecord{}
	}
	return list
}

// save writes the local mirror and then the remote copy. A failed remote
// write is logged; the local mirror still holds the change.
func (d *Directory) save(ctx context.Context, list []model.UserRecord) {
	d.kv.Set(LocalKey, list)
	url := d.url()
	if url == "" {
		return
	}
	if err := d.put(ctx, url, list); err != nil {
		log.WithError(err).Warn("users webhook save failed; change kept locally")
	}
}

func (d *Directory) fetch(ctx context.Context, url string) ([]model.UserRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch users: %d", resp.StatusCode)
	}
	var doc struct {
		Users *[]model.UserRecord `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	if doc.Users == nil {
		return nil, errors.New("invalid users shape")
	}
	return *doc.Users, nil
}

func (d *Directory) put(ctx context.Context, url string, list []model.UserRecord) error {
	raw, err := json.Marshal(usersDocument{Users: list})
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to save users: %d", resp.StatusCode)
	}
	return nil
}
