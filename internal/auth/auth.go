// Package auth signs actors in and out against the authentication webhook.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"meter-capture-agent/internal/identity"
	"meter-capture-agent/internal/model"
	"meter-capture-agent/internal/notification"
	"meter-capture-agent/internal/settings"
	"meter-capture-agent/internal/users"
)

var (
	// ErrMissingCredentials is returned when the username or password is blank.
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrInvalidCredentials is returned when the auth webhook rejects the login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoAuthWebhook is returned when neither settings nor configuration name a login webhook.
	ErrNoAuthWebhook = errors.New("auth webhook not set")
	// ErrNoCreateUserWebhook is returned when no create-user webhook is configured.
	ErrNoCreateUserWebhook = errors.New("Create-User Webhook not set")
	// ErrCreateUserFailed is returned when the create-user webhook does not accept the request.
	ErrCreateUserFailed = errors.New("Create user failed")
	// ErrNoDirectory is returned by user management calls when no user directory is attached.
	ErrNoDirectory = errors.New("user directory not available")
)

// Messages shown to the actor.
const (
	MsgLoginSuccess = "login Success"
	MsgUserCreated  = "User file created"
	MsgUserDeleted  = "User deleted"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type loginUser struct {
	Role string `json:"role"`
}

type loginResponse struct {
	OK       bool           `json:"ok"`
	Message  string         `json:"message"`
	User     *loginUser     `json:"user"`
	Settings map[string]any `json:"settings"`
}

// Client talks to the login and create-user webhooks.
type Client struct {
	settings        *settings.Service
	scoper          *identity.Scoper
	notifier        notification.Notifier
	defaultAuthHook string
	timezone        string
	client          *http.Client
	users           *users.Directory
	now             func() time.Time
}

// NewClient creates an auth client. defaultAuthHook is used when settings carry no auth webhook.
func NewClient(st *settings.Service, scoper *identity.Scoper, notifier notification.Notifier, defaultAuthHook, timezone string, timeout time.Duration) *Client {
	return &Client{
		settings:        st,
		scoper:          scoper,
		notifier:        notifier,
		defaultAuthHook: strings.TrimSpace(defaultAuthHook),
		timezone:        timezone,
		client:          &http.Client{Timeout: timeout},
		now:             time.Now,
	}
}

// WithDirectory attaches the user directory used for offline sign-in,
// duplicate checks and user management.
func (c *Client) WithDirectory(d *users.Directory) *Client {
	c.users = d
	return c
}

// Login verifies the credentials with the auth webhook and, on success,
// merges the server's settings and makes username the current actor. When
// the webhook is unset or unreachable the user directory is checked instead.
// Nothing changes on failure.
func (c *Client) Login(ctx context.Context, username, password string) (model.Actor, error) {
	actor, err := c.login(ctx, strings.TrimSpace(username), strings.TrimSpace(password))
	if err != nil {
		c.notify("Login failed: " + err.Error())
		return model.Actor{}, err
	}
	c.notify(MsgLoginSuccess)
	return actor, nil
}

func (c *Client) login(ctx context.Context, username, password string) (model.Actor, error) {
	if username == "" || password == "" {
		return model.Actor{}, ErrMissingCredentials
	}

	url := c.settings.AuthEndpoint()
	if url == "" {
		url = c.defaultAuthHook
	}
	if url == "" {
		return c.localLogin(ctx, username, password, ErrNoAuthWebhook)
	}

	status, body, err := c.post(ctx, url, credentials{Username: username, Password: password})
	if err != nil {
		return c.localLogin(ctx, username, password, err)
	}
	if status < 200 || status > 299 {
		return model.Actor{}, fmt.Errorf("auth HTTP %d", status)
	}

	var data loginResponse
	if err := json.Unmarshal(body, &data); err != nil || !data.OK {
		if data.Message != "" {
			return model.Actor{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, data.Message)
		}
		return model.Actor{}, ErrInvalidCredentials
	}

	if data.Settings != nil {
		c.settings.Merge(data.Settings)
	} else {
		c.settings.Ensure()
	}

	role := ""
	if data.User != nil {
		role = data.User.Role
	}
	return c.signIn(username, role), nil
}

// localLogin checks the user directory after the webhook could not be used.
// cause is returned when the directory cannot decide.
func (c *Client) localLogin(ctx context.Context, username, password string, cause error) (model.Actor, error) {
	if c.users == nil {
		return model.Actor{}, cause
	}
	rec, err := c.users.Verify(ctx, username, password)
	switch {
	case errors.Is(err, users.ErrWrongPassword):
		return model.Actor{}, ErrInvalidCredentials
	case err != nil:
		return model.Actor{}, cause
	}
	log.WithField("user", username).WithError(cause).Warn("auth webhook unavailable; signed in against the user directory")
	c.settings.Ensure()
	return c.signIn(username, rec.Role), nil
}

func (c *Client) signIn(username, role string) model.Actor {
	actor := c.scoper.SetActor(username, role, c.timezone, c.now().UTC())
	log.WithFields(log.Fields{"user": username, "role": actor.Role}).Info("actor signed in")
	return actor
}

// Logout clears the current actor. The actor's queued and drafted state stays
// under their namespace for the next sign-in.
func (c *Client) Logout() {
	if cur := c.scoper.Current(); cur != nil {
		log.WithField("user", cur.Username).Info("actor signed out")
	}
	c.scoper.Clear()
}

// CreateUser asks the create-user webhook to add an account. Only admins may call it.
func (c *Client) CreateUser(ctx context.Context, actor *model.Actor, username, password, role string) error {
	if !actor.IsAdmin() {
		return settings.ErrForbidden
	}
	username, password = strings.TrimSpace(username), strings.TrimSpace(password)
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = model.RoleUser
	}

	if c.users != nil && c.users.Exists(ctx, username) {
		c.notify(users.ErrUserExists.Error())
		return users.ErrUserExists
	}

	url := c.settings.CreateUserEndpoint()
	if url == "" {
		c.notify(ErrNoCreateUserWebhook.Error())
		return ErrNoCreateUserWebhook
	}

	status, _, err := c.post(ctx, url, credentials{Username: username, Password: password, Role: role})
	if err != nil || status < 200 || status > 299 {
		if err != nil {
			log.WithError(err).Warn("create user request failed")
		}
		c.notify(ErrCreateUserFailed.Error())
		return ErrCreateUserFailed
	}
	if c.users != nil {
		if _, err := c.users.Add(ctx, username, password, role); err != nil {
			log.WithError(err).WithField("user", username).Warn("created user not added to the directory")
		}
	}
	c.notify(MsgUserCreated)
	return nil
}

// ListUsers returns the directory without password material. Only admins may call it.
func (c *Client) ListUsers(ctx context.Context, actor *model.Actor) ([]model.UserRecord, error) {
	if !actor.IsAdmin() {
		return nil, settings.ErrForbidden
	}
	if c.users == nil {
		return nil, ErrNoDirectory
	}
	list := c.users.List(ctx)
	out := make([]model.UserRecord, 0, len(list))
	for _, rec := range list {
		role := rec.Role
		if role == "" {
			role = model.RoleUser
		}
		out = append(out, model.UserRecord{Username: rec.Username, Role: role})
	}
	return out, nil
}

// DeleteUser removes username from the directory. Only admins may call it.
func (c *Client) DeleteUser(ctx context.Context, actor *model.Actor, username string) error {
	if !actor.IsAdmin() {
		return settings.ErrForbidden
	}
	if c.users == nil {
		return ErrNoDirectory
	}
	if err := c.users.Delete(ctx, username); err != nil {
		c.notify(err.Error())
		return err
	}
	c.notify(MsgUserDeleted)
	return nil
}

func (c *Client) post(ctx context.Context, url string, body credentials) (int, []byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) notify(msg string) {
	if c.notifier != nil {
		c.notifier.Notify(msg)
	}
}
