package userapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/MrEthical07/goPortal/session"
)

// ErrMissingID is returned for calls without a user id.
var ErrMissingID = errors.New("user id is required")

// Client calls the user-management endpoints.
type Client struct {
	p *pipeline.Pipeline
}

// New returns a [Client] over p.
func New(p *pipeline.Pipeline) *Client {
	return &Client{p: p}
}

// List returns every account visible to the signed-in user.
func (c *Client) List(ctx context.Context) ([]User, error) {
	env, err := pipeline.Call[[]User](ctx, c.p, pipeline.Get("/users"))
	if err != nil {
		return nil, err
	}
	return env.Result("Failed to load users")
}

// Get returns one account.
func (c *Client) Get(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrMissingID
	}
	env, err := pipeline.Call[User](ctx, c.p, pipeline.Get(userPath(id)))
	if err != nil {
		return User{}, err
	}
	return env.Result("Failed to load user")
}

// Update changes profile fields of an account.
func (c *Client) Update(ctx context.Context, id string, in UpdateInput) error {
	if id == "" {
		return ErrMissingID
	}
	return c.send(ctx, pipeline.Put(userPath(id), in), "Failed to update user")
}

// UpdateRole changes the role of an account.
func (c *Client) UpdateRole(ctx context.Context, id string, role session.Role) error {
	if id == "" {
		return ErrMissingID
	}
	body := struct {
		Role session.Role `json:"role"`
	}{Role: role}
	return c.send(ctx, pipeline.Put(userPath(id)+"/role", body), "Failed to update role")
}

// Delete removes an account.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.send(ctx, pipeline.Delete(userPath(id)), "Failed to delete user")
}

// UpdateProfile saves the signed-in user's profile. Name and email go to the
// API; every patched field, including the ones the API does not store, is
// written to the session.
func (c *Client) UpdateProfile(ctx context.Context, patch session.ProfilePatch) (*session.Session, error) {
	store := c.p.Store()
	current := store.Load(ctx)
	if current == nil {
		return nil, session.ErrNoSession
	}

	if current.UserID != "" {
		in := UpdateInput{FullName: current.FullName, Email: current.Email}
		if patch.FullName != nil {
			in.FullName = *patch.FullName
		}
		if patch.Email != nil {
			in.Email = *patch.Email
		}
		if err := c.Update(ctx, current.UserID, in); err != nil {
			return nil, err
		}
	}
	return store.UpdateProfile(ctx, patch)
}

func (c *Client) send(ctx context.Context, req *pipeline.Request, fallback string) error {
	env, err := pipeline.Call[json.RawMessage](ctx, c.p, req)
	if err != nil {
		return err
	}
	_, err = env.Result(fallback)
	return err
}

func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}
