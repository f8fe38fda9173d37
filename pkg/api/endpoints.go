package api

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/vango-dev/appstate/pkg/auth"
)

// User is the portal's profile of the current user.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	OAID       string `json:"oa_id,omitempty"`
	OAProvider string `json:"oa_provider,omitempty"`
}

// App is an application registered by the current user.
type App struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Token       string `json:"token,omitempty"`
}

// AppKey is the identity of an App.
func AppKey(a App) int64 {
	return a.ID
}

// AppInput is the payload for registering an app.
type AppInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FetchUser returns the current user profile. Any non-2xx status is an
// error.
func (c *Client) FetchUser(ctx context.Context) (User, error) {
	var u User
	resp, err := c.do(ctx, http.MethodGet, PathUser, PathUser, nil)
	if err != nil {
		return u, err
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return u, statusError(resp)
	}
	if err := decode(resp, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// FetchSessionUser returns the status of GET /api/auth/user and, for a 200
// response, the decoded session user. A redirect is reported as 401. It
// implements auth.Fetcher.
func (c *Client) FetchSessionUser(ctx context.Context) (int, auth.User, error) {
	resp, err := c.do(ctx, http.MethodGet, PathSessionUser, PathSessionUser, nil)
	if err != nil {
		return 0, nil, err
	}
	defer drain(resp)

	if isRedirect(resp.StatusCode) {
		return http.StatusUnauthorized, nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}

	var u auth.User
	if err := decode(resp, &u); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, u, nil
}

// ListApps returns the apps owned by the current user.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	resp, err := c.do(ctx, http.MethodGet, PathApps, PathApps, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var apps []App
	if err := decode(resp, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// CreateApp registers an app and returns it as stored by the portal,
// including its generated token.
func (c *Client) CreateApp(ctx context.Context, in AppInput) (App, error) {
	var app App
	resp, err := c.do(ctx, http.MethodPost, PathApps, PathApps, in)
	if err != nil {
		return app, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return app, statusError(resp)
	}
	if err := decode(resp, &app); err != nil {
		return App{}, err
	}
	return app, nil
}

// DeleteApp deletes the app with the given id and returns the deleted app.
func (c *Client) DeleteApp(ctx context.Context, id int64) (App, error) {
	var app App
	path := PathApps + "/" + strconv.FormatInt(id, 10)
	resp, err := c.do(ctx, http.MethodDelete, PathApps+"/{id}", path, nil)
	if err != nil {
		return app, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return app, statusError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return App{ID: id}, nil
	}
	if err := decode(resp, &app); err != nil {
		return App{}, err
	}
	return app, nil
}

// Provider is an OAuth provider the portal accepts for sign-in.
type Provider struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Verify confirms a new account with the link the portal mailed to the user
// and returns the verified session user.
func (c *Client) Verify(ctx context.Context, verifyURL string) (auth.User, error) {
	path := PathVerify + "?" + url.Values{"u": {verifyURL}}.Encode()
	resp, err := c.do(ctx, http.MethodGet, PathVerify, path, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var u auth.User
	if err := decode(resp, &u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteAccount deletes the current user's account and returns the deleted
// profile.
func (c *Client) DeleteAccount(ctx context.Context) (User, error) {
	var u User
	resp, err := c.do(ctx, http.MethodDelete, PathUser, PathUser, nil)
	if err != nil {
		return u, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return u, statusError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return u, nil
	}
	if err := decode(resp, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Providers returns the sign-in providers ordered by id. It does not need a
// session.
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	resp, err := c.do(ctx, http.MethodGet, PathProviders, PathProviders, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var byID map[string]string
	if err := decode(resp, &byID); err != nil {
		return nil, err
	}

	providers := make([]Provider, 0, len(byID))
	for id, label := range byID {
		providers = append(providers, Provider{ID: id, Label: label})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	return providers, nil
}
