package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SecretService handles the tenant's secrets.
type SecretService struct {
	c *Client
}

type listSecretsResponse struct {
	Secrets []Secret `json:"secrets"`
	HasMore bool     `json:"has_more"`
}

func secretPath(name string) string {
	return "/api/v1/secrets/" + url.PathEscape(name)
}

// List returns secret metadata, newest first, and whether more pages exist.
func (s *SecretService) List(ctx context.Context, opts *ListOptions) ([]Secret, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp listSecretsResponse
	if err := s.c.get(ctx, "/api/v1/secrets", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Secrets, resp.HasMore, nil
}

// Get returns a secret with its value masked.
func (s *SecretService) Get(ctx context.Context, name string) (*SecretView, error) {
	var view SecretView
	if err := s.c.get(ctx, secretPath(name), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Reveal returns the plaintext value of a secret.
func (s *SecretService) Reveal(ctx context.Context, name string) (*SecretValue, error) {
	var val SecretValue
	if err := s.c.get(ctx, secretPath(name)+"/value", nil, &val); err != nil {
		return nil, err
	}
	return &val, nil
}

// Put stores value under name. value may be any JSON-encodable value.
func (s *SecretService) Put(ctx context.Context, name string, value any) (*PutResult, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var res PutResult
	if err := s.c.put(ctx, secretPath(name), putRequest{Value: raw}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete removes a secret.
func (s *SecretService) Delete(ctx context.Context, name string) error {
	return s.c.del(ctx, secretPath(name), nil, nil)
}
