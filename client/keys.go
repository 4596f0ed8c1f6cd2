package client

import "context"

// KeyService handles key rotation for the tenant.
type KeyService struct {
	c *Client
}

// Status reports how many secrets are sealed under each key version.
func (s *KeyService) Status(ctx context.Context) (*RotationStatus, error) {
	var st RotationStatus
	if err := s.c.get(ctx, "/api/v1/keys/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Reencrypt re-seals every stale secret under the active key version.
func (s *KeyService) Reencrypt(ctx context.Context) (*ReencryptResult, error) {
	var res ReencryptResult
	if err := s.c.post(ctx, "/api/v1/keys/reencrypt", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
