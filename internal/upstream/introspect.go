package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/orderflow/internal/domain/auth"
)

// AuthClient verifies bearer tokens against the auth service. Any failure to
// get a positive answer, including the service being down, rejects the token:
// requests are never let through unverified.
type AuthClient struct {
	c *client
}

func NewAuthClient(baseURL string, timeout time.Duration, retry RetryConfig) *AuthClient {
	return &AuthClient{c: newClient(baseURL, timeout, retry)}
}

var _ auth.TokenIntrospector = (*AuthClient)(nil)

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (ac *AuthClient) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	var resp verifyResponse
	err := ac.c.doJSON(ctx, http.MethodPost, "/verify", verifyRequest{Token: token}, &resp)
	if err != nil || !resp.Valid {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{
		UserID: resp.User.ID,
		Role:   resp.User.Role,
	}, nil
}
