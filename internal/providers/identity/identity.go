package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/providers/acs"
)

const apiVersion = "2023-10-01"

// Provider creates communication users and access tokens for browser clients.
type Provider interface {
	CreateUserAndToken(ctx context.Context, scopes []string) (*models.UserToken, error)
}

type restProvider struct {
	c *acs.Client
}

func NewRESTProvider(conn *acs.ConnectionString, hc *http.Client) Provider {
	return &restProvider{c: acs.NewClient(conn, apiVersion, hc)}
}

type createIdentityRequest struct {
	CreateTokenWithScopes []string `json:"createTokenWithScopes"`
}

type createIdentityResponse struct {
	Identity struct {
		ID string `json:"id"`
	} `json:"identity"`
	AccessToken struct {
		Token     string    `json:"token"`
		ExpiresOn time.Time `json:"expiresOn"`
	} `json:"accessToken"`
}

func (p *restProvider) CreateUserAndToken(ctx context.Context, scopes []string) (*models.UserToken, error) {
	var resp createIdentityResponse
	if err := p.c.Do(ctx, http.MethodPost, "/identities", createIdentityRequest{CreateTokenWithScopes: scopes}, &resp); err != nil {
		return nil, err
	}
	return &models.UserToken{
		User:      models.CommunicationUser{CommunicationUserID: resp.Identity.ID},
		Token:     resp.AccessToken.Token,
		ExpiresOn: resp.AccessToken.ExpiresOn,
	}, nil
}
