package services

import (
	"context"
	"strings"

	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/providers/identity"
	"github.com/yoockh/virtualvisits/internal/utils"
)

var knownScopes = map[string]bool{"voip": true, "chat": true}

type TokenService interface {
	Issue(ctx context.Context, scope string) (*models.UserToken, error)
}

type tokenService struct {
	identities    identity.Provider
	defaultScopes []string
}

func NewTokenService(identities identity.Provider, defaultScopes []string) TokenService {
	if len(defaultScopes) == 0 {
		defaultScopes = []string{"voip"}
	}
	return &tokenService{identities: identities, defaultScopes: defaultScopes}
}

// ParseScopes splits a comma separated scope list, dropping blanks and repeats.
func ParseScopes(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func (s *tokenService) Issue(ctx context.Context, scope string) (*models.UserToken, error) {
	const op = "TokenService.Issue"

	scopes := ParseScopes(scope)
	if len(scopes) == 0 {
		scopes = s.defaultScopes
	}
	for _, sc := range scopes {
		if !knownScopes[sc] {
			return nil, utils.E(utils.CodeInvalidArgument, op, "unsupported scope: "+sc, nil)
		}
	}

	tok, err := s.identities.CreateUserAndToken(ctx, scopes)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to issue token", err)
	}
	return tok, nil
}
