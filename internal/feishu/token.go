package feishu

import (
	"context"
	"encoding/json"
	"time"

	"resty.dev/v3"
)

const (
	// The platform issues tenant access tokens with a fixed two hour
	// lifetime; the expiry in the response is not consulted.
	tokenLifetime = 7200 * time.Second

	// A token with less than this much validity left is treated as
	// expired and refreshed before use.
	tokenSkew = 30 * time.Second

	authPath = "/auth/v3/tenant_access_token/internal/"
)

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
}

// tokenSource owns the tenant access token and refreshes it lazily.
// It is checked before every authenticated call; there is no background
// refresh, and it is not safe for concurrent use.
type tokenSource struct {
	appID     string
	appSecret string
	client    *resty.Client
	now       func() time.Time

	value     string
	expiresAt time.Time
}

func newTokenSource(appID, appSecret string, client *resty.Client) *tokenSource {
	return &tokenSource{
		appID:     appID,
		appSecret: appSecret,
		client:    client,
		now:       time.Now,
	}
}

// Token returns the held token, refreshing it first when it is absent or
// has fewer than 30 seconds of validity remaining.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	now := s.now()
	if s.value != "" && !now.Add(tokenSkew).After(s.expiresAt) {
		return s.value, nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"app_id":     s.appID,
			"app_secret": s.appSecret,
		}).
		Post(authPath)

	if err != nil {
		return "", &TransportError{Op: "token issuance", Cause: err}
	}

	body := resp.Bytes()

	var result tokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &AuthError{Code: resp.StatusCode(), Body: string(body)}
	}

	if result.Code != 0 {
		return "", &AuthError{Code: result.Code, Body: string(body)}
	}

	s.value = result.TenantAccessToken
	s.expiresAt = now.Add(tokenLifetime)
	return s.value, nil
}
