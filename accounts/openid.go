package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOpenIDEndpoint = "https://steamcommunity.com/openid/login"

// ErrVerificationFailed is returned when Steam rejects the login assertion.
var ErrVerificationFailed = errors.New("accounts: steam authentication failed")

// OpenIDVerifier forwards login assertion payloads back to the Steam OpenID
// endpoint for verification.
type OpenIDVerifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewOpenIDVerifier builds a verifier against the given endpoint.
// An empty endpoint falls back to the fixed Steam community URL.
func NewOpenIDVerifier(endpoint string, timeout time.Duration) *OpenIDVerifier {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultOpenIDEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenIDVerifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BuildLoginURL returns the Steam OpenID redirect target for the frontend.
func (v *OpenIDVerifier) BuildLoginURL(frontendURL string) string {
	params := url.Values{}
	params.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	params.Set("openid.identity", "http://specs.openid.net/auth/2.0/identifier_select")
	params.Set("openid.claimed_id", "http://specs.openid.net/auth/2.0/identifier_select")
	params.Set("openid.mode", "checkid_setup")
	params.Set("openid.return_to", strings.TrimRight(frontendURL, "/")+"/auth/callback")
	params.Set("openid.realm", frontendURL)
	return v.endpoint + "?" + params.Encode()
}

// Verify replays the callback parameters to Steam with the mode forced to
// check_authentication and returns the stable Steam id on success.
//
// Steam signals success with the literal substring "is_valid:true" in the
// raw response body. That is the provider's fixed contract, fragile as it
// looks, so the check must stay a substring match.
func (v *OpenIDVerifier) Verify(ctx context.Context, params map[string]string) (string, error) {
	if v == nil {
		return "", errors.New("accounts: verifier is nil")
	}

	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("accounts: create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("accounts: execute verify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err != nil {
		return "", fmt.Errorf("accounts: read verify response: %w", err)
	}

	if !strings.Contains(string(body), "is_valid:true") {
		return "", ErrVerificationFailed
	}

	claimedID := strings.TrimSpace(params["openid.claimed_id"])
	if claimedID == "" {
		return "", ErrVerificationFailed
	}
	segments := strings.Split(strings.TrimRight(claimedID, "/"), "/")
	steamID := segments[len(segments)-1]
	if steamID == "" {
		return "", ErrVerificationFailed
	}
	return steamID, nil
}
