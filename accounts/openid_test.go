package accounts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLoginURL(t *testing.T) {
	verifier := NewOpenIDVerifier("https://steamcommunity.com/openid/login", time.Second)
	raw := verifier.BuildLoginURL("https://front.example/")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "steamcommunity.com", parsed.Host)
	query := parsed.Query()
	assert.Equal(t, "checkid_setup", query.Get("openid.mode"))
	assert.Equal(t, "https://front.example/auth/callback", query.Get("openid.return_to"))
	assert.Equal(t, "https://front.example/", query.Get("openid.realm"))
}

func TestVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		// The replayed assertion must carry the forced mode.
		assert.Equal(t, "check_authentication", r.PostForm.Get("openid.mode"))
		fmt.Fprint(w, "ns:http://specs.openid.net/auth/2.0\nis_valid:true\n")
	}))
	defer server.Close()

	verifier := NewOpenIDVerifier(server.URL, time.Second)
	steamID, err := verifier.Verify(context.Background(), map[string]string{
		"openid.mode":       "id_res",
		"openid.claimed_id": "https://steamcommunity.com/openid/id/76561198000000001",
	})
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", steamID)
}

func TestVerifyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ns:http://specs.openid.net/auth/2.0\nis_valid:false\n")
	}))
	defer server.Close()

	verifier := NewOpenIDVerifier(server.URL, time.Second)
	_, err := verifier.Verify(context.Background(), map[string]string{
		"openid.claimed_id": "https://steamcommunity.com/openid/id/76561198000000001",
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyMissingClaimedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "is_valid:true\n")
	}))
	defer server.Close()

	verifier := NewOpenIDVerifier(server.URL, time.Second)
	_, err := verifier.Verify(context.Background(), map[string]string{})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyTrailingSlashClaimedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "is_valid:true\n")
	}))
	defer server.Close()

	verifier := NewOpenIDVerifier(server.URL, time.Second)
	steamID, err := verifier.Verify(context.Background(), map[string]string{
		"openid.claimed_id": "https://steamcommunity.com/openid/id/76561198000000001/",
	})
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", steamID)
}
