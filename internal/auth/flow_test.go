package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/overtone/internal/shared"
)

// driveConsent returns an OpenBrowser stub that simulates the user approving
// consent: it parses the authorize URL and immediately requests the callback
// with the given query values plus the echoed state.
func driveConsent(t *testing.T, values url.Values) func(string) error {
	t.Helper()
	return func(authorizeURL string) error {
		u, err := url.Parse(authorizeURL)
		if err != nil {
			return err
		}

		redirect := u.Query().Get("redirect_uri")
		query := url.Values{}
		for k, vs := range values {
			query[k] = vs
		}
		if query.Get("state") == "" {
			query.Set("state", u.Query().Get("state"))
		}

		go http.Get(redirect + "?" + query.Encode())
		return nil
	}
}

func TestFlow(t *testing.T) {
	t.Run("Run", func(t *testing.T) {
		t.Run("Successful Authorization", func(t *testing.T) {
			var gotForm url.Values
			var gotUser, gotPass string

			tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, gotPass, _ = r.BasicAuth()
				r.ParseForm()
				gotForm = r.PostForm
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"access","refresh_token":"refresh","expires_in":3600}`)
			}))
			defer tokenSrv.Close()

			flow := NewFlow(FlowOpts{
				Credentials: Credentials{
					ClientID:     "id",
					ClientSecret: "secret",
					RedirectURI:  "http://127.0.0.1:18750/callback",
				},
				TokenURL:    tokenSrv.URL,
				Timeout:     5 * time.Second,
				OpenBrowser: driveConsent(t, url.Values{"code": {"the-code"}}),
			})

			before := time.Now()
			state, err := flow.Run(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if state.AccessToken != "access" || state.RefreshToken != "refresh" {
				t.Errorf("unexpected token state: %+v", state)
			}

			wantExpiry := before.Add(3600*time.Second - expiryMargin)
			if state.ExpiresAt.Before(wantExpiry) || state.ExpiresAt.After(wantExpiry.Add(10*time.Second)) {
				t.Errorf("expected expiry near %v, got %v", wantExpiry, state.ExpiresAt)
			}

			if gotUser != "id" || gotPass != "secret" {
				t.Errorf("expected basic auth id/secret, got %s/%s", gotUser, gotPass)
			}
			if gotForm.Get("grant_type") != "authorization_code" {
				t.Errorf("expected authorization_code grant, got %s", gotForm.Get("grant_type"))
			}
			if gotForm.Get("code") != "the-code" {
				t.Errorf("expected exchanged code, got %s", gotForm.Get("code"))
			}
			if !strings.Contains(gotForm.Get("redirect_uri"), "/callback") {
				t.Errorf("expected redirect_uri in exchange form, got %s", gotForm.Get("redirect_uri"))
			}
		})

		t.Run("Port Fallback Advertises Bound Port", func(t *testing.T) {
			// Occupy the configured port so the flow falls back to the next one.
			occupied, err := net.Listen("tcp", "127.0.0.1:18760")
			if err != nil {
				t.Skipf("could not occupy port for test: %v", err)
			}
			defer occupied.Close()

			var exchangedRedirect string
			tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.ParseForm()
				exchangedRedirect = r.PostForm.Get("redirect_uri")
				fmt.Fprint(w, `{"access_token":"access","refresh_token":"refresh","expires_in":3600}`)
			}))
			defer tokenSrv.Close()

			var authorizedRedirect string
			openBrowser := func(authorizeURL string) error {
				u, _ := url.Parse(authorizeURL)
				authorizedRedirect = u.Query().Get("redirect_uri")
				go http.Get(authorizedRedirect + "?code=abc&state=" + u.Query().Get("state"))
				return nil
			}

			flow := NewFlow(FlowOpts{
				Credentials: Credentials{
					ClientID:     "id",
					ClientSecret: "secret",
					RedirectURI:  "http://127.0.0.1:18760/callback",
				},
				TokenURL:    tokenSrv.URL,
				Timeout:     5 * time.Second,
				OpenBrowser: openBrowser,
			})

			if _, err := flow.Run(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !strings.Contains(authorizedRedirect, ":18761/") {
				t.Errorf("expected authorize URL to advertise fallback port 18761, got %s", authorizedRedirect)
			}
			if exchangedRedirect != authorizedRedirect {
				t.Errorf("exchange redirect %s does not match authorized redirect %s", exchangedRedirect, authorizedRedirect)
			}
		})

		t.Run("Timeout Releases Port", func(t *testing.T) {
			flow := NewFlow(FlowOpts{
				Credentials: Credentials{
					ClientID:     "id",
					ClientSecret: "secret",
					RedirectURI:  "http://127.0.0.1:18770/callback",
				},
				Timeout:     100 * time.Millisecond,
				OpenBrowser: func(string) error { return nil },
			})

			_, err := flow.Run(context.Background())
			if !errors.Is(err, shared.ErrAuthTimeout) {
				t.Fatalf("expected ErrAuthTimeout, got %v", err)
			}

			// The listener must be gone once Run returns.
			listener, err := net.Listen("tcp", "127.0.0.1:18770")
			if err != nil {
				t.Fatalf("port should be released after timeout: %v", err)
			}
			listener.Close()
		})

		t.Run("Denied Consent", func(t *testing.T) {
			flow := NewFlow(FlowOpts{
				Credentials: Credentials{
					ClientID:     "id",
					ClientSecret: "secret",
					RedirectURI:  "http://127.0.0.1:18780/callback",
				},
				Timeout:     5 * time.Second,
				OpenBrowser: driveConsent(t, url.Values{"error": {"access_denied"}}),
			})

			_, err := flow.Run(context.Background())
			if err == nil || !strings.Contains(err.Error(), "access_denied") {
				t.Fatalf("expected access_denied error, got %v", err)
			}
		})

		t.Run("Exchange Failure", func(t *testing.T) {
			tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			}))
			defer tokenSrv.Close()

			flow := NewFlow(FlowOpts{
				Credentials: Credentials{
					ClientID:     "id",
					ClientSecret: "secret",
					RedirectURI:  "http://127.0.0.1:18790/callback",
				},
				TokenURL:    tokenSrv.URL,
				Timeout:     5 * time.Second,
				OpenBrowser: driveConsent(t, url.Values{"code": {"bad"}}),
			})

			_, err := flow.Run(context.Background())
			if !errors.Is(err, shared.ErrTokenExchange) {
				t.Fatalf("expected ErrTokenExchange, got %v", err)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			flow := NewFlow(FlowOpts{})
			if _, err := flow.Run(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Fatalf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Listen With Fallback", func(t *testing.T) {
		t.Run("Next Port When Busy", func(t *testing.T) {
			occupied, err := net.Listen("tcp", "127.0.0.1:18800")
			if err != nil {
				t.Skipf("could not occupy port for test: %v", err)
			}
			defer occupied.Close()

			listener, port, err := listenWithFallback("127.0.0.1", 18800)
			if err != nil {
				t.Fatalf("expected fallback to succeed, got %v", err)
			}
			defer listener.Close()

			if port != 18801 {
				t.Errorf("expected port 18801, got %d", port)
			}
		})

		t.Run("Exhausted", func(t *testing.T) {
			var listeners []net.Listener
			for i := 0; i < portAttempts; i++ {
				l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", 18810+i))
				if err != nil {
					t.Skipf("could not occupy port for test: %v", err)
				}
				listeners = append(listeners, l)
			}
			defer func() {
				for _, l := range listeners {
					l.Close()
				}
			}()

			_, _, err := listenWithFallback("127.0.0.1", 18810)
			if !errors.Is(err, shared.ErrPortExhausted) {
				t.Fatalf("expected ErrPortExhausted, got %v", err)
			}
		})
	})

	t.Run("Callback Addr", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			host, port, err := callbackAddr("")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if host != "localhost" || port != 8888 {
				t.Errorf("expected localhost:8888, got %s:%d", host, port)
			}
		})

		t.Run("From Redirect URI", func(t *testing.T) {
			host, port, err := callbackAddr("http://127.0.0.1:9999/callback")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if host != "127.0.0.1" || port != 9999 {
				t.Errorf("expected 127.0.0.1:9999, got %s:%d", host, port)
			}
		})
	})

	t.Run("Authorize URL", func(t *testing.T) {
		flow := NewFlow(FlowOpts{
			Credentials: Credentials{ClientID: "id", ClientSecret: "secret"},
		})

		raw := flow.authorizeURL("state-token", "http://localhost:8888/callback")
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("failed to parse authorize URL: %v", err)
		}

		query := u.Query()
		if query.Get("show_dialog") != "true" {
			t.Error("authorize URL should force the consent dialog")
		}
		if query.Get("state") != "state-token" {
			t.Errorf("expected state token, got %s", query.Get("state"))
		}
		if !strings.Contains(query.Get("scope"), "user-modify-playback-state") {
			t.Errorf("expected playback scope, got %s", query.Get("scope"))
		}
		if u.Host != "accounts.spotify.com" {
			t.Errorf("expected production authorize host, got %s", u.Host)
		}
	})
}
