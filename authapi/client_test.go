package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/authapi"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/session"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"message": message,
		"data":    data,
	})
	require.NoError(t, err)
}

func TestClientLogin(t *testing.T) {
	t.Run("success derives identity from the response", func(t *testing.T) {
		var gotRequestID, gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/auth/login", r.URL.Path)
			gotRequestID = r.Header.Get("X-Request-ID")
			gotContentType = r.Header.Get("Content-Type")

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "a@b.com", body["email"])
			require.Equal(t, "Passw0rd!", body["password"])

			writeEnvelope(t, w, http.StatusOK, true, "ok", map[string]interface{}{
				"accessToken":  "T1",
				"refreshToken": "R1",
				"tokenType":    "Bearer",
				"expiresIn":    3600,
				"userId":       "user-1",
				"email":        "a@b.com",
				"firstName":    "Amy",
				"lastName":     "Burke",
				"role":         "DOCTOR",
				"loginTime":    "2026-08-28T10:00:00Z",
			})
		}))
		defer srv.Close()

		client := authapi.New(srv.URL)
		result, err := client.Login(context.Background(), "a@b.com", "Passw0rd!")
		require.NoError(t, err)
		require.Equal(t, "T1", result.AccessToken)
		require.Equal(t, "R1", result.RefreshToken)
		require.Equal(t, 3600, result.ExpiresIn)
		require.NotNil(t, result.Identity)
		require.Equal(t, identity.RoleDoctor, result.Identity.Role)
		require.Equal(t, "Doctor", result.Identity.RoleDisplayName())
		require.NotEmpty(t, gotRequestID)
		require.Equal(t, "application/json", gotContentType)
	})

	t.Run("401 maps to invalid credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusUnauthorized, false, "invalid credentials", nil)
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "wrong")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("success=false behind a 200 is still a failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusOK, false, "account locked", nil)
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
		require.Contains(t, err.Error(), "account locked")
	})

	t.Run("unknown role is a decode error, not a fallback", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusOK, true, "ok", map[string]interface{}{
				"accessToken":  "T1",
				"refreshToken": "R1",
				"expiresIn":    3600,
				"userId":       "user-1",
				"role":         "WIZARD",
			})
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrDecode)
	})

	t.Run("429 maps to rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusTooManyRequests, false, "slow down", nil)
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrRateLimited)
	})

	t.Run("incomplete identity fields leave Identity nil", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusOK, true, "ok", map[string]interface{}{
				"accessToken":  "T1",
				"refreshToken": "R1",
				"expiresIn":    3600,
			})
		}))
		defer srv.Close()

		result, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.NoError(t, err)
		require.Nil(t, result.Identity)
	})
}

func TestClientCurrentUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/me", r.URL.Path)
			require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
			writeEnvelope(t, w, http.StatusOK, true, "ok", map[string]interface{}{
				"userId":     "user-1",
				"email":      "a@b.com",
				"firstName":  "Amy",
				"lastName":   "Burke",
				"role":       "TECH_ADVISOR",
				"hospitalId": "hosp-9",
			})
		}))
		defer srv.Close()

		ident, err := authapi.New(srv.URL).CurrentUser(context.Background(), "T1")
		require.NoError(t, err)
		require.Equal(t, identity.RoleTechAdvisor, ident.Role)
		require.Equal(t, "Tech Advisor", ident.RoleDisplayName())
		require.Equal(t, "hosp-9", ident.HospitalID)
	})

	t.Run("401 maps to session expired", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusUnauthorized, false, "token expired", nil)
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).CurrentUser(context.Background(), "stale")
		require.ErrorIs(t, err, session.ErrSessionExpired)
	})

	t.Run("missing required fields is a decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusOK, true, "ok", map[string]interface{}{
				"firstName": "Amy",
			})
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).CurrentUser(context.Background(), "T1")
		require.ErrorIs(t, err, session.ErrDecode)
	})
}

func TestClientRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/refresh", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "R1", body["refreshToken"])
			writeEnvelope(t, w, http.StatusOK, true, "ok", map[string]interface{}{
				"accessToken":  "T2",
				"refreshToken": "R2",
				"expiresIn":    3600,
			})
		}))
		defer srv.Close()

		grant, err := authapi.New(srv.URL).Refresh(context.Background(), "R1")
		require.NoError(t, err)
		require.Equal(t, "T2", grant.AccessToken)
		require.Equal(t, "R2", grant.RefreshToken)
	})

	t.Run("401 means re-authentication required", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusUnauthorized, false, "refresh token revoked", nil)
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Refresh(context.Background(), "stale")
		require.ErrorIs(t, err, session.ErrSessionExpired)
	})
}

func TestClientTransportFailures(t *testing.T) {
	t.Run("timeout maps to ErrNetworkTimeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := authapi.New(srv.URL, authapi.WithTimeout(20*time.Millisecond))
		_, err := client.Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrNetworkTimeout)
	})

	t.Run("unreachable backend maps to ErrNetworkUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing listening any more

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrNetworkUnavailable)
	})

	t.Run("5xx maps to ErrServer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusInternalServerError, false, "boom", nil)
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrServer)
	})

	t.Run("non-envelope body maps to ErrServer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>gateway error</html>"))
		}))
		defer srv.Close()

		_, err := authapi.New(srv.URL).Login(context.Background(), "a@b.com", "Passw0rd!")
		require.ErrorIs(t, err, session.ErrServer)
	})
}

func TestClientLogoutAndChangePassword(t *testing.T) {
	t.Run("logout posts bearer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/logout", r.URL.Path)
			require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
			writeEnvelope(t, w, http.StatusOK, true, "ok", nil)
		}))
		defer srv.Close()

		require.NoError(t, authapi.New(srv.URL).Logout(context.Background(), "T1"))
	})

	t.Run("change password validation failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusBadRequest, false, "password reused", nil)
		}))
		defer srv.Close()

		err := authapi.New(srv.URL).ChangePassword(context.Background(), "T1", "old", "new")
		require.ErrorIs(t, err, session.ErrValidation)
	})
}

func TestClientRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "new@b.com", body["email"])
		require.Equal(t, "RECEPTIONIST", body["role"])
		writeEnvelope(t, w, http.StatusCreated, true, "created", nil)
	}))
	defer srv.Close()

	err := authapi.New(srv.URL).Register(context.Background(), identity.Registration{
		Email:     "new@b.com",
		Password:  "Passw0rd!",
		FirstName: "Nia",
		LastName:  "Okafor",
		Role:      identity.RoleReceptionist,
	})
	require.NoError(t, err)
}
