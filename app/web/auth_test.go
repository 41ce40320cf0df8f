package web

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost kept minimal, these hashes exist only for the test run
func testHash(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func noRedirectClient(t *testing.T) *http.Client {
	client := cookieClient(t)
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return client
}

func TestAuth_DisabledWithoutHash(t *testing.T) {
	st := &fakeStore{modules: makeModules("m1:active")}
	_, ts := newTestServer(t, Config{Store: st})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_RedirectsBrowserToLogin(t *testing.T) {
	st := &fakeStore{modules: makeModules("m1:active")}
	_, ts := newTestServer(t, Config{Store: st, PasswordHash: testHash(t, "secret")})
	client := noRedirectClient(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestAuth_APIGets401(t *testing.T) {
	st := &fakeStore{modules: makeModules("m1:active")}
	_, ts := newTestServer(t, Config{Store: st, PasswordHash: testHash(t, "secret")})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/modules", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
}

func TestAuth_BasicAuthForAPIClients(t *testing.T) {
	st := &fakeStore{modules: makeModules("m1:active")}
	_, ts := newTestServer(t, Config{Store: st, PasswordHash: testHash(t, "secret")})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/modules", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth("modarc", "secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_LoginFlow(t *testing.T) {
	st := &fakeStore{modules: makeModules("m1:active")}
	_, ts := newTestServer(t, Config{Store: st, PasswordHash: testHash(t, "secret")})
	client := noRedirectClient(t)

	t.Run("login form accessible without auth", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/login")
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `type="password"`)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{"password": {"wrong"}})
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body, "Invalid password")
	})

	t.Run("valid password creates session and grants access", func(t *testing.T) {
		resp, err := client.PostForm(ts.URL+"/login", url.Values{"password": {"secret"}})
		require.NoError(t, err)
		readBody(t, resp)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)

		var authCookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == authCookieName {
				authCookie = c
			}
		}
		require.NotNil(t, authCookie, "login sets the session cookie")
		assert.NotEmpty(t, authCookie.Value)
		assert.True(t, authCookie.HttpOnly)

		resp, err = client.Get(ts.URL + "/")
		require.NoError(t, err)
		readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("logout drops the session", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/logout")
		require.NoError(t, err)
		readBody(t, resp)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

		req, err := http.NewRequest(http.MethodGet, ts.URL+"/", http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Accept", "text/html")
		resp, err = client.Do(req)
		require.NoError(t, err)
		readBody(t, resp)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "back to the login redirect")
	})
}

func TestAuth_SessionExpiry(t *testing.T) {
	srv, err := New(Config{Store: &fakeStore{}, PasswordHash: testHash(t, "secret"), LoginTTL: 50 * time.Millisecond})
	require.NoError(t, err)

	token, err := srv.createSession()
	require.NoError(t, err)
	assert.True(t, srv.validateSession(token))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, srv.validateSession(token), "expired session rejected")
	assert.False(t, srv.validateSession(token), "expired session is dropped, not just rejected")

	srv.sessionsMu.Lock()
	_, exists := srv.sessions[token]
	srv.sessionsMu.Unlock()
	assert.False(t, exists)
}

func TestAuth_StaticSkipsAuth(t *testing.T) {
	st := &fakeStore{}
	_, ts := newTestServer(t, Config{Store: st, PasswordHash: testHash(t, "secret")})

	resp, err := http.Get(ts.URL + "/static/style.css")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
