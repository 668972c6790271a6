package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/pricecalc/internal/db"
	"github.com/Simplici0/pricecalc/internal/migrations"
	"github.com/Simplici0/pricecalc/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "auth-test.db"))
	require.NoError(t, err)
	require.NoError(t, migrations.Up(database))

	s := store.New(database)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	require.NoError(t, CheckPassword(hash, "s3cret"))
	require.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
	require.Error(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestLocalAuthenticator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := HashPassword("admin-password")
	require.NoError(t, err)
	_, err = s.Users().CreateLocal(ctx, "admin", hash, store.RoleAdmin)
	require.NoError(t, err)

	a := NewLocalAuthenticator(s.Users())

	id, err := a.Authenticate(ctx, "admin", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, store.ProviderLocal, id.Provider)
	assert.Equal(t, "admin", id.Username)
	assert.True(t, id.Admin)

	_, err = a.Authenticate(ctx, "admin", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "ghost", "admin-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

type stubAuthenticator struct {
	name  string
	id    *Identity
	err   error
	calls int
}

func (s *stubAuthenticator) Name() string { return s.name }

func (s *stubAuthenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	s.calls++
	return s.id, s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		local := &stubAuthenticator{name: "local", id: &Identity{Provider: "local", Username: "a"}}
		directory := &stubAuthenticator{name: "ldap", id: &Identity{Provider: "ldap", Username: "a"}}

		id, err := NewChain(local, directory).Authenticate(ctx, "a", "pw")
		require.NoError(t, err)
		assert.Equal(t, "local", id.Provider)
		assert.Equal(t, 0, directory.calls)
	})

	t.Run("falls through rejected credentials", func(t *testing.T) {
		local := &stubAuthenticator{name: "local", err: ErrInvalidCredentials}
		directory := &stubAuthenticator{name: "ldap", id: &Identity{Provider: "ldap", Username: "a"}}

		id, err := NewChain(local, directory).Authenticate(ctx, "a", "pw")
		require.NoError(t, err)
		assert.Equal(t, "ldap", id.Provider)
	})

	t.Run("provider outage is reported", func(t *testing.T) {
		local := &stubAuthenticator{name: "local", err: ErrInvalidCredentials}
		directory := &stubAuthenticator{name: "ldap", err: errors.New("connection refused")}

		_, err := NewChain(local, directory).Authenticate(ctx, "a", "pw")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
		assert.Contains(t, err.Error(), "ldap")
	})

	t.Run("everybody rejects", func(t *testing.T) {
		local := &stubAuthenticator{name: "local", err: ErrInvalidCredentials}

		_, err := NewChain(local).Authenticate(ctx, "a", "pw")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("empty credentials never reach providers", func(t *testing.T) {
		local := &stubAuthenticator{name: "local", id: &Identity{}}

		_, err := NewChain(local).Authenticate(ctx, "a", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, 0, local.calls)
	})
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	user := store.User{ID: 7, Username: "mario", Role: store.RoleAdmin, Provider: store.ProviderLDAP}

	token, expiresAt, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "mario", claims.Username)
	assert.Equal(t, store.ProviderLDAP, claims.Provider)
	assert.Equal(t, store.RoleAdmin, claims.Role)
	assert.Equal(t, "7", claims.Subject)

	other := NewTokenIssuer("ffffffffffffffffffffffffffffffff", time.Hour)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuerExpiry(t *testing.T) {
	issuer := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.Issue(store.User{ID: 1, Username: "old", Role: store.RoleUser})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestStateStore(t *testing.T) {
	s := NewStateStore()

	state := s.New()
	assert.NotEmpty(t, state)
	assert.NotEqual(t, state, s.New())

	require.NoError(t, s.Consume(state))
	assert.ErrorIs(t, s.Consume(state), ErrInvalidState, "states are single use")
	assert.ErrorIs(t, s.Consume("never-issued"), ErrInvalidState)
	assert.ErrorIs(t, s.Consume(""), ErrInvalidState)
}

type fakeDirectory struct {
	password string
	entries  []*ldap.Entry
	bound    string
	filter   string
}

func (f *fakeDirectory) Bind(username, password string) error {
	if password != f.password {
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password"))
	}
	f.bound = username
	return nil
}

func (f *fakeDirectory) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.filter = req.Filter
	return &ldap.SearchResult{Entries: f.entries}, nil
}

func newLDAPWithFake(cfg LDAPConfig, dir *fakeDirectory) *LDAPAuthenticator {
	a := NewLDAPAuthenticator(cfg)
	a.dial = func(ctx context.Context) (ldapConn, func(), error) {
		return dir, func() {}, nil
	}
	return a
}

func TestLDAPAuthenticator(t *testing.T) {
	ctx := context.Background()
	cfg := LDAPConfig{
		URL:          "ldap://dc.corp.example",
		BindTemplate: "%s@corp.example",
		BaseDN:       "dc=corp,dc=example",
		AdminGroupDN: "CN=Pricing Admins,OU=Groups,DC=corp,DC=example",
	}

	dir := &fakeDirectory{
		password: "pw",
		entries: []*ldap.Entry{
			ldap.NewEntry("CN=Luca Rossi,OU=Users,DC=corp,DC=example", map[string][]string{
				"mail":        {"l.rossi@corp.example"},
				"displayName": {"Luca Rossi"},
				"memberOf":    {"CN=Staff,OU=Groups,DC=corp,DC=example", "cn=pricing admins,ou=groups,dc=corp,dc=example"},
			}),
		},
	}
	a := newLDAPWithFake(cfg, dir)

	id, err := a.Authenticate(ctx, "lrossi", "pw")
	require.NoError(t, err)
	assert.Equal(t, "lrossi@corp.example", dir.bound)
	assert.Equal(t, "(sAMAccountName=lrossi)", dir.filter)
	assert.Equal(t, store.ProviderLDAP, id.Provider)
	assert.Equal(t, "l.rossi@corp.example", id.Email)
	assert.Equal(t, "Luca Rossi", id.DisplayName)
	assert.True(t, id.Admin)

	_, err = a.Authenticate(ctx, "lrossi", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "lrossi", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLDAPAuthenticatorEscapesFilter(t *testing.T) {
	dir := &fakeDirectory{password: "pw", entries: []*ldap.Entry{ldap.NewEntry("cn=x", nil)}}
	a := newLDAPWithFake(LDAPConfig{BaseDN: "dc=corp"}, dir)

	id, err := a.Authenticate(context.Background(), "a*)(uid=*", "pw")
	require.NoError(t, err)
	assert.Equal(t, `(sAMAccountName=a\2a\29\28uid=\2a)`, dir.filter)
	assert.False(t, id.Admin)
}

func TestLDAPAuthenticatorEscapesBindDN(t *testing.T) {
	ctx := context.Background()

	dir := &fakeDirectory{password: "pw"}
	a := newLDAPWithFake(LDAPConfig{BindTemplate: "uid=%s,ou=people,dc=corp,dc=example"}, dir)
	_, err := a.Authenticate(ctx, "smith, john", "pw")
	require.NoError(t, err)
	assert.Equal(t, `uid=smith\, john,ou=people,dc=corp,dc=example`, dir.bound)

	upn := newLDAPWithFake(LDAPConfig{BindTemplate: "%s@corp.example"}, dir)
	_, err = upn.Authenticate(ctx, "o'neil", "pw")
	require.NoError(t, err)
	assert.Equal(t, "o'neil@corp.example", dir.bound)
}

func newGoogleServer(t *testing.T, userinfo string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userinfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(srv *httptest.Server, hostedDomain string) *GoogleProvider {
	return NewGoogleProvider(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
		HostedDomain: hostedDomain,
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	})
}

func TestGoogleAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{ClientID: "client", RedirectURL: "http://localhost/cb", HostedDomain: "Corp.Example"})

	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "corp.example", u.Query().Get("hd"))
}

func TestGoogleExchange(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		userinfo string
		domain   string
		code     string
		wantErr  error
		wantUser string
	}{
		{
			name:     "verified account",
			userinfo: `{"id":"1","email":"Giulia@corp.example","verified_email":true,"name":"Giulia","hd":"corp.example"}`,
			code:     "good-code",
			wantUser: "giulia@corp.example",
		},
		{
			name:     "hosted domain match",
			userinfo: `{"id":"1","email":"giulia@corp.example","verified_email":true,"hd":"corp.example"}`,
			domain:   "corp.example",
			code:     "good-code",
			wantUser: "giulia@corp.example",
		},
		{
			name:     "hosted domain mismatch",
			userinfo: `{"id":"1","email":"giulia@gmail.com","verified_email":true}`,
			domain:   "corp.example",
			code:     "good-code",
			wantErr:  ErrDomainNotAllowed,
		},
		{
			name:     "unverified email",
			userinfo: `{"id":"1","email":"giulia@corp.example","verified_email":false}`,
			code:     "good-code",
			wantErr:  ErrEmailNotVerified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestGoogleProvider(newGoogleServer(t, tt.userinfo), tt.domain)

			id, err := p.Exchange(ctx, tt.code)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, store.ProviderGoogle, id.Provider)
			assert.Equal(t, tt.wantUser, id.Username)
			assert.False(t, id.Admin)
		})
	}

	t.Run("bad code", func(t *testing.T) {
		p := newTestGoogleProvider(newGoogleServer(t, `{}`), "")
		_, err := p.Exchange(ctx, "bad-code")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchange google code")
	})
}
