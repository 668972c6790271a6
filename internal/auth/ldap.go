package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/Simplici0/pricecalc/internal/store"
)

type LDAPConfig struct {
	URL string
	// BindTemplate turns a login name into a bind DN or UPN, e.g. "%s@corp.example".
	BindTemplate string
	BaseDN       string
	// UserFilter finds the user entry, e.g. "(sAMAccountName=%s)".
	UserFilter   string
	AdminGroupDN string
	StartTLS     bool
	// InsecureSkipVerify disables certificate checks for StartTLS and ldaps.
	InsecureSkipVerify bool
}

type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// LDAPAuthenticator binds as the user and reads their profile attributes.
type LDAPAuthenticator struct {
	cfg  LDAPConfig
	dial func(ctx context.Context) (ldapConn, func(), error)
}

func NewLDAPAuthenticator(cfg LDAPConfig) *LDAPAuthenticator {
	if cfg.BindTemplate == "" {
		cfg.BindTemplate = "%s"
	}
	if cfg.UserFilter == "" {
		cfg.UserFilter = "(sAMAccountName=%s)"
	}
	a := &LDAPAuthenticator{cfg: cfg}
	a.dial = a.dialURL
	return a
}

func (a *LDAPAuthenticator) Name() string {
	return store.ProviderLDAP
}

func (a *LDAPAuthenticator) dialURL(ctx context.Context) (ldapConn, func(), error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: a.cfg.InsecureSkipVerify} //nolint:gosec
	conn, err := ldap.DialURL(a.cfg.URL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, nil, fmt.Errorf("dial ldap: %w", err)
	}
	closeConn := func() { conn.Close() }

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	if a.cfg.StartTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			closeConn()
			return nil, nil, fmt.Errorf("ldap starttls: %w", err)
		}
	}
	return conn, closeConn, nil
}

func (a *LDAPAuthenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	username = strings.TrimSpace(username)
	// An empty password is an unauthenticated bind and always succeeds.
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	conn, closeConn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	if err := conn.Bind(a.bindName(username), password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ldap bind: %w", err)
	}

	id := &Identity{
		Provider:    store.ProviderLDAP,
		Username:    username,
		DisplayName: username,
	}
	if a.cfg.BaseDN == "" {
		return id, nil
	}

	res, err := conn.Search(ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf(a.cfg.UserFilter, ldap.EscapeFilter(username)),
		[]string{"mail", "displayName", "memberOf"},
		nil,
	))
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("ldap search: %w", err)
	}
	if res == nil || len(res.Entries) == 0 {
		return nil, errors.New("ldap user entry not found")
	}

	entry := res.Entries[0]
	id.Email = entry.GetAttributeValue("mail")
	if name := entry.GetAttributeValue("displayName"); name != "" {
		id.DisplayName = name
	}
	if a.cfg.AdminGroupDN != "" {
		for _, group := range entry.GetAttributeValues("memberOf") {
			if strings.EqualFold(group, a.cfg.AdminGroupDN) {
				id.Admin = true
				break
			}
		}
	}
	return id, nil
}

// bindName fills the bind template. DN templates ("uid=%s,ou=people,...")
// get the username escaped as an attribute value; UPN templates do not.
func (a *LDAPAuthenticator) bindName(username string) string {
	if strings.Contains(a.cfg.BindTemplate, "=") {
		username = ldap.EscapeDN(username)
	}
	return fmt.Sprintf(a.cfg.BindTemplate, username)
}
