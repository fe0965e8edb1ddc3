package auth_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/pkg/auth"
	"github.com/rshanygen/anygen/pkg/credentials"
	"github.com/rshanygen/anygen/pkg/gateway"
)

type fakeGateway struct {
	cfg      *gateway.AuthConfig
	token    *gateway.Token
	info     *gateway.UserInfo
	infoErr  error
	gotCode  string
	gotRedir string
}

func (f *fakeGateway) AuthConfig(context.Context) (*gateway.AuthConfig, error) {
	return f.cfg, nil
}

func (f *fakeGateway) ExchangeCode(_ context.Context, code, redirectURI string) (*gateway.Token, error) {
	f.gotCode = code
	f.gotRedir = redirectURI
	return f.token, nil
}

func (f *fakeGateway) UserInfo(context.Context) (*gateway.UserInfo, error) {
	return f.info, f.infoErr
}

type memStore struct {
	mu  sync.Mutex
	tok *credentials.GatewayToken
}

func (m *memStore) SetToken(tok credentials.GatewayToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = &tok
	return nil
}

func (m *memStore) RemoveToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}

func (m *memStore) stored() *credentials.GatewayToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok
}

var _ = Describe("AuthorizeURL", func() {
	It("builds the provider authorize URL", func() {
		u, err := auth.AuthorizeURL(&gateway.AuthConfig{
			CasdoorEndpoint: "https://id.example.com",
			ClientID:        "anygen",
		}, "http://127.0.0.1:9310/callback", "st-1")
		Expect(err).NotTo(HaveOccurred())

		parsed, err := url.Parse(u)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Host).To(Equal("id.example.com"))
		Expect(parsed.Path).To(Equal("/login/oauth/authorize"))
		q := parsed.Query()
		Expect(q.Get("client_id")).To(Equal("anygen"))
		Expect(q.Get("response_type")).To(Equal("code"))
		Expect(q.Get("scope")).To(Equal("openid profile email"))
		Expect(q.Get("redirect_uri")).To(Equal("http://127.0.0.1:9310/callback"))
		Expect(q.Get("state")).To(Equal("st-1"))
	})

	It("rewrites the published login URL when no endpoint is given", func() {
		u, err := auth.AuthorizeURL(&gateway.AuthConfig{
			LoginURL: "https://id.example.com/login?client_id=x&redirect_uri=http%3A%2F%2Fweb%2Fcb&state=rshanygen",
		}, "http://127.0.0.1:1/callback", "st-2")
		Expect(err).NotTo(HaveOccurred())

		parsed, err := url.Parse(u)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Query().Get("client_id")).To(Equal("x"))
		Expect(parsed.Query().Get("redirect_uri")).To(Equal("http://127.0.0.1:1/callback"))
		Expect(parsed.Query().Get("state")).To(Equal("st-2"))
	})

	It("fails without any login endpoint", func() {
		_, err := auth.AuthorizeURL(&gateway.AuthConfig{}, "http://x/callback", "s")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Login", func() {
	var (
		gw    *fakeGateway
		store *memStore
		ln    net.Listener
		now   time.Time
	)

	BeforeEach(func() {
		gw = &fakeGateway{
			cfg:   &gateway.AuthConfig{CasdoorEndpoint: "https://id.example.com", ClientID: "anygen"},
			token: &gateway.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "bearer", ExpiresIn: 3600},
		}
		store = &memStore{}
		now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		var err error
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
	})

	// follow plays the browser: it calls the redirect URI carried in the
	// authorize URL with the given state.
	follow := func(code func(state string) url.Values) func(string) {
		return func(authorizeURL string) {
			parsed, err := url.Parse(authorizeURL)
			Expect(err).NotTo(HaveOccurred())
			q := parsed.Query()
			target := q.Get("redirect_uri") + "?" + code(q.Get("state")).Encode()

			go func() {
				resp, err := http.Get(target)
				if err == nil {
					resp.Body.Close()
				}
			}()
		}
	}

	It("exchanges the callback code and stores the token", func() {
		opts := auth.WithClock(auth.LoginOptions{
			Listener: ln,
			Timeout:  5 * time.Second,
			OnAuthorizeURL: follow(func(state string) url.Values {
				return url.Values{"code": {"the-code"}, "state": {state}}
			}),
		}, func() time.Time { return now })

		Expect(auth.Login(context.Background(), gw, store, opts)).To(Succeed())

		Expect(gw.gotCode).To(Equal("the-code"))
		Expect(gw.gotRedir).To(Equal("http://" + ln.Addr().String() + "/callback"))

		tok := store.stored()
		Expect(tok).NotTo(BeNil())
		Expect(tok.AccessToken).To(Equal("at"))
		Expect(tok.RefreshToken).To(Equal("rt"))
		Expect(tok.ExpiresAt).To(Equal(now.Add(time.Hour)))
	})

	It("rejects a callback with the wrong state", func() {
		err := auth.Login(context.Background(), gw, store, auth.LoginOptions{
			Listener: ln,
			Timeout:  5 * time.Second,
			OnAuthorizeURL: follow(func(string) url.Values {
				return url.Values{"code": {"the-code"}, "state": {"forged"}}
			}),
		})

		Expect(err).To(MatchError(auth.ErrStateMismatch))
		Expect(gw.gotCode).To(BeEmpty())
		Expect(store.stored()).To(BeNil())
	})

	It("reports provider errors", func() {
		err := auth.Login(context.Background(), gw, store, auth.LoginOptions{
			Listener: ln,
			Timeout:  5 * time.Second,
			OnAuthorizeURL: follow(func(state string) url.Values {
				return url.Values{"error": {"access_denied"}, "state": {state}}
			}),
		})

		Expect(err).To(MatchError("login failed: access_denied"))
	})

	It("gives up after the timeout", func() {
		err := auth.Login(context.Background(), gw, store, auth.LoginOptions{
			Listener: ln,
			Timeout:  50 * time.Millisecond,
		})

		Expect(err).To(MatchError(ContainSubstring("timed out")))
	})
})

var _ = Describe("tokens", func() {
	It("saves raw tokens without the scheme", func() {
		store := &memStore{}
		Expect(auth.SaveRawToken(store, "  Bearer abc.def \n")).To(Succeed())
		Expect(store.stored().AccessToken).To(Equal("abc.def"))
		Expect(store.stored().ExpiresAt.IsZero()).To(BeTrue())
	})

	It("rejects empty raw tokens", func() {
		Expect(auth.SaveRawToken(&memStore{}, "   ")).To(HaveOccurred())
	})

	It("logs out", func() {
		store := &memStore{}
		Expect(auth.SaveRawToken(store, "abc")).To(Succeed())
		Expect(auth.Logout(store)).To(Succeed())
		Expect(store.stored()).To(BeNil())
	})
})

var _ = Describe("RequireAdmin", func() {
	It("allows admins", func() {
		gw := &fakeGateway{info: &gateway.UserInfo{Username: "root", Roles: []string{"user", "admin"}}}
		info, err := auth.RequireAdmin(context.Background(), gw)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Username).To(Equal("root"))
	})

	It("rejects other users", func() {
		gw := &fakeGateway{info: &gateway.UserInfo{Username: "bob", Roles: []string{"user"}}}
		_, err := auth.RequireAdmin(context.Background(), gw)
		Expect(err).To(MatchError(auth.ErrNotAdmin))
	})

	It("reports a missing login", func() {
		gw := &fakeGateway{infoErr: &gateway.APIError{StatusCode: http.StatusUnauthorized}}
		_, err := auth.RequireAdmin(context.Background(), gw)
		Expect(errors.Is(err, auth.ErrNotLoggedIn)).To(BeTrue())
	})
})
