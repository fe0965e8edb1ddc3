package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/pkg/gateway"
)

// recorded is one request seen by the fake gateway.
type recorded struct {
	Method  string
	Path    string
	Query   string
	Header  http.Header
	Body    []byte
	Content string
}

// fakeGateway answers every request with the configured status and body and
// records what it received.
type fakeGateway struct {
	mu       sync.Mutex
	requests []recorded

	status int
	body   string
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Header:  r.Header.Clone(),
		Body:    body,
		Content: r.Header.Get("Content-Type"),
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeGateway) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	Expect(f.requests).NotTo(BeEmpty())
	return f.requests[len(f.requests)-1]
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeGateway) respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.body = body
}

func decodeBody(r recorded) map[string]any {
	var m map[string]any
	Expect(json.Unmarshal(r.Body, &m)).To(Succeed())
	return m
}

var _ = Describe("Client", func() {
	var (
		fake   *fakeGateway
		server *httptest.Server
		ctx    context.Context
	)

	BeforeEach(func() {
		fake = &fakeGateway{}
		server = httptest.NewServer(fake)
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("New", func() {
		It("rejects non-http URLs", func() {
			_, err := gateway.New("ftp://example.com")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("scheme must be http or https"))
		})

		It("trims the trailing slash", func() {
			c, err := gateway.New(server.URL + "/")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.BaseURL()).To(Equal(server.URL))
		})
	})

	Describe("request headers", func() {
		It("attaches the bearer token and session id", func() {
			c, err := gateway.New(server.URL,
				gateway.WithToken(gateway.StaticToken("tok-1")),
				gateway.WithSessionID(func() string { return "sess-9" }),
			)
			Expect(err).NotTo(HaveOccurred())

			fake.respond(http.StatusOK, `{"skills":[]}`)
			_, err = c.ListSkills(ctx)
			Expect(err).NotTo(HaveOccurred())

			req := fake.last()
			Expect(req.Header.Get("Authorization")).To(Equal("Bearer tok-1"))
			Expect(req.Header.Get("X-Session-ID")).To(Equal("sess-9"))
		})

		It("omits empty credentials", func() {
			c, err := gateway.New(server.URL,
				gateway.WithToken(gateway.StaticToken("")),
				gateway.WithSessionID(func() string { return "" }),
			)
			Expect(err).NotTo(HaveOccurred())

			fake.respond(http.StatusOK, `{"skills":[]}`)
			_, err = c.ListSkills(ctx)
			Expect(err).NotTo(HaveOccurred())

			req := fake.last()
			Expect(req.Header.Get("Authorization")).To(BeEmpty())
			Expect(req.Header.Get("X-Session-ID")).To(BeEmpty())
		})

		It("fails when the token source fails", func() {
			c, err := gateway.New(server.URL, gateway.WithToken(failingToken{}))
			Expect(err).NotTo(HaveOccurred())

			_, err = c.ListSkills(ctx)
			Expect(err).To(MatchError(ContainSubstring("loading token")))
			Expect(fake.count()).To(Equal(0))
		})
	})

	Describe("errors", func() {
		var c *gateway.Client

		BeforeEach(func() {
			var err error
			c, err = gateway.New(server.URL)
			Expect(err).NotTo(HaveOccurred())
		})

		It("uses the detail field of error responses", func() {
			fake.respond(http.StatusNotFound, `{"detail":"Session not found"}`)

			_, err := c.GetSession(ctx, "missing")
			Expect(err).To(MatchError("HTTP error! status: 404: Session not found"))
			Expect(gateway.IsNotFound(err)).To(BeTrue())
			Expect(gateway.IsUnauthorized(err)).To(BeFalse())
		})

		It("keeps structured detail as raw JSON", func() {
			fake.respond(http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","title"]}]}`)

			_, err := c.GetSession(ctx, "s1")
			var apiErr *gateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(apiErr.Detail).To(Equal(`[{"loc":["body","title"]}]`))
		})

		It("falls back to the body text", func() {
			fake.respond(http.StatusBadGateway, "upstream down\n")

			_, err := c.ListSessions(ctx, 0)
			Expect(err).To(MatchError("HTTP error! status: 502: upstream down"))
		})

		It("reports auth failures", func() {
			fake.respond(http.StatusForbidden, `{"detail":"Admin role required"}`)

			_, err := c.ListRoles(ctx)
			Expect(gateway.IsUnauthorized(err)).To(BeTrue())
		})
	})
})

type failingToken struct{}

func (failingToken) Token() (string, error) {
	return "", errors.New("keyring locked")
}
