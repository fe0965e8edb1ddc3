package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rshanygen/anygen/pkg/prefs"
	"github.com/rshanygen/anygen/pkg/prefs/inmemory"
	"github.com/rshanygen/anygen/pkg/session"
)

// upstreamRecorder is an httptest handler that records the last request it
// served and delegates the response to respond.
type upstreamRecorder struct {
	mu      sync.Mutex
	path    string
	query   string
	header  http.Header
	body    string
	respond func(w http.ResponseWriter, r *http.Request)
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.path = r.URL.Path
	u.query = r.URL.RawQuery
	u.header = r.Header.Clone()
	u.body = string(body)
	respond := u.respond
	u.mu.Unlock()

	if respond == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
		return
	}
	respond(w, r)
}

func (u *upstreamRecorder) lastPath() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.path
}

func (u *upstreamRecorder) lastQuery() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.query
}

func (u *upstreamRecorder) lastBody() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.body
}

func (u *upstreamRecorder) lastHeader() http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.header
}

type staticToken string

func (t staticToken) Token() (string, error) { return string(t), nil }

var _ = Describe("Proxy", func() {
	var (
		p           *Proxy
		gw, rag     *upstreamRecorder
		gwSrv       *httptest.Server
		ragSrv      *httptest.Server
		sessions    *session.Store
		prefStorage *prefs.Storage
		cfg         Config
	)

	newProxy := func() {
		var err error
		p, err = New(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
	}

	do := func(method, path string, body io.Reader, hdr http.Header) *http.Response {
		req := httptest.NewRequest(method, path, body)
		for k, v := range hdr {
			req.Header[k] = v
		}
		resp, err := p.server.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		gw = &upstreamRecorder{}
		rag = &upstreamRecorder{}
		gwSrv = httptest.NewServer(gw)
		ragSrv = httptest.NewServer(rag)

		prefStorage = prefs.New(inmemory.New())
		sessions = session.NewStore(prefStorage)

		cfg = Config{
			ListenAddr: ":0",
			GatewayURL: gwSrv.URL,
			RAGURL:     ragSrv.URL + "/",
			Sessions:   sessions,
		}
	})

	AfterEach(func() {
		if p != nil {
			p.Close()
			p = nil
		}
		gwSrv.Close()
		ragSrv.Close()
	})

	Describe("New", func() {
		It("requires both upstreams", func() {
			_, err := New(Config{GatewayURL: "http://localhost:9301"}, nil)
			Expect(err).To(MatchError("RAG URL is required"))

			_, err = New(Config{RAGURL: "http://localhost:9305"}, nil)
			Expect(err).To(MatchError("gateway URL is required"))
		})
	})

	Describe("routing", func() {
		BeforeEach(newProxy)

		DescribeTable("sends each path to the right service",
			func(path string, toRAG bool, upstreamPath string) {
				resp := do(http.MethodGet, path, nil, nil)
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				if toRAG {
					Expect(rag.lastPath()).To(Equal(upstreamPath))
					Expect(gw.lastPath()).To(BeEmpty())
				} else {
					Expect(gw.lastPath()).To(Equal(upstreamPath))
					Expect(rag.lastPath()).To(BeEmpty())
				}
			},
			Entry("sessions", "/api/v1/sessions", false, "/api/v1/sessions"),
			Entry("knowledge bases", "/api/v1/kb/kb1", false, "/api/v1/kb/kb1"),
			Entry("file ingest", "/api/v1/ingest/file", true, "/api/v1/ingest/file"),
			Entry("search", "/api/v1/search", true, "/api/v1/search"),
			Entry("documents", "/api/v1/documents/d1", true, "/api/v1/documents/d1"),
			Entry("lookalike prefix", "/api/v1/searchable", false, "/api/v1/searchable"),
			Entry("mounted RAG root", "/rag/", true, "/"),
			Entry("mounted RAG path", "/rag/api/v1/ingest/text", true, "/api/v1/ingest/text"),
		)

		It("forwards the query string", func() {
			resp := do(http.MethodGet, "/api/v1/sessions?limit=5", nil, nil)
			resp.Body.Close()
			Expect(gw.lastQuery()).To(Equal("limit=5"))
		})

		It("answers unknown paths with 404", func() {
			resp := do(http.MethodGet, "/index.html", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("reports unreachable upstreams as 502", func() {
			gwSrv.Close()

			resp := do(http.MethodGet, "/api/v1/skills", nil, nil)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			var body errorResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Detail).To(Equal("upstream request failed"))
		})
	})

	Describe("request forwarding", func() {
		It("relays bodies and upstream statuses", func() {
			gw.respond = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"detail":"Session not found"}`)
			}
			newProxy()

			resp := do(http.MethodPatch, "/api/v1/sessions/s1", strings.NewReader(`{"title":"x"}`),
				http.Header{"Content-Type": {"application/json"}})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal(`{"detail":"Session not found"}`))
			Expect(gw.lastBody()).To(Equal(`{"title":"x"}`))
		})

		It("injects the stored token and session id", func() {
			cfg.Tokens = staticToken("stored-token")
			Expect(sessions.Set(context.Background(), "stored-session")).To(Succeed())
			newProxy()

			resp := do(http.MethodGet, "/api/v1/skills", nil, nil)
			resp.Body.Close()

			h := gw.lastHeader()
			Expect(h.Get("Authorization")).To(Equal("Bearer stored-token"))
			Expect(h.Get("X-Session-ID")).To(Equal("stored-session"))
			Expect(h.Get("X-Request-ID")).NotTo(BeEmpty())
		})

		It("keeps the client's own credentials", func() {
			cfg.Tokens = staticToken("stored-token")
			newProxy()

			resp := do(http.MethodGet, "/api/v1/skills", nil, http.Header{"Authorization": {"Bearer browser"}})
			resp.Body.Close()

			Expect(gw.lastHeader().Get("Authorization")).To(Equal("Bearer browser"))
		})

		It("records the session announced by the gateway", func() {
			gw.respond = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("X-Session-ID", "announced")
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"session_id":"announced"}`)
			}
			newProxy()

			resp := do(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"title":"t"}`), nil)
			resp.Body.Close()
			Expect(resp.Header.Get("X-Session-ID")).To(Equal("announced"))

			// drain the worker pool
			p.Close()
			p = nil

			reloaded := session.NewStore(prefStorage)
			Expect(reloaded.Load(context.Background())).To(Succeed())
			Expect(reloaded.Get()).To(Equal("announced"))
		})
	})

	Describe("event streams", func() {
		frames := []string{
			"data: {\"type\":\"thinking\",\"content\":\"Searching\"}\n\n",
			"data: {\"type\":\"chunk\",\"content\":\"Hel\"}\n\n",
			"data: {\"type\":\"chunk\",\"content\":\"lo\"}\n\n",
			": keep-alive\n\n",
			"data: [DONE]\n\n",
			"data: {\"type\":\"chunk\",\"content\":\"after done\"}\n\n",
		}

		BeforeEach(func() {
			gw.respond = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("X-Session-ID", "streamed")
				flusher := w.(http.Flusher)
				for _, f := range frames {
					fmt.Fprint(w, f)
					flusher.Flush()
				}
			}
			newProxy()
		})

		It("forwards the stream byte for byte", func() {
			resp := do(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"message":"hi","stream":true}`),
				http.Header{"Content-Type": {"application/json"}})
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(strings.Join(frames, "")))
		})

		It("records the streamed session", func() {
			resp := do(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"message":"hi"}`), nil)
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			p.Close()
			p = nil
			Expect(sessions.Get()).To(Equal("streamed"))
		})
	})
})
