package anygencmder_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

const testToken = "tok-123"

// fakeGateway serves the gateway and RAG endpoints the commands call and
// records what they sent.
type fakeGateway struct {
	mu sync.Mutex

	roles    []string
	active   string
	chats    []map[string]any
	chatAuth []string
	roleEdit map[string]any
	uploads  []string
	requests []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{roles: []string{"user"}}
}

func (f *fakeGateway) setRoles(roles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = roles
}

func (f *fakeGateway) lastChat() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chats) == 0 {
		return nil
	}
	return f.chats[len(f.chats)-1]
}

func (f *fakeGateway) lastChatAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chatAuth) == 0 {
		return ""
	}
	return f.chatAuth[len(f.chatAuth)-1]
}

func (f *fakeGateway) activeSession() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeGateway) lastRoleEdit() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleEdit
}

func (f *fakeGateway) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *fakeGateway) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

func (f *fakeGateway) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		f.mu.Lock()
		f.chats = append(f.chats, body)
		f.chatAuth = append(f.chatAuth, r.Header.Get("Authorization"))
		f.mu.Unlock()

		w.Header().Set("X-Session-ID", "sess-42")
		if stream, _ := body["stream"].(bool); !stream {
			writeJSON(w, http.StatusOK, map[string]any{
				"session_id": "sess-42", "content": "Hello, world", "finish_reason": "stop",
			})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if body["message"] == "fail" {
			_, _ = io.WriteString(w, "data: {\"type\":\"error\",\"message\":\"Orchestrator error: 500\"}\n\n")
			return
		}
		_, _ = io.WriteString(w, strings.Join([]string{
			`data: {"type":"thinking","content":"Searching"}`,
			``,
			`data: {"type":"chunk","content":"Hello"}`,
			`data: {"type":"chunk","content":", world"}`,
			`data: [DONE]`,
			``,
		}, "\n"))
	})

	mux.HandleFunc("GET /api/v1/auth/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return
		}
		f.mu.Lock()
		roles := f.roles
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"sub": "u-1", "username": "alice", "email": "alice@example.com", "roles": roles,
		})
	})

	mux.HandleFunc("GET /api/v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"session_id": "sess-42", "title": "Planning", "message_count": 2, "updated_at": 1700000000},
			{"session_id": "sess-7", "title": "Old notes", "message_count": 9, "updated_at": 1690000000},
		})
	})
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		writeJSON(w, http.StatusOK, map[string]any{"session_id": "sess-new", "title": body["title"]})
	})
	mux.HandleFunc("POST /api/v1/sessions/active", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		f.mu.Lock()
		f.active, _ = body["session_id"].(string)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": r.PathValue("id"), "title": "Planning"})
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"role": "user", "content": "What is on the agenda?", "ts": 1700000000},
			{"role": "assistant", "content": "Budget review.", "ts": 1700000005},
		})
	})

	mux.HandleFunc("GET /api/v1/skills", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"skills": []map[string]any{
			{"id": "web_search", "name": "Web search", "description": "Search the web", "enabled": true},
		}})
	})
	mux.HandleFunc("POST /api/v1/skills/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "enabled": body["enabled"]})
	})

	mux.HandleFunc("GET /api/v1/kb", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "kb-1", "name": "handbook", "document_count": 3, "embedding_model": "zhipu"},
		})
	})

	mux.HandleFunc("GET /api/v1/admin/roles", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"name": "admin"}, {"name": "editor"}})
	})
	mux.HandleFunc("POST /api/v1/admin/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		f.mu.Lock()
		f.roleEdit = body
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("POST /api/v1/ingest/file", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		defer file.Close()
		f.mu.Lock()
		f.uploads = append(f.uploads, header.Filename)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "chunks_created": 4})
	})
	mux.HandleFunc("POST /api/v1/search", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"chunk_id": "c-1", "content": "Parental leave is\n16 weeks.", "score": 0.91},
		})
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"service": "rag", "status": "ok", "collection": "default"})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}
