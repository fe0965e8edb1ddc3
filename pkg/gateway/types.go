package gateway

import "slices"

// Session is a conversation owned by the current user.
type Session struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id,omitempty"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	MessageCount int    `json:"message_count,omitempty"`
}

// Message is one stored turn of a session.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// ActiveSession is the user's currently selected session.
type ActiveSession struct {
	SessionID string `json:"session_id"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Title string `json:"title" validate:"min=1,max=200"`
}

// UpdateSessionRequest is the body of PATCH /sessions/{id}.
type UpdateSessionRequest struct {
	Title string `json:"title" validate:"min=1,max=200"`
}

type setActiveRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// Skill is a capability the assistant may invoke.
type Skill struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Enabled         bool   `json:"enabled"`
	RequiresConsent bool   `json:"requires_consent"`
	Category        string `json:"category,omitempty"`
}

// SkillList is the response of GET /skills.
type SkillList struct {
	Skills []Skill `json:"skills"`
}

type toggleSkillRequest struct {
	Enabled bool `json:"enabled"`
}

// KnowledgeBase is a named document collection used for retrieval.
type KnowledgeBase struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	DocumentCount  int    `json:"document_count,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// DefaultEmbeddingModel is used when a knowledge base is created without one.
const DefaultEmbeddingModel = "zhipu"

// CreateKBRequest is the body of POST /kb.
type CreateKBRequest struct {
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	EmbeddingModel string `json:"embedding_model"`
}

// UpdateKBRequest is the body of PUT /kb/{id}. Nil fields are left unchanged.
type UpdateKBRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
}

// IngestResult is the outcome of a document or text ingest.
type IngestResult struct {
	Status         string `json:"status"`
	FilePath       string `json:"file_path,omitempty"`
	DocID          string `json:"doc_id,omitempty"`
	ChunksCreated  int    `json:"chunks_created"`
	ChunksInserted int    `json:"chunks_inserted,omitempty"`
	DocType        string `json:"doc_type,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// IngestTextRequest is the body of POST /ingest/text.
type IngestTextRequest struct {
	Text     string         `json:"text" validate:"required"`
	DocID    string         `json:"doc_id" validate:"required"`
	Metadata map[string]any `json:"metadata"`
}

// CollectionStatus describes the RAG service and its active collection.
type CollectionStatus struct {
	Service    string `json:"service"`
	Status     string `json:"status"`
	Collection string `json:"collection"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query  string `json:"query" validate:"required"`
	TopK   int    `json:"top_k" validate:"min=1,max=100"`
	Rerank bool   `json:"rerank"`
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// User is an account in the identity provider, as returned by the admin API.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email,omitempty"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Enabled          bool   `json:"enabled"`
	EmailVerified    bool   `json:"emailVerified,omitempty"`
	CreatedTimestamp int64  `json:"createdTimestamp,omitempty"`
}

// Role is a realm role.
type Role struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListUsersOptions filters GET /admin/users.
type ListUsersOptions struct {
	Search string
	First  int
	Max    int
}

// CreateUserRequest is the body of POST /admin/users.
type CreateUserRequest struct {
	Username          string  `json:"username" validate:"required,min=1,max=100"`
	Email             *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
	Enabled           bool    `json:"enabled"`
	Password          *string `json:"password,omitempty" validate:"omitempty,min=6"`
	TemporaryPassword bool    `json:"temporary_password"`
}

// CreatedUser is the response of POST /admin/users.
type CreatedUser struct {
	ID string `json:"id"`
}

// UpdateUserRequest is the body of PATCH /admin/users/{id}. Nil fields are
// left unchanged.
type UpdateUserRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Enabled   *bool   `json:"enabled,omitempty"`
}

// ResetPasswordRequest is the body of POST /admin/users/{id}/reset-password.
type ResetPasswordRequest struct {
	Password  string `json:"password" validate:"required,min=6"`
	Temporary bool   `json:"temporary"`
}

// UpdateRolesRequest is the body of POST /admin/users/{id}/roles.
type UpdateRolesRequest struct {
	Add    []string `json:"add" validate:"dive,required"`
	Remove []string `json:"remove" validate:"dive,required"`
}

// AuthConfig is the login configuration published by the gateway.
type AuthConfig struct {
	CasdoorEndpoint  string `json:"casdoor_endpoint"`
	ClientID         string `json:"client_id"`
	RedirectURI      string `json:"redirect_uri"`
	OrganizationName string `json:"organization_name,omitempty"`
	ApplicationName  string `json:"application_name,omitempty"`
	LoginURL         string `json:"login_url"`
}

// Token is the result of exchanging an authorization code.
type Token struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
}

// UserInfo describes the authenticated user.
type UserInfo struct {
	Sub      string   `json:"sub"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the user holds role.
func (u *UserInfo) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

type statusResponse struct {
	Status string `json:"status"`
}
