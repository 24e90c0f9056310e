// Appwrite-backed Store implementation. Talks to the Appwrite Databases REST
// API with the server API key; the two collections ("users", "chat_history")
// live in a single fixed database and are owned by the platform, not by this
// process.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tbourn/go-telegram-bridge/internal/config"
	"github.com/tbourn/go-telegram-bridge/internal/domain"
)

// Collection identifiers inside the configured database.
const (
	usersCollection   = "users"
	historyCollection = "chat_history"
)

// AppwriteStore is a thin REST client for the managed document store.
type AppwriteStore struct {
	endpoint   string
	projectID  string
	apiKey     string
	databaseID string
	httpc      *http.Client
}

// NewAppwriteStore builds a store client from configuration. The HTTP client
// carries a modest timeout; per-call contexts still apply on top of it.
func NewAppwriteStore(cfg config.AppwriteConfig) *AppwriteStore {
	return &AppwriteStore{
		endpoint:   cfg.Endpoint,
		projectID:  cfg.ProjectID,
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// --- document shapes ---
//
// Appwrite system attributes are prefixed with '$'; user attributes mirror
// the domain model JSON tags.

type userDocument struct {
	ID         string    `json:"$id"`
	CreatedAt  time.Time `json:"$createdAt"`
	TelegramID int64     `json:"user_id"`
	FirstName  string    `json:"first_name"`
	Username   string    `json:"username"`
}

type turnDocument struct {
	ID               string    `json:"$id"`
	CreatedAt        time.Time `json:"$createdAt"`
	Role             string    `json:"role"`
	Content          string    `json:"original_content"`
	OptimizedContent string    `json:"optimized_content"`
	UserID           string    `json:"user"`
}

type userDocumentList struct {
	Total     int64          `json:"total"`
	Documents []userDocument `json:"documents"`
}

type turnDocumentList struct {
	Total     int64          `json:"total"`
	Documents []turnDocument `json:"documents"`
}

// appwriteQuery is the JSON query form accepted by list-documents.
type appwriteQuery struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func queryEqual(attribute string, value any) appwriteQuery {
	return appwriteQuery{Method: "equal", Attribute: attribute, Values: []any{value}}
}

func queryOrderDesc(attribute string) appwriteQuery {
	return appwriteQuery{Method: "orderDesc", Attribute: attribute}
}

func queryLimit(n int) appwriteQuery {
	return appwriteQuery{Method: "limit", Values: []any{n}}
}

// FindUserByTelegramID looks up the user document keyed by the Telegram id.
func (s *AppwriteStore) FindUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var list userDocumentList
	err := s.listDocuments(ctx, usersCollection, []appwriteQuery{
		queryEqual("user_id", telegramID),
		queryLimit(1),
	}, &list)
	if err != nil {
		return nil, err
	}
	if len(list.Documents) == 0 {
		return nil, ErrNotFound
	}
	d := list.Documents[0]
	return &domain.User{
		ID:         d.ID,
		TelegramID: d.TelegramID,
		FirstName:  d.FirstName,
		Username:   d.Username,
		CreatedAt:  d.CreatedAt,
	}, nil
}

// CreateUser creates a user document and copies back the platform-assigned
// id and timestamp.
func (s *AppwriteStore) CreateUser(ctx context.Context, u *domain.User) error {
	var created userDocument
	err := s.createDocument(ctx, usersCollection, map[string]any{
		"user_id":    u.TelegramID,
		"first_name": u.FirstName,
		"username":   u.Username,
	}, &created)
	if err != nil {
		return err
	}
	u.ID = created.ID
	u.CreatedAt = created.CreatedAt
	return nil
}

// ListRecentTurns returns up to limit turns owned by userID, most recent
// first ($createdAt descending, as assigned by the platform).
func (s *AppwriteStore) ListRecentTurns(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	var list turnDocumentList
	err := s.listDocuments(ctx, historyCollection, []appwriteQuery{
		queryEqual("user", userID),
		queryOrderDesc("$createdAt"),
		queryLimit(limit),
	}, &list)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatTurn, 0, len(list.Documents))
	for _, d := range list.Documents {
		out = append(out, domain.ChatTurn{
			ID:               d.ID,
			UserID:           d.UserID,
			Role:             d.Role,
			Content:          d.Content,
			OptimizedContent: d.OptimizedContent,
			CreatedAt:        d.CreatedAt,
		})
	}
	return out, nil
}

// AppendTurn creates a chat_history document for the turn.
func (s *AppwriteStore) AppendTurn(ctx context.Context, t *domain.ChatTurn) error {
	var created turnDocument
	err := s.createDocument(ctx, historyCollection, map[string]any{
		"role":              t.Role,
		"original_content":  t.Content,
		"optimized_content": t.OptimizedContent,
		"user":              t.UserID,
	}, &created)
	if err != nil {
		return err
	}
	t.ID = created.ID
	t.CreatedAt = created.CreatedAt
	return nil
}

// Ping hits the platform health endpoint with the project credentials.
func (s *AppwriteStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("appwrite: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no persistent connections worth
// tearing down explicitly.
func (s *AppwriteStore) Close() error { return nil }

// --- REST plumbing ---

func (s *AppwriteStore) documentsURL(collection string) string {
	return fmt.Sprintf("%s/databases/%s/collections/%s/documents",
		s.endpoint, url.PathEscape(s.databaseID), url.PathEscape(collection))
}

func (s *AppwriteStore) setHeaders(req *http.Request) {
	req.Header.Set("X-Appwrite-Project", s.projectID)
	req.Header.Set("X-Appwrite-Key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// listDocuments performs a filtered list call and decodes the result into out.
func (s *AppwriteStore) listDocuments(ctx context.Context, collection string, queries []appwriteQuery, out any) error {
	u, err := url.Parse(s.documentsURL(collection))
	if err != nil {
		return err
	}
	params := u.Query()
	for _, q := range queries {
		enc, err := json.Marshal(q)
		if err != nil {
			return err
		}
		params.Add("queries[]", string(enc))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	s.setHeaders(req)
	return s.do(req, "list "+collection, out)
}

// createDocument creates a document with a platform-generated id ("unique()")
// and decodes the created document into out.
func (s *AppwriteStore) createDocument(ctx context.Context, collection string, data map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"documentId": "unique()",
		"data":       data,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.documentsURL(collection), bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.setHeaders(req)
	return s.do(req, "create "+collection, out)
}

// do executes the request and decodes a 2xx JSON body into out. Non-2xx
// responses surface as errors carrying the (truncated) response body.
func (s *AppwriteStore) do(req *http.Request, op string, out any) error {
	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("appwrite: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("appwrite: %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("appwrite: %s: status %d: %s", op, resp.StatusCode, truncateBody(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("appwrite: %s: decode response: %w", op, err)
	}
	return nil
}

// truncateBody keeps error messages readable when the platform returns a
// large HTML or JSON error page.
func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
