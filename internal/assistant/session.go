package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "assistant:session:"

// Session is the conversation state carried between intake turns. It lives in
// redis under a sliding TTL; once it expires the conversation starts over.
type Session struct {
	ID                 uuid.UUID `json:"id"`
	StartedAt          time.Time `json:"started_at"`
	Intent             string    `json:"intent,omitempty"`
	SuggestedSpecialty string    `json:"suggested_specialty,omitempty"`
	Symptoms           string    `json:"symptoms,omitempty"`

	FirstName string `json:"first_name,omitempty"`
	LastNames string `json:"last_names,omitempty"`
	Age       int    `json:"age,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// FillIntake fills blanks in the intake with what the conversation already
// collected. Fields supplied on the request itself win.
func (s *Session) FillIntake(in *Intake) {
	if in.FirstName == "" {
		in.FirstName = s.FirstName
	}
	if in.LastNames == "" {
		in.LastNames = s.LastNames
	}
	if in.Age == 0 {
		in.Age = s.Age
	}
	if in.Email == "" {
		in.Email = s.Email
	}
	if in.Phone == "" {
		in.Phone = s.Phone
	}
	if in.Specialty == "" {
		in.Specialty = s.SuggestedSpecialty
	}
	if in.Symptoms == "" {
		in.Symptoms = s.Symptoms
	}
}

// SessionStore keeps assistant sessions in redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

// Start creates and persists a fresh session.
func (s *SessionStore) Start(ctx context.Context) (*Session, error) {
	session := &Session{
		ID:        uuid.New(),
		StartedAt: s.now().UTC(),
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get loads a session by id. A missing or expired session returns nil with no
// error; the caller starts a new one.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Save writes the session back and resets the TTL.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// End removes the session. Ending an already-gone session is not an error.
func (s *SessionStore) End(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}
