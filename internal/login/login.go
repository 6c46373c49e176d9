// Package login implements nickname registration and WebSocket handshake
// verification (spec.md §4.I).
package login

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
)

// MaxNicknameRunes bounds a nickname to spec.md §4.I's "1..=32 Unicode
// scalar values".
const MaxNicknameRunes = 32

// User is the persistent record keyed by user id; SecretHash is never
// serialized back to a client, only to db/users/<user_id>.json.
type User struct {
	UserID     string `json:"userId"`
	Nickname   string `json:"nickname"`
	SecretHash string `json:"secretHash"`
}

// InvalidNicknameError reports why a nickname was rejected, and — when the
// rejection was a collision — a fuzzy-matched suggestion list to help the
// client pick something close to what they typed.
type InvalidNicknameError struct {
	Reason      string
	Suggestions []string
}

func (e *InvalidNicknameError) Error() string { return e.Reason }

// Service issues and verifies user identities. It persists one JSON file
// per user under root ("db/users"); fs is injected so tests can use an
// afero.MemMapFs instead of touching the real filesystem.
type Service struct {
	mu   sync.Mutex
	fs   afero.Fs
	root string

	byNickname map[string]string // nickname -> userId, case-sensitive exact index
	nicknames  []string          // for fuzzy collision suggestions
	users      map[string]*User
}

// NewService loads any already-persisted users from root ("db/users").
func NewService(fs afero.Fs, root string) *Service {
	s := &Service{
		fs:         fs,
		root:       root,
		byNickname: make(map[string]string),
		users:      make(map[string]*User),
	}
	s.loadAll()
	return s
}

func (s *Service) loadAll() {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		data, err := afero.ReadFile(s.fs, s.root+"/"+e.Name())
		if err != nil {
			continue
		}
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			continue
		}
		s.users[u.UserID] = &u
		s.byNickname[u.Nickname] = u.UserID
		s.nicknames = append(s.nicknames, u.Nickname)
	}
}

// ValidateNickname enforces spec.md §4.I's nickname shape: 1 to 32 Unicode
// scalar values, no control codes.
func ValidateNickname(nickname string) error {
	if !utf8.ValidString(nickname) {
		return &InvalidNicknameError{Reason: "nickname is not valid UTF-8"}
	}
	n := utf8.RuneCountInString(nickname)
	if n < 1 || n > MaxNicknameRunes {
		return &InvalidNicknameError{Reason: fmt.Sprintf("nickname must be 1..=%d characters", MaxNicknameRunes)}
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return &InvalidNicknameError{Reason: "nickname must not contain control characters"}
		}
	}
	return nil
}

// Register validates and issues a new user for nickname, returning the
// freshly minted user id and plaintext secret (the secret is never stored
// or shown again - only its bcrypt hash is persisted).
func (s *Service) Register(nickname string) (userID, secret string, err error) {
	if err := ValidateNickname(nickname); err != nil {
		return "", "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byNickname[nickname]; taken {
		return "", "", &InvalidNicknameError{
			Reason:      "nickname is already taken",
			Suggestions: suggestNicknames(nickname, s.nicknames),
		}
	}

	userID = "user_" + uuid.NewString()
	secret = uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	u := &User{UserID: userID, Nickname: nickname, SecretHash: string(hash)}
	if err := s.persist(u); err != nil {
		return "", "", err
	}

	s.users[userID] = u
	s.byNickname[nickname] = userID
	s.nicknames = append(s.nicknames, nickname)
	return userID, secret, nil
}

// suggestNicknames ranks existing nicknames by fuzzy closeness to
// nickname, returning up to 5 suggestions nearest-first.
func suggestNicknames(nickname string, existing []string) []string {
	ranks := fuzzy.RankFindNormalizedFold(nickname, existing)
	sort.Sort(ranks)
	const maxSuggestions = 5
	out := make([]string, 0, maxSuggestions)
	for i := 0; i < len(ranks) && i < maxSuggestions; i++ {
		out = append(out, ranks[i].Target)
	}
	return out
}

func (s *Service) persist(u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.root+"/"+u.UserID+".json", data, 0o644)
}

// Verify checks a handshake's {userId, secret} pair, returning the
// matching User on success. A missing user or a secret mismatch both
// fail identically with loginFailed (spec.md §4.I): "Subsequent WebSocket
// handshake must present {userId, secret}; mismatch returns loginFailed."
func (s *Service) Verify(userID, secret string) (*User, bool) {
	s.mu.Lock()
	u, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(secret)) != nil {
		return nil, false
	}
	return u, true
}
