// Package auth signs the OAuth state parameter used by the admin login.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBadToken   = errors.New("bad token")
	ErrBadSig     = errors.New("invalid signature")
	ErrExpired    = errors.New("expired")
	ErrBadPayload = errors.New("bad payload")
)

// State is the verified content of a state token.
type State struct {
	Nonce    string // also kept in the session to bind the token to a browser
	ReturnTo string // local path to land on after login
}

type StateSigner struct {
	Secret []byte
	TTL    time.Duration

	now func() time.Time
}

func NewStateSigner(secret []byte, ttl time.Duration) StateSigner {
	return StateSigner{Secret: secret, TTL: ttl, now: time.Now}
}

func (s StateSigner) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Sign issues a token for returnTo. Paths that are not local are replaced
// by "/".
func (s StateSigner) Sign(returnTo string) (token string, st State) {
	st = State{Nonce: uuid.NewString(), ReturnTo: SafeReturnTo(returnTo)}
	exp := s.clock().Add(s.TTL)
	msg := st.Nonce + "|" + strconv.FormatInt(exp.Unix(), 10) + "|" + st.ReturnTo

	payload := base64.RawURLEncoding.EncodeToString([]byte(msg))
	return payload + "." + s.sign([]byte(msg)), st
}

func (s StateSigner) sign(msg []byte) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write(msg)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s StateSigner) Verify(token string) (State, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return State{}, ErrBadToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return State{}, ErrBadToken
	}

	if !hmac.Equal([]byte(s.sign(raw)), []byte(parts[1])) {
		return State{}, ErrBadSig
	}

	fields := strings.SplitN(string(raw), "|", 3)
	if len(fields) != 3 {
		return State{}, ErrBadPayload
	}
	if _, err := uuid.Parse(fields[0]); err != nil {
		return State{}, ErrBadPayload
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return State{}, ErrBadPayload
	}
	if s.clock().After(time.Unix(ts, 0)) {
		return State{}, ErrExpired
	}
	return State{Nonce: fields[0], ReturnTo: fields[2]}, nil
}

// SafeReturnTo keeps p only when it is a local absolute path.
func SafeReturnTo(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
