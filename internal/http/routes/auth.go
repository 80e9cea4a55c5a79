package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"

	"github.com/briangreenhill/wooadmin/internal/auth"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.Cfg.HasOAuth() {
		writeError(w, r, http.StatusServiceUnavailable, "login is not configured")
		return
	}

	token, st := s.State.Sign(r.URL.Query().Get("return_to"))
	s.Sess.Put(r.Context(), sessionNonce, st.Nonce)

	authURL := s.OAuth.AuthCodeURL(token, oauth2.AccessTypeOnline)
	http.Redirect(w, r, authURL, http.StatusFound)
}

type userInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	st, err := s.State.Verify(r.URL.Query().Get("state"))
	if err != nil {
		log.Warn().Err(err).Msg("[auth] state verify failed")
		writeError(w, r, http.StatusBadRequest, "invalid state")
		return
	}
	if nonce := s.Sess.PopString(r.Context(), sessionNonce); nonce == "" || nonce != st.Nonce {
		log.Warn().Msg("[auth] state nonce does not match session")
		writeError(w, r, http.StatusBadRequest, "invalid state")
		return
	}

	tok, err := s.OAuth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Error().Err(err).Msg("[auth] token exchange failed")
		writeError(w, r, http.StatusBadGateway, "could not exchange token")
		return
	}

	info, err := s.fetchUserInfo(r, tok)
	if err != nil {
		log.Error().Err(err).Msg("[auth] userinfo failed")
		writeError(w, r, http.StatusBadGateway, "could not read profile")
		return
	}
	if !info.EmailVerified || !s.Cfg.AllowsEmail(info.Email) {
		log.Warn().Str("email", info.Email).Msg("[auth] login refused")
		writeError(w, r, http.StatusForbidden, "this account may not administer the store")
		return
	}

	if err := s.Sess.RenewToken(r.Context()); err != nil {
		log.Error().Err(err).Msg("[auth] renew session token")
		writeError(w, r, http.StatusInternalServerError, "session error")
		return
	}
	s.Sess.Put(r.Context(), sessionEmail, info.Email)
	log.Info().Str("email", info.Email).Msg("[auth] admin signed in")

	http.Redirect(w, r, auth.SafeReturnTo(st.ReturnTo), http.StatusFound)
}

func (s *Server) fetchUserInfo(r *http.Request, tok *oauth2.Token) (*userInfo, error) {
	resp, err := s.OAuth.Client(r.Context(), tok).Get(s.Cfg.OAuth.UserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	return &info, nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sess.Destroy(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("[auth] destroy session")
	}
	w.WriteHeader(http.StatusNoContent)
}
