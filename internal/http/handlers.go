package http

import (
	"net/http"

	"taxiledger/internal/auth"
	"taxiledger/internal/log"
	"taxiledger/internal/services"
)

// sessionState is the body of every gate endpoint.
type sessionState struct {
	Stage   auth.Stage `json:"stage"`
	License string     `json:"license,omitempty"`
	Message string     `json:"message,omitempty"`
}

func stateOf(sess *services.Session) sessionState {
	return sessionState{
		Stage:   sess.Stage(),
		License: sess.License(),
		Message: sess.Message(),
	}
}

// currentSession resolves the cookie. A missing or expired session yields
// ErrNotLoggedIn.
func (s *Server) currentSession(r *http.Request) (*services.Session, error) {
	sess, ok := s.sessions.Get(sessionToken(r))
	if !ok {
		return nil, services.ErrNotLoggedIn
	}
	return sess, nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		NewResponse().JSON(sessionState{Stage: auth.StageLogin}).Write(w)
		return
	}
	NewResponse().JSON(stateOf(sess)).Write(w)
}

// handleLogin always starts a fresh session; a previous one bound to the same
// cookie is discarded.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	if old := sessionToken(r); old != "" {
		s.sessions.Drop(old)
	}

	token, sess := s.sessions.Create()
	if err := sess.Login(r.Context(), p.Get("license"), p.GetRaw("password")); err != nil {
		s.sessions.Drop(token)
		log.FromContext(r.Context()).InfoContext(r.Context(), "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldError, err.Error())
		errorResponse(r.Context(), log.OpLogin, err).
			Cookie(expiredSessionCookie(r)).
			Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Login accepted",
		log.FieldOperation, log.OpLogin,
		log.FieldLicense, sess.License(),
		log.FieldStage, string(sess.Stage()))
	NewResponse().
		Cookie(sessionCookie(r, token, s.sessions.IdleTimeout())).
		JSON(stateOf(sess)).
		Write(w)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpChangePassword, err).Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	if err := sess.ChangePassword(r.Context(), p.GetRaw("password"), p.GetRaw("confirm")); err != nil {
		errorResponse(r.Context(), log.OpChangePassword, err).Write(w)
		return
	}
	NewResponse().JSON(stateOf(sess)).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if sess, ok := s.sessions.Get(token); ok {
			sess.Logout()
		}
		s.sessions.Drop(token)
	}
	NewResponse().
		Status(http.StatusNoContent).
		Cookie(expiredSessionCookie(r)).
		Write(w)
}
