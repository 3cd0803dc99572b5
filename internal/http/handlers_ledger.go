package http

import (
	"net/http"
	"strconv"

	"taxiledger/internal/log"
	"taxiledger/internal/services"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	d, err := sess.Dashboard()
	if err != nil {
		errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewResponse().JSON(d).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	o, err := sess.Overview()
	if err != nil {
		errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewResponse().JSON(o).Write(w)
}

// handleListEntries updates the session's history filter from the query
// (reset, then month or year, then q) and returns the visible entries.
// Parameters that are absent leave the filter as it was.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpList, err).Write(w)
		return
	}

	q := r.URL.Query()
	steps := []struct {
		apply bool
		fn    func() error
	}{
		{queryFlag(q, "reset"), sess.ResetFilter},
		{q.Has("month"), func() error { return sess.SetFilterMonth(sanitizeInput(q.Get("month"))) }},
		{q.Has("year"), func() error { return sess.SetFilterYear(sanitizeInput(q.Get("year"))) }},
		{q.Has("q"), func() error { return sess.SetQuery(sanitizeInput(q.Get("q"))) }},
	}
	for _, step := range steps {
		if !step.apply {
			continue
		}
		if err := step.fn(); err != nil {
			errorResponse(r.Context(), log.OpList, err).Write(w)
			return
		}
	}

	h, err := sess.History()
	if err != nil {
		errorResponse(r.Context(), log.OpList, err).Write(w)
		return
	}
	NewResponse().JSON(h).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	entry, err := sess.AddEntry(r.Context(), p.EntryInput())
	if err != nil {
		errorResponse(r.Context(), log.OpCreate, err).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogEntryChange(r.Context(), log.OpCreate, sess.License(), entry.ID, entry.Date)
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/entries/"+strconv.FormatInt(entry.ID, 10)).
		JSON(entry).
		Write(w)
}

// handleDeleteEntry removes an entry. The client must pass confirm=true.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}

	id, err := parseEntryID(r)
	if err != nil {
		errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}

	if err := sess.DeleteEntry(r.Context(), id, queryFlag(r.URL.Query(), "confirm")); err != nil {
		errorResponse(r.Context(), log.OpDelete, err).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogEntryChange(r.Context(), log.OpDelete, sess.License(), id, "")
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	settings, err := sess.Settings()
	if err != nil {
		errorResponse(r.Context(), log.OpRead, err).Write(w)
		return
	}
	NewResponse().JSON(settings).Write(w)
}

// handleUpdateSettings applies driverPct and/or a monthly goal. A body with
// neither rewrites the settings unchanged.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		errorResponse(r.Context(), log.OpUpdate, err).Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	if err := applySettings(r, sess, p); err != nil {
		errorResponse(r.Context(), log.OpUpdate, err).Write(w)
		return
	}

	settings, err := sess.Settings()
	if err != nil {
		errorResponse(r.Context(), log.OpUpdate, err).Write(w)
		return
	}
	NewResponse().JSON(settings).Write(w)
}

func applySettings(r *http.Request, sess *services.Session, p *RequestBodyParser) error {
	hasPct, hasGoal := p.Has("driverPct"), p.Has("goal")
	if hasPct {
		if err := sess.SetDefaultDriverPct(r.Context(), p.Get("driverPct")); err != nil {
			return err
		}
	}
	if hasGoal {
		if err := sess.SetMonthlyGoal(r.Context(), p.Get("month"), p.Get("goal")); err != nil {
			return err
		}
	}
	if !hasPct && !hasGoal {
		return sess.SaveSettings(r.Context())
	}
	return nil
}
