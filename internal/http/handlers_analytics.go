package http

import (
	"net/http"

	"fintrack/internal/services"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.analytics.Summary(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	totals, err := s.analytics.ExpensesByCategory(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := s.analytics.MonthlyTrends(r.Context(), currentUser(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleGetBotConfig(w http.ResponseWriter, r *http.Request) {
	v, err := s.bot.GetConfig(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePutBotConfig(w http.ResponseWriter, r *http.Request) {
	var in services.BotConfigInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.bot.PutConfig(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleBotWebhook accepts updates from the messaging platform. Updates
// are acknowledged and dropped while no bot is active.
func (s *Server) handleBotWebhook(w http.ResponseWriter, r *http.Request) {
	status, err := s.bot.Webhook(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": string(status)})
}
