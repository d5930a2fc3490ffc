package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"mailboxapi/pkg/domain"
	"mailboxapi/services/mailbox/internal/app"
)

type countResponse struct {
	Count int64 `json:"count"`
}

func (s *Server) feedLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := app.ParseFeedLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeAppError(w, r, err)
		return 0, false
	}
	return limit, true
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	limit, ok := s.feedLimit(w, r)
	if !ok {
		return
	}
	items, err := s.app.ListNotifications(r.Context(), id.UserID, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	writeData(w, http.StatusOK, items, "")
}

func (s *Server) handleUnreadNotifications(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	n, err := s.app.UnreadNotificationCount(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, countResponse{Count: n}, "")
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	notificationID, ok := pathID(w, r, "id", "notification")
	if !ok {
		return
	}
	n, err := s.app.MarkNotificationRead(r.Context(), id.UserID, notificationID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, n, "Notification marked as read")
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	n, err := s.app.MarkAllNotificationsRead(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"updated": n}, "All notifications marked as read")
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	notificationID, ok := pathID(w, r, "id", "notification")
	if !ok {
		return
	}
	if err := s.app.DeleteNotification(r.Context(), id.UserID, notificationID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "Notification deleted successfully")
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	limit, ok := s.feedLimit(w, r)
	if !ok {
		return
	}
	items, err := s.app.ListMessages(r.Context(), id.UserID, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	writeData(w, http.StatusOK, items, "")
}

func (s *Server) handleUnreadMessages(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	n, err := s.app.UnreadMessageCount(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, countResponse{Count: n}, "")
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}
	m, err := s.app.MarkMessageRead(r.Context(), id.UserID, messageID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, m, "Message marked as read")
}

func (s *Server) handleMarkAllMessagesRead(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	n, err := s.app.MarkAllMessagesRead(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"updated": n}, "All messages marked as read")
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	messageID, ok := pathID(w, r, "id", "message")
	if !ok {
		return
	}
	if err := s.app.DeleteMessage(r.Context(), id.UserID, messageID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "Message deleted successfully")
}

func (s *Server) handleNavigationItems(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	writeData(w, http.StatusOK, s.app.NavigationItems(), "")
}

func (s *Server) handleUpgradeInfo(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	writeData(w, http.StatusOK, s.app.UpgradeInfo(), "")
}

// admin

type triggerSweepRequest struct {
	RetentionHours *int `json:"retentionHours"`
}

func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	var req triggerSweepRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	outcome, err := s.app.TriggerSweep(r.Context(), id, req.RetentionHours)
	if err != nil {
		s.audit(r, "mailbox.sweep.trigger", "fail", "user_id", id.UserID, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	if outcome.Queued() {
		s.audit(r, "mailbox.sweep.trigger", "success", "user_id", id.UserID, "job_id", outcome.Job.ID)
		writeData(w, http.StatusAccepted, outcome.Job, "Sweep queued")
		return
	}
	s.audit(r, "mailbox.sweep.trigger", "success", "user_id", id.UserID, "run_id", outcome.Run.ID)
	writeData(w, http.StatusOK, outcome.Run, "Sweep completed")
}

func (s *Server) handleSweepJob(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	job, err := s.app.SweepJob(r.Context(), id, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, job, "")
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.app.RecentSweeps(r.Context(), id, limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.SweepRun{}
	}
	writeData(w, http.StatusOK, runs, "")
}
