package server

import (
	"fmt"
	"net/http"

	"mailboxapi/pkg/domain"
	"mailboxapi/services/mailbox/internal/app"
)

type createLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type emailLabelRequest struct {
	Label string `json:"label"`
}

func emailQuery(r *http.Request) app.EmailQuery {
	q := r.URL.Query()
	view := q.Get("view")
	if view == "" {
		view = q.Get("folder")
	}
	return app.EmailQuery{
		Page:           q.Get("page"),
		Limit:          q.Get("limit"),
		SortBy:         q.Get("sortBy"),
		SortOrder:      q.Get("sortOrder"),
		View:           view,
		Labels:         q.Get("labels"),
		IsRead:         q.Get("isRead"),
		IsStarred:      q.Get("isStarred"),
		IsImportant:    q.Get("isImportant"),
		HasAttachments: q.Get("hasAttachments"),
		Search:         q.Get("search"),
		DateFrom:       q.Get("dateFrom"),
		DateTo:         q.Get("dateTo"),
	}
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emails, page, err := s.app.ListEmails(r.Context(), id.UserID, emailQuery(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if emails == nil {
		emails = []domain.Email{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: emails, Pagination: &page})
}

func (s *Server) handleEmailCounts(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	counts, err := s.app.EmailCounts(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, counts, "")
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	email, err := s.app.GetEmail(r.Context(), id.UserID, emailID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, email, "")
}

func (s *Server) handleDeleteEmail(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	if err := s.app.DeleteEmail(r.Context(), id.UserID, emailID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "Email deleted successfully")
}

func (s *Server) handleMarkEmailRead(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	email, err := s.app.MarkEmailRead(r.Context(), id.UserID, emailID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, email, "Email marked as read")
}

func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	email, err := s.app.ToggleStar(r.Context(), id.UserID, emailID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	msg := "Email unstarred"
	if email.IsStarred {
		msg = "Email starred"
	}
	writeData(w, http.StatusOK, email, msg)
}

func (s *Server) handleToggleImportant(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	email, err := s.app.ToggleImportant(r.Context(), id.UserID, emailID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	msg := "Email unmarked as important"
	if email.IsImportant {
		msg = "Email marked as important"
	}
	writeData(w, http.StatusOK, email, msg)
}

func (s *Server) handleAddLabel(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	var req emailLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, err := s.app.AddLabelToEmail(r.Context(), id.UserID, emailID, req.Label)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, email, fmt.Sprintf("Label '%s' added to email", req.Label))
}

func (s *Server) handleRemoveLabel(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	var req emailLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, err := s.app.RemoveLabelFromEmail(r.Context(), id.UserID, emailID, req.Label)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, email, fmt.Sprintf("Label '%s' removed from email", req.Label))
}

func (s *Server) handleAttachmentURL(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	emailID, ok := pathID(w, r, "id", "email")
	if !ok {
		return
	}
	attachmentID, ok := pathID(w, r, "attachmentId", "attachment")
	if !ok {
		return
	}
	u, err := s.app.AttachmentURL(r.Context(), id.UserID, emailID, attachmentID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": u}, "")
}

// labels

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	labels, err := s.app.ListLabels(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if labels == nil {
		labels = []domain.Label{}
	}
	writeData(w, http.StatusOK, labels, "")
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	var req createLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	label, err := s.app.CreateLabel(r.Context(), id.UserID, req.Name, req.Color)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, label, "Email label created successfully")
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	labelID, ok := pathID(w, r, "id", "label")
	if !ok {
		return
	}
	if err := s.app.DeleteLabel(r.Context(), id.UserID, labelID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "Email label deleted successfully")
}
