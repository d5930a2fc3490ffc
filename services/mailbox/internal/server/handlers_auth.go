package server

import (
	"net/http"

	"mailboxapi/pkg/domain"
	"mailboxapi/services/mailbox/internal/app"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type profileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "mailbox.register", "rate_limited")
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		s.audit(r, "mailbox.register", "fail", "reason", "invalid_json")
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		s.audit(r, "mailbox.register", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "mailbox.register", "success", "user_id", user.ID, "role", string(user.Role))
	writeData(w, http.StatusCreated, user, "User registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "mailbox.login", "rate_limited")
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		s.audit(r, "mailbox.login", "fail", "reason", "invalid_json")
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "mailbox.login", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "mailbox.login", "success", "user_id", user.ID)
	writeData(w, http.StatusOK, loginResponse{User: user, Token: token}, "Login successful")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "mailbox.logout", "fail", "user_id", id.UserID, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "mailbox.logout", "success", "user_id", id.UserID)
	writeData(w, http.StatusOK, nil, "Logout successful")
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	profile, err := s.app.Profile(r.Context(), id.UserID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profile, "")
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.UpdateProfile(r.Context(), id.UserID, app.ProfileInput{Name: req.Name, Avatar: req.Avatar})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user, "Profile updated successfully")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if !s.allowRate(w, r, s.passwordLimiter, "too many password change attempts") {
		s.audit(r, "mailbox.password.change", "rate_limited", "user_id", id.UserID)
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	changed, err := s.app.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.audit(r, "mailbox.password.change", "fail", "user_id", id.UserID, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	if !changed {
		s.audit(r, "mailbox.password.change", "fail", "user_id", id.UserID, "reason", "wrong_current_password")
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	s.audit(r, "mailbox.password.change", "success", "user_id", id.UserID)
	writeData(w, http.StatusOK, nil, "Password changed successfully")
}
