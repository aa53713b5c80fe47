package portaltest

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/userapi"
	"github.com/gin-gonic/gin"
)

const ctxUserID = "portaltest.user_id"

type registerRequest struct {
	StudentCode     string `json:"studentCode"`
	FullName        string `json:"fullName" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type otpRequest struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		fail(c, http.StatusUnauthorized, "Access token required")
		return
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if _, err := s.issuer.Verify(token); err != nil {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	s.mu.Lock()
	userID, active := s.access[token]
	_, exists := s.accounts[userID]
	s.mu.Unlock()
	if !active || !exists {
		fail(c, http.StatusUnauthorized, "Token expired")
		return
	}
	c.Set(ctxUserID, userID)
	c.Next()
}

func (s *Server) currentRole(c *gin.Context) session.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, found := s.accounts[c.GetString(ctxUserID)]; found {
		return acc.user.Role
	}
	return ""
}

func (s *Server) requireAdmin(c *gin.Context) {
	if !s.currentRole(c).Is(session.RoleAdmin) {
		fail(c, http.StatusForbidden, "Admin access required")
		return
	}
	c.Next()
}

func (s *Server) requireSelfOrAdmin(c *gin.Context) {
	if c.Param("id") != c.GetString(ctxUserID) && !s.currentRole(c).Is(session.RoleAdmin) {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}
	c.Next()
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		fail(c, http.StatusBadRequest, "Passwords do not match")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmailLocked(req.Email) != nil {
		fail(c, http.StatusConflict, "Email already registered")
		return
	}

	u := s.addLocked(userapi.User{
		FullName:    req.FullName,
		Email:       req.Email,
		StudentCode: req.StudentCode,
		Role:        session.RoleStudent,
	}, req.Password, !s.requireOTP)
	if s.requireOTP {
		s.otps[u.Email] = DefaultOTP
		ok(c, "Registration successful. Please verify the OTP sent to your email.", gin.H{"user": u})
		return
	}

	data, err := s.issueLocked(s.accounts[u.UserID])
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, "Registration successful", data)
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.byEmailLocked(req.Email)
	if acc == nil || acc.password != req.Password {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !acc.verified {
		fail(c, http.StatusForbidden, "Please verify your email before logging in")
		return
	}
	data, err := s.issueLocked(acc)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, "Login successful", data)
}

func (s *Server) adminLecturerLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.byEmailLocked(req.Email)
	if acc == nil || acc.password != req.Password {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !acc.user.Role.Is(session.Role(req.Role)) || acc.user.Role.Is(session.RoleStudent) {
		fail(c, http.StatusForbidden, "Access denied for this role")
		return
	}
	data, err := s.issueLocked(acc)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, "Login successful", data)
}

func (s *Server) refreshToken(c *gin.Context) {
	s.refreshCalls.Add(1)

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.ShouldBindJSON(&req)

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID, found := s.refresh[req.RefreshToken]
	acc := s.accounts[userID]
	if !found || acc == nil {
		fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	token, err := s.issuer.Issue(acc.user.UserID, acc.user.Email, string(acc.user.Role))
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.access[token] = userID
	ok(c, "", gin.H{"accessToken": token})
}

func (s *Server) logout(c *gin.Context) {
	s.logouts.Add(1)
	userID := c.GetString(ctxUserID)

	s.mu.Lock()
	for token, owner := range s.access {
		if owner == userID {
			delete(s.access, token)
		}
	}
	for token, owner := range s.refresh {
		if owner == userID {
			delete(s.refresh, token)
		}
	}
	s.mu.Unlock()
	ok(c, "Logged out", nil)
}

func (s *Server) forgotPassword(c *gin.Context) {
	s.sendOTP(c, "OTP sent to your email")
}

func (s *Server) resendOTP(c *gin.Context) {
	s.sendOTP(c, "OTP resent")
}

func (s *Server) sendOTP(c *gin.Context, message string) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.byEmailLocked(req.Email)
	if acc == nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	s.otps[acc.user.Email] = DefaultOTP
	ok(c, message, nil)
}

func (s *Server) resetPassword(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.byEmailLocked(req.Email)
	if acc == nil || s.otps[acc.user.Email] != req.OTP {
		fail(c, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	delete(s.otps, acc.user.Email)
	acc.password = req.NewPassword
	ok(c, "Password reset successful", nil)
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.byEmailLocked(req.Email)
	if acc == nil || s.otps[acc.user.Email] != req.OTP {
		fail(c, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	delete(s.otps, acc.user.Email)
	acc.verified = true
	data, err := s.issueLocked(acc)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, "Email verified", data)
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[c.GetString(ctxUserID)]
	if acc == nil || acc.password != req.CurrentPassword {
		fail(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	acc.password = req.NewPassword
	ok(c, "Password changed successfully", nil)
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]userapi.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		users = append(users, acc.user)
	}
	ok(c, "", users)
}

func (s *Server) getUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[c.Param("id")]
	if acc == nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	ok(c, "", acc.user)
}

func (s *Server) updateUser(c *gin.Context) {
	var req userapi.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[c.Param("id")]
	if acc == nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if req.FullName != "" {
		acc.user.FullName = req.FullName
	}
	if req.Email != "" && !strings.EqualFold(req.Email, acc.user.Email) {
		delete(s.byEmail, acc.user.Email)
		acc.user.Email = strings.ToLower(req.Email)
		s.byEmail[acc.user.Email] = acc.user.UserID
	}
	if req.StudentCode != "" {
		acc.user.StudentCode = req.StudentCode
	}
	ok(c, "User updated", acc.user)
}

func (s *Server) updateRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[c.Param("id")]
	if acc == nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	acc.user.Role = session.ParseRole(req.Role)
	ok(c, "Role updated", acc.user)
}

func (s *Server) deleteUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[c.Param("id")]
	if acc == nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	delete(s.accounts, acc.user.UserID)
	delete(s.byEmail, acc.user.Email)
	ok(c, "User deleted", nil)
}
