package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"hexauth-server/internal/auth"
	"hexauth-server/internal/database"
	"hexauth-server/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// newAppSecret issues the per-tenant shared secret used by the client
// transport cipher
func newAppSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func authStatus(err error) int {
	var ae auth.AuthError
	if errors.As(err, &ae) {
		switch ae.Code {
		case "ACCOUNT_EXISTS", "WEAK_PASSWORD":
			return http.StatusBadRequest
		case "FORBIDDEN", "ACCOUNT_BANNED":
			return http.StatusForbidden
		default:
			return http.StatusUnauthorized
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) handleOwnerRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	acct, err := s.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		c.JSON(authStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "account": acct})
}

func (s *Server) handleOwnerLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	resp, err := s.authSvc.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		c.JSON(authStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := s.authSvc.ChangePassword(c.Request.Context(), auth.GetClaims(c), req); err != nil {
		c.JSON(authStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleOwnerAccount(c *gin.Context) {
	acct, err := s.authSvc.Account(c.Request.Context(), auth.GetClaims(c))
	if err != nil {
		c.JSON(authStatus(err), gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": acct})
}

// ownedApp loads the named application scoped to the token's owner. A
// nil return means the response is already written.
func (s *Server) ownedApp(c *gin.Context) *database.Application {
	app, err := s.repo.GetApplication(c.Request.Context(), auth.GetOwnerID(c), c.Param("name"))
	if err != nil {
		s.log.WithError(err).Error("application lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return nil
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Application not found"})
		return nil
	}
	return app
}

func (s *Server) handleCreateApp(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,min=3"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	app, err := s.repo.CreateApplication(c.Request.Context(), auth.GetOwnerID(c), req.Name, newAppSecret())
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Application name already in use"})
			return
		}
		s.log.WithError(err).Error("application create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	// The secret is shown exactly once, on creation
	c.JSON(http.StatusCreated, gin.H{"success": true, "app": app, "secret": app.Secret})
}

func (s *Server) handleListApps(c *gin.Context) {
	apps, err := s.repo.ListApplicationsByOwner(c.Request.Context(), auth.GetOwnerID(c))
	if err != nil {
		s.log.WithError(err).Error("application list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "apps": apps})
}

func (s *Server) handleGetApp(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "app": app})
}

func (s *Server) handleUpdateApp(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		Enabled              *bool              `json:"enabled"`
		Paused               *bool              `json:"paused"`
		Version              *string            `json:"version"`
		DownloadURL          *string            `json:"download_url"`
		FileHash             *string            `json:"file_hash"`
		HWIDCheckEnabled     *bool              `json:"hwid_check_enabled"`
		ForceHWID            *bool              `json:"force_hwid"`
		MinHWIDLength        *int               `json:"min_hwid_length"`
		VPNBlockEnabled      *bool              `json:"vpn_block_enabled"`
		HashCheckEnabled     *bool              `json:"hash_check_enabled"`
		BlockLeakedPasswords *bool              `json:"block_leaked_passwords"`
		SessionExpirySecs    *int               `json:"session_expiry_seconds"`
		MinUsernameLength    *int               `json:"min_username_length"`
		LicenseMask          *string            `json:"license_mask"`
		CooldownSecs         *int               `json:"cooldown_seconds"`
		WebhookURL           *string            `json:"webhook_url"`
		PanelURL             *string            `json:"panel_url"`
		Messages             *database.Messages `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if req.Enabled != nil {
		app.Enabled = *req.Enabled
	}
	if req.Paused != nil {
		app.Paused = *req.Paused
	}
	if req.Version != nil {
		app.Version = *req.Version
	}
	if req.DownloadURL != nil {
		app.DownloadURL = req.DownloadURL
	}
	if req.FileHash != nil {
		app.FileHash = req.FileHash
	}
	if req.HWIDCheckEnabled != nil {
		app.HWIDCheckEnabled = *req.HWIDCheckEnabled
	}
	if req.ForceHWID != nil {
		app.ForceHWID = *req.ForceHWID
	}
	if req.MinHWIDLength != nil {
		app.MinHWIDLength = *req.MinHWIDLength
	}
	if req.VPNBlockEnabled != nil {
		app.VPNBlockEnabled = *req.VPNBlockEnabled
	}
	if req.HashCheckEnabled != nil {
		app.HashCheckEnabled = *req.HashCheckEnabled
	}
	if req.BlockLeakedPasswords != nil {
		app.BlockLeakedPasswords = *req.BlockLeakedPasswords
	}
	if req.SessionExpirySecs != nil {
		app.SessionExpirySecs = *req.SessionExpirySecs
	}
	if req.MinUsernameLength != nil {
		app.MinUsernameLength = *req.MinUsernameLength
	}
	if req.LicenseMask != nil {
		app.LicenseMask = *req.LicenseMask
	}
	if req.CooldownSecs != nil {
		app.CooldownSecs = *req.CooldownSecs
	}
	if req.WebhookURL != nil {
		app.WebhookURL = req.WebhookURL
	}
	if req.PanelURL != nil {
		app.PanelURL = req.PanelURL
	}
	if req.Messages != nil {
		app.Messages = req.Messages.WithDefaults()
	}

	if err := s.repo.UpdateApplicationSettings(c.Request.Context(), app); err != nil {
		s.log.WithError(err).Error("application update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "app": app})
}

func (s *Server) handleGenerateLicenses(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		Mask        string `json:"mask"`
		Level       string `json:"level" binding:"required"`
		ExpiresSecs int64  `json:"expires_seconds" binding:"required,min=1"`
		Count       int    `json:"count"`
		Note        string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if req.Mask == "" {
		req.Mask = app.LicenseMask
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	generatedBy := auth.GetClaims(c).Username
	keys, err := s.licenses.Generate(c.Request.Context(), app.ID, req.Mask, req.Level,
		req.ExpiresSecs, req.Count, strPtr(req.Note), &generatedBy)
	if err != nil {
		s.log.WithError(err).Error("license generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "licenses": keys})
}

func (s *Server) handleListLicenses(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	keys, err := s.licenses.List(c.Request.Context(), app.ID)
	if err != nil {
		s.log.WithError(err).Error("license list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "licenses": keys})
}

func (s *Server) handleDeleteLicense(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	if err := s.licenses.Delete(c.Request.Context(), app.ID, c.Param("key")); err != nil {
		s.log.WithError(err).Error("license delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleBanLicense(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "Banned by owner"
	}

	if err := s.licenses.Ban(c.Request.Context(), app.ID, c.Param("key"), req.Reason); err != nil {
		if errors.Is(err, database.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "License not found"})
			return
		}
		s.log.WithError(err).Error("license ban failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUnbanLicense(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	if err := s.licenses.Unban(c.Request.Context(), app.ID, c.Param("key")); err != nil {
		if errors.Is(err, database.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "License not found"})
			return
		}
		s.log.WithError(err).Error("license unban failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleCreatePlan(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		Name  string `json:"name" binding:"required"`
		Level string `json:"level" binding:"required,max=12"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	plan, err := s.subs.CreatePlan(c.Request.Context(), app.ID, req.Name, req.Level)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "A plan already exists for this level"})
			return
		}
		s.log.WithError(err).Error("plan create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "plan": plan})
}

func (s *Server) handleListPlans(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	plans, err := s.subs.ListPlans(c.Request.Context(), app.ID)
	if err != nil {
		s.log.WithError(err).Error("plan list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "plans": plans})
}

// adminUser resolves the :username path param within the owned app
func (s *Server) adminUser(c *gin.Context, app *database.Application) *database.AppUser {
	user, err := s.identity.Lookup(c.Request.Context(), app.ID, c.Param("username"))
	if err == identity.ErrUserNotFound {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return nil
	}
	if err != nil {
		s.log.WithError(err).Error("user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return nil
	}
	return user
}

func (s *Server) handleGetUser(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}
	user := s.adminUser(c, app)
	if user == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (s *Server) handleBanUser(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}
	user := s.adminUser(c, app)
	if user == nil {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "Banned by owner"
	}

	if err := s.identity.Ban(c.Request.Context(), app.ID, user.Username, req.Reason); err != nil {
		s.log.WithError(err).Error("user ban failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	s.eventBus.PublishUserBanned(app.OwnerID, app.Name, user.Username, req.Reason)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUnbanUser(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}
	user := s.adminUser(c, app)
	if user == nil {
		return
	}

	if err := s.repo.UnbanAppUser(c.Request.Context(), user.ID); err != nil {
		s.log.WithError(err).Error("user unban failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleResetHWID clears the hardware binding and starts the tenant's
// reset cooldown so resets can't be farmed for account sharing
func (s *Server) handleResetHWID(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}
	user := s.adminUser(c, app)
	if user == nil {
		return
	}

	cooldownUntil := time.Now().Add(app.Cooldown())
	if err := s.repo.ResetUserHWID(c.Request.Context(), user.ID, cooldownUntil); err != nil {
		s.log.WithError(err).Error("hwid reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cooldown_until": cooldownUntil})
}

func (s *Server) handleListUserSubs(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}
	user := s.adminUser(c, app)
	if user == nil {
		return
	}

	grants, err := s.subs.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		s.log.WithError(err).Error("subscription list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscriptions": grants})
}

func (s *Server) handlePauseGrant(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	paused, err := s.subs.Pause(c.Request.Context(), app.ID, c.Param("grant"))
	if err != nil {
		s.log.WithError(err).Error("grant pause failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if !paused {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Subscription is already paused or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUnpauseGrant(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	resumed, err := s.subs.Unpause(c.Request.Context(), app.ID, c.Param("grant"))
	if err != nil {
		s.log.WithError(err).Error("grant unpause failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if !resumed {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Subscription is not paused"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleRevokeGrant(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	if err := s.subs.Revoke(c.Request.Context(), app.ID, c.Param("grant")); err != nil {
		s.log.WithError(err).Error("grant revoke failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleAddBlacklist(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		IP     string `json:"ip"`
		HWID   string `json:"hwid"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if req.IP == "" && req.HWID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ip or hwid required"})
		return
	}

	if err := s.repo.AddBlacklistEntry(c.Request.Context(), app.ID, strPtr(req.IP), strPtr(req.HWID), strPtr(req.Reason)); err != nil {
		s.log.WithError(err).Error("blacklist insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *Server) handleAddWhitelist(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		IP string `json:"ip" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := s.repo.AddWhitelistEntry(c.Request.Context(), app.ID, req.IP); err != nil {
		s.log.WithError(err).Error("whitelist insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

func (s *Server) handleSetAppVariable(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
		Data string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := s.repo.SetAppVariable(c.Request.Context(), app.ID, req.Name, req.Data); err != nil {
		s.log.WithError(err).Error("variable write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleCreateFile(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	f, err := s.repo.CreateFile(c.Request.Context(), app.ID, uuid.NewString(), req.URL)
	if err != nil {
		s.log.WithError(err).Error("file create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "file": f})
}

func (s *Server) handleCreateWebhook(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		URL       string `json:"url" binding:"required,url"`
		UserAgent string `json:"user_agent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	endpoint, err := s.repo.CreateWebhookEndpoint(c.Request.Context(), app.ID, uuid.NewString(), req.URL, strPtr(req.UserAgent))
	if err != nil {
		s.log.WithError(err).Error("webhook create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "webhook": endpoint})
}

func (s *Server) handleCreateChannel(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	var req struct {
		Name      string `json:"name" binding:"required"`
		DelaySecs int    `json:"delay_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	channel, err := s.repo.CreateChatChannel(c.Request.Context(), app.ID, req.Name, req.DelaySecs)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Channel already exists"})
			return
		}
		s.log.WithError(err).Error("channel create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "channel": channel})
}

func (s *Server) handleListLogs(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	logs, err := s.repo.ListUserLogs(c.Request.Context(), app.ID, 100)
	if err != nil {
		s.log.WithError(err).Error("log list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

func (s *Server) handleListOnline(c *gin.Context) {
	app := s.ownedApp(c)
	if app == nil {
		return
	}

	creds, err := s.sessions.OnlineCredentials(c.Request.Context(), app.ID)
	if err != nil {
		s.log.WithError(err).Error("online list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	count, _ := s.sessions.CountOnline(c.Request.Context(), app.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "online": creds, "count": count})
}

func (s *Server) handlePurgeSessions(c *gin.Context) {
	purged, err := s.repo.DeleteExpiredSessions(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("session purge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purged": purged})
}
