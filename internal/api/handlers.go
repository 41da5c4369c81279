package api

import (
	"net/http"

	"hexauth-server/internal/database"
	"hexauth-server/internal/session"

	"github.com/gin-gonic/gin"
)

// handleClient is the single legacy endpoint. Every client operation
// arrives here tagged by `type` and is dispatched after the shared
// tenant prelude.
func (s *Server) handleClient(c *gin.Context) {
	req, err := parseClientRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Malformed request"})
		return
	}

	app := s.resolveApp(c, req)
	if app == nil {
		return
	}

	switch req.Type {
	case "init":
		s.opInit(c, req, app)
	case "register":
		s.opRegister(c, req, app)
	case "login":
		s.opLogin(c, req, app)
	case "license":
		s.opLicense(c, req, app)
	case "upgrade":
		s.opUpgrade(c, req, app)
	case "check":
		s.opCheck(c, req, app)
	case "log":
		s.opLog(c, req, app)
	case "var":
		s.opVar(c, req, app)
	case "setvar":
		s.opSetVar(c, req, app)
	case "getvar":
		s.opGetVar(c, req, app)
	case "file":
		s.opFile(c, req, app)
	case "webhook":
		s.opWebhook(c, req, app)
	case "ban":
		s.opBan(c, req, app)
	case "checkblacklist":
		s.opCheckBlacklist(c, req, app)
	case "chatget":
		s.opChatGet(c, req, app)
	case "chatsend":
		s.opChatSend(c, req, app)
	case "fetchOnline":
		s.opFetchOnline(c, req, app)
	case "changeUsername":
		s.opChangeUsername(c, req, app)
	default:
		s.fail(c, req, app, nil, unhandledTypeMessage)
	}
}

// resolveApp runs the shared prelude: tenant lookup plus the state
// gates every operation passes through, ending with the VPN gate. Init
// defers the VPN gate to opInit so its version and hash checks report
// first. A nil return means the response has already been written.
func (s *Server) resolveApp(c *gin.Context, req *clientRequest) *database.Application {
	ctx := c.Request.Context()

	if len(req.OwnerID) != ownerIDLength || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": invalidAppMessage})
		return nil
	}

	app, err := s.repo.GetApplication(ctx, req.OwnerID, req.Name)
	if err != nil {
		s.log.WithError(err).Error("application lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return nil
	}
	// A banned tenant is indistinguishable from a missing one
	if app == nil || app.Banned {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": invalidAppMessage})
		return nil
	}

	if !app.Enabled {
		s.fail(c, req, app, nil, app.Messages.AppDisabled)
		return nil
	}
	if app.Paused {
		s.fail(c, req, app, nil, app.Messages.AppPaused)
		return nil
	}

	if req.Type != "init" && s.vpnBlocked(c, req, app) {
		return nil
	}

	return app
}

// vpnBlocked applies the tenant's VPN gate, writing the denial when it
// trips
func (s *Server) vpnBlocked(c *gin.Context, req *clientRequest, app *database.Application) bool {
	if app.VPNBlockEnabled && s.guard != nil && s.guard.IsVPN(c.Request.Context(), app.ID, c.ClientIP()) {
		s.fail(c, req, app, nil, app.Messages.VPNBlocked)
		return true
	}
	return false
}

// opInit opens a fresh unvalidated session and returns app metadata.
// Version and hash gates run here only, ahead of the VPN gate: a stale
// or tampered binary learns that before anything else.
func (s *Server) opInit(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	if app.Version != "" && req.Ver != "" && req.Ver != app.Version {
		payload := gin.H{"success": false, "message": "invalidver"}
		if app.DownloadURL != nil {
			payload["download"] = *app.DownloadURL
		}
		s.respond(c, req, app, nil, http.StatusBadRequest, payload)
		return
	}

	if app.HashCheckEnabled && app.FileHash != nil && req.Hash != *app.FileHash {
		s.fail(c, req, app, nil, app.Messages.HashCheckFail)
		return
	}

	if s.vpnBlocked(c, req, app) {
		return
	}

	ip := c.ClientIP()
	sess, err := s.sessions.Open(ctx, app.ID, &ip, app.SessionExpiry())
	if err != nil {
		s.log.WithError(err).Error("session open failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	numUsers, _ := s.repo.CountAppUsers(ctx, app.ID)
	numKeys, _ := s.repo.CountLicenses(ctx, app.ID)
	numOnline, _ := s.sessions.CountOnline(ctx, app.ID)

	info := appInfo{
		NumUsers:       numUsers,
		NumOnlineUsers: numOnline,
		NumKeys:        numKeys,
		Version:        app.Version,
	}
	if app.PanelURL != nil {
		info.CustomerPanelLink = *app.PanelURL
	}
	if app.DownloadURL != nil {
		info.DownloadLink = *app.DownloadURL
	}

	extra := gin.H{
		"sessionid": sess.SessionID,
		"appinfo":   info,
	}
	if req.encrypted() {
		// Enhanced-security clients decrypt this response with the app
		// secret, then switch to the session key for everything after
		extra["enckey"] = sess.EncryptionKey
	}

	s.ok(c, req, app, nil, "Initialized", extra)
}

// opCheck reports whether the presented session is live and validated
func (s *Server) opCheck(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess, err := s.sessions.Get(ctx, app.ID, req.SessionID)
	switch {
	case err == nil && sess.IsValidated:
		s.ok(c, req, app, sess, "Valid session", nil)
	case err == nil:
		s.fail(c, req, app, sess, app.Messages.SessionUnauthed)
	case err == session.ErrExpired:
		s.fail(c, req, app, nil, "Session expired")
	case err == session.ErrNotFound:
		s.fail(c, req, app, nil, "Session not found")
	default:
		s.log.WithError(err).Error("session check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
	}
}

// requireSession fetches a live session, validated or not. Nil means the
// denial has been written.
func (s *Server) requireSession(c *gin.Context, req *clientRequest, app *database.Application) *database.Session {
	sess, err := s.sessions.Get(c.Request.Context(), app.ID, req.SessionID)
	if err != nil {
		switch err {
		case session.ErrNotFound, session.ErrExpired:
			s.fail(c, req, app, nil, "Session not found")
		default:
			s.log.WithError(err).Error("session lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		}
		return nil
	}
	return sess
}

// requireValidatedSession fetches a session that has a credential bound
func (s *Server) requireValidatedSession(c *gin.Context, req *clientRequest, app *database.Application) *database.Session {
	sess := s.requireSession(c, req, app)
	if sess == nil {
		return nil
	}
	if !sess.IsValidated {
		s.fail(c, req, app, sess, app.Messages.SessionUnauthed)
		return nil
	}
	return sess
}
