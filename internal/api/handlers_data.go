package api

import (
	"net/http"
	"unicode/utf8"

	"hexauth-server/internal/database"
	"hexauth-server/internal/identity"

	"github.com/gin-gonic/gin"
)

const maxClientMessage = 275

// truncateMessage caps client input at max bytes, backing up so a
// multi-byte rune is never split
func truncateMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// opLog appends a client diagnostic line. Tenants with a webhook get
// the line there via the event bus; everyone else gets it persisted.
func (s *Server) opLog(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}
	if req.Message == "" {
		s.fail(c, req, app, sess, "Missing message")
		return
	}

	message := truncateMessage(req.Message, maxClientMessage)

	cred := deref(sess.Credential)
	if app.WebhookURL == nil || *app.WebhookURL == "" {
		if err := s.repo.AddUserLog(ctx, app.ID, sess.Credential, strPtr(req.PCUser), message); err != nil {
			s.log.WithError(err).Error("log append failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
			return
		}
	}

	s.eventBus.PublishLogAppended(app.OwnerID, app.Name, cred, message)

	s.ok(c, req, app, sess, "Logged", nil)
}

// opVar reads a tenant-wide variable. The legacy protocol returns the
// value in the message slot.
func (s *Server) opVar(c *gin.Context, req *clientRequest, app *database.Application) {
	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}

	v, err := s.repo.GetAppVariable(c.Request.Context(), app.ID, req.VarID)
	if err != nil {
		s.log.WithError(err).Error("variable lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if v == nil {
		s.fail(c, req, app, sess, "Invalid variable name")
		return
	}

	s.ok(c, req, app, sess, v.Data, nil)
}

// resolveSessionUser maps the bound credential back to its user row
func (s *Server) resolveSessionUser(c *gin.Context, req *clientRequest, app *database.Application, sess *database.Session) *database.AppUser {
	user, err := s.identity.Lookup(c.Request.Context(), app.ID, deref(sess.Credential))
	if err == identity.ErrUserNotFound {
		s.fail(c, req, app, sess, app.Messages.UsernameNotFound)
		return nil
	}
	if err != nil {
		s.log.WithError(err).Error("user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return nil
	}
	return user
}

// opGetVar reads a per-user variable
func (s *Server) opGetVar(c *gin.Context, req *clientRequest, app *database.Application) {
	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}
	user := s.resolveSessionUser(c, req, app, sess)
	if user == nil {
		return
	}

	v, err := s.repo.GetUserVariable(c.Request.Context(), user.ID, app.ID, req.Var)
	if err != nil {
		s.log.WithError(err).Error("variable lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if v == nil {
		s.fail(c, req, app, sess, "Invalid variable name")
		return
	}

	s.ok(c, req, app, sess, v.Data, gin.H{"response": v.Data})
}

// opSetVar writes a per-user variable unless the tenant marked the slot
// read only
func (s *Server) opSetVar(c *gin.Context, req *clientRequest, app *database.Application) {
	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}
	user := s.resolveSessionUser(c, req, app, sess)
	if user == nil {
		return
	}
	if req.Var == "" {
		s.fail(c, req, app, sess, "Missing variable name")
		return
	}

	written, err := s.repo.SetUserVariable(c.Request.Context(), user.ID, app.ID, req.Var, req.Data)
	if err != nil {
		s.log.WithError(err).Error("variable write failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if !written {
		s.fail(c, req, app, sess, "Variable is read-only")
		return
	}

	s.ok(c, req, app, sess, "Variable set", nil)
}

// opFile returns the download location behind a tenant file id
func (s *Server) opFile(c *gin.Context, req *clientRequest, app *database.Application) {
	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}

	f, err := s.repo.GetFile(c.Request.Context(), app.ID, req.FileID)
	if err != nil {
		s.log.WithError(err).Error("file lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if f == nil {
		s.fail(c, req, app, sess, "Invalid file id")
		return
	}

	s.ok(c, req, app, sess, "Downloaded", gin.H{"url": f.URL})
}

// opWebhook relays a tenant-registered webhook server side so the
// endpoint URL never ships inside the client binary
func (s *Server) opWebhook(c *gin.Context, req *clientRequest, app *database.Application) {
	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}

	endpoint, err := s.repo.GetWebhookEndpoint(c.Request.Context(), app.ID, req.WebhookID)
	if err != nil {
		s.log.WithError(err).Error("webhook lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if endpoint == nil {
		s.fail(c, req, app, sess, "Invalid webhook id")
		return
	}

	body, err := s.sender.Proxy(c.Request.Context(), endpoint, req.Params)
	if err != nil {
		s.fail(c, req, app, sess, "Webhook request failed")
		return
	}

	s.ok(c, req, app, sess, body, nil)
}

// opFetchOnline lists the usernames with a live validated session
func (s *Server) opFetchOnline(c *gin.Context, req *clientRequest, app *database.Application) {
	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}

	creds, err := s.sessions.OnlineCredentials(c.Request.Context(), app.ID)
	if err != nil {
		s.log.WithError(err).Error("online list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	users := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		users = append(users, gin.H{"credential": cred})
	}

	s.ok(c, req, app, sess, "Fetched online users", gin.H{"users": users})
}
