package api

import (
	"net/http"
	"time"

	"hexauth-server/internal/database"
	"hexauth-server/internal/guard"
	"hexauth-server/internal/identity"
	"hexauth-server/internal/subscription"

	"github.com/gin-gonic/gin"
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// blacklistGate denies the request when the caller's ip or hwid is
// blacklisted for this tenant. Lookup errors fail open.
func (s *Server) blacklistGate(c *gin.Context, req *clientRequest, app *database.Application) bool {
	listed, err := s.guard.IsBlacklisted(c.Request.Context(), app.ID, c.ClientIP(), req.HWID)
	if err != nil {
		s.log.WithError(err).Warn("blacklist lookup failed")
		return true
	}
	if listed {
		s.fail(c, req, app, nil, app.Messages.HWIDBlacklisted)
		return false
	}
	return true
}

// enforceHWID applies the tenant hardware binding rule: first seen hwid
// is recorded, anything else must match it.
func (s *Server) enforceHWID(c *gin.Context, req *clientRequest, app *database.Application, user *database.AppUser) bool {
	if !app.HWIDCheckEnabled {
		return true
	}
	if app.ForceHWID && len(req.HWID) < app.MinHWIDLength {
		s.fail(c, req, app, nil, app.Messages.HWIDMismatch)
		return false
	}

	stored := deref(user.HWID)
	if !guard.HWIDMatches(stored, req.HWID, app.ForceHWID) {
		s.fail(c, req, app, nil, app.Messages.HWIDMismatch)
		return false
	}
	if stored == "" && req.HWID != "" {
		if err := s.identity.BindHWID(c.Request.Context(), user.ID, req.HWID); err != nil {
			s.log.WithError(err).Warn("hwid bind failed")
		}
	}
	return true
}

// subscriptionEntries converts grants to the legacy response shape
func subscriptionEntries(grants []*database.UserSubscription, now time.Time) []subscriptionEntry {
	entries := make([]subscriptionEntry, 0, len(grants))
	for _, g := range grants {
		entries = append(entries, subscriptionEntry{
			Subscription: g.SubscriptionName,
			Key:          deref(g.LicenseKey),
			Expiry:       g.ExpiresAt.Unix(),
			TimeLeft:     int64(subscription.Remaining(g, now).Seconds()),
			Level:        g.Level,
		})
	}
	return entries
}

func buildUserInfo(user *database.AppUser, grants []*database.UserSubscription, now time.Time) userInfo {
	info := userInfo{
		Username:      user.Username,
		IP:            deref(user.IPAddress),
		HWID:          deref(user.HWID),
		CreateDate:    user.CreatedAt.Unix(),
		Subscriptions: subscriptionEntries(grants, now),
	}
	if user.LastLogin != nil {
		info.LastLogin = user.LastLogin.Unix()
	}
	return info
}

// activeGrants partitions a user's entitlements and writes the denial
// when nothing is usable: paused-only users get the paused message,
// everyone else the no-active-subs message.
func (s *Server) activeGrants(c *gin.Context, req *clientRequest, app *database.Application, userID string) []*database.UserSubscription {
	all, err := s.subs.ListForUser(c.Request.Context(), userID)
	if err != nil {
		s.log.WithError(err).Error("subscription list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return nil
	}

	now := time.Now()
	var active []*database.UserSubscription
	paused := false
	for _, g := range all {
		switch {
		case g.IsPaused:
			paused = true
		case g.Active(now):
			active = append(active, g)
		}
	}

	if len(active) == 0 {
		if paused {
			s.fail(c, req, app, nil, app.Messages.PausedSub)
		} else {
			s.fail(c, req, app, nil, app.Messages.NoActiveSubs)
		}
		return nil
	}
	return active
}

// licenseDenial maps consume failures to the tenant message
func licenseDenial(app *database.Application, err error) string {
	switch err {
	case database.ErrLicenseNotFound:
		return app.Messages.KeyNotFound
	case database.ErrLicenseUsed:
		return app.Messages.KeyUsed
	case database.ErrLicenseBanned:
		return app.Messages.KeyBanned
	case database.ErrNoPlanForLevel:
		return app.Messages.NoSubLevel
	}
	return ""
}

// opRegister creates an end user: key consumed as part of registration,
// session bound to the new credential.
func (s *Server) opRegister(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireSession(c, req, app)
	if sess == nil {
		return
	}
	if !s.blacklistGate(c, req, app) {
		return
	}
	if req.Username == "" || req.Pass == "" || req.Key == "" {
		s.fail(c, req, app, sess, "Missing required fields")
		return
	}
	if app.ForceHWID && len(req.HWID) < app.MinHWIDLength {
		s.fail(c, req, app, sess, app.Messages.HWIDMismatch)
		return
	}

	// Key inspected before the account exists so a bad key never leaves
	// an orphaned user behind
	lic, err := s.licenses.Get(ctx, app.ID, req.Key)
	if err != nil {
		s.log.WithError(err).Error("license lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	switch {
	case lic == nil:
		s.fail(c, req, app, sess, app.Messages.KeyNotFound)
		return
	case lic.Status == database.LicenseBanned:
		s.fail(c, req, app, sess, app.Messages.KeyBanned)
		return
	case lic.Status == database.LicenseUsed:
		s.fail(c, req, app, sess, app.Messages.KeyUsed)
		return
	}

	if app.BlockLeakedPasswords && s.guard.IsPasswordBreached(ctx, req.Pass) {
		s.fail(c, req, app, sess, app.Messages.PasswordLeaked)
		return
	}

	ip := c.ClientIP()
	user, err := s.identity.Register(ctx, app, req.Username, req.Pass, strPtr(req.Email), strPtr(req.HWID), &ip)
	switch err {
	case nil:
	case identity.ErrUsernameTaken:
		s.fail(c, req, app, sess, app.Messages.UsernameTaken)
		return
	case identity.ErrUsernameTooShort:
		s.fail(c, req, app, sess, app.Messages.UsernameTooShort)
		return
	default:
		s.log.WithError(err).Error("user registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	grant, err := s.licenses.Redeem(ctx, app.ID, user.ID, req.Key, user.Username)
	if err != nil {
		if msg := licenseDenial(app, err); msg != "" {
			s.fail(c, req, app, sess, msg)
			return
		}
		s.log.WithError(err).Error("license redeem failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	if err := s.sessions.Validate(ctx, app.ID, sess.SessionID, user.Username); err != nil {
		s.log.WithError(err).Warn("session bind failed")
	}

	s.eventBus.PublishUserRegistered(app.OwnerID, app.Name, user.Username)
	s.eventBus.PublishLicenseRedeemed(app.OwnerID, app.Name, user.Username, grant.SubscriptionName)

	s.ok(c, req, app, sess, "Registered!", gin.H{
		"info": buildUserInfo(user, []*database.UserSubscription{grant}, time.Now()),
	})
}

// opLogin authenticates an end user by username and password
func (s *Server) opLogin(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireSession(c, req, app)
	if sess == nil {
		return
	}
	if !s.blacklistGate(c, req, app) {
		return
	}

	user, err := s.identity.Authenticate(ctx, app.ID, req.Username, req.Pass)
	switch err {
	case nil:
	case identity.ErrUserNotFound:
		s.fail(c, req, app, sess, app.Messages.UsernameNotFound)
		return
	case identity.ErrUserBanned:
		s.fail(c, req, app, sess, app.Messages.UserBanned)
		return
	case identity.ErrUserOnCooldown:
		s.fail(c, req, app, sess, "User is on cooldown")
		return
	case identity.ErrPasswordMismatch:
		s.fail(c, req, app, sess, app.Messages.PasswordMismatch)
		return
	default:
		s.log.WithError(err).Error("authentication failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	if !s.enforceHWID(c, req, app, user) {
		return
	}

	active := s.activeGrants(c, req, app, user.ID)
	if active == nil {
		return
	}

	if err := s.sessions.Validate(ctx, app.ID, sess.SessionID, user.Username); err != nil {
		s.log.WithError(err).Warn("session bind failed")
	}
	ip := c.ClientIP()
	if err := s.identity.RecordLogin(ctx, user.ID, &ip, strPtr(req.HWID)); err != nil {
		s.log.WithError(err).Warn("login record failed")
	}

	s.eventBus.PublishUserLoggedIn(app.OwnerID, app.Name, user.Username)

	s.ok(c, req, app, sess, app.Messages.LoggedIn, gin.H{
		"info": buildUserInfo(user, active, time.Now()),
	})
}

// opLicense is key-only authentication: the license key doubles as the
// credential. First use consumes the key and creates its shadow user,
// later calls behave like login.
func (s *Server) opLicense(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireSession(c, req, app)
	if sess == nil {
		return
	}
	if !s.blacklistGate(c, req, app) {
		return
	}
	if req.Key == "" {
		s.fail(c, req, app, sess, app.Messages.KeyNotFound)
		return
	}

	lic, err := s.licenses.Get(ctx, app.ID, req.Key)
	if err != nil {
		s.log.WithError(err).Error("license lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	switch {
	case lic == nil:
		s.fail(c, req, app, sess, app.Messages.KeyNotFound)
		return
	case lic.Status == database.LicenseBanned:
		s.fail(c, req, app, sess, app.Messages.KeyBanned)
		return
	}

	ip := c.ClientIP()
	user, err := s.identity.Lookup(ctx, app.ID, req.Key)
	if err != nil && err != identity.ErrUserNotFound {
		s.log.WithError(err).Error("user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	if user == nil {
		if lic.Status == database.LicenseUsed {
			s.fail(c, req, app, sess, app.Messages.KeyUsed)
			return
		}
		user, err = s.identity.Register(ctx, app, req.Key, req.Key, nil, strPtr(req.HWID), &ip)
		if err != nil {
			s.log.WithError(err).Error("shadow user creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
			return
		}
		if _, err := s.licenses.Redeem(ctx, app.ID, user.ID, req.Key, user.Username); err != nil {
			if msg := licenseDenial(app, err); msg != "" {
				s.fail(c, req, app, sess, msg)
				return
			}
			s.log.WithError(err).Error("license redeem failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
			return
		}
	} else if user.Banned {
		s.fail(c, req, app, sess, app.Messages.UserBanned)
		return
	}

	if !s.enforceHWID(c, req, app, user) {
		return
	}

	active := s.activeGrants(c, req, app, user.ID)
	if active == nil {
		return
	}

	if err := s.sessions.Validate(ctx, app.ID, sess.SessionID, user.Username); err != nil {
		s.log.WithError(err).Warn("session bind failed")
	}
	if err := s.identity.RecordLogin(ctx, user.ID, &ip, strPtr(req.HWID)); err != nil {
		s.log.WithError(err).Warn("login record failed")
	}

	s.eventBus.PublishUserLoggedIn(app.OwnerID, app.Name, user.Username)

	s.ok(c, req, app, sess, app.Messages.LoggedIn, gin.H{
		"info": buildUserInfo(user, active, time.Now()),
	})
}

// opUpgrade consumes an additional key for an existing user. The
// session's validation state is deliberately untouched.
func (s *Server) opUpgrade(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireSession(c, req, app)
	if sess == nil {
		return
	}

	user, err := s.identity.Lookup(ctx, app.ID, req.Username)
	if err == identity.ErrUserNotFound {
		s.fail(c, req, app, sess, app.Messages.UsernameNotFound)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	grant, err := s.licenses.Redeem(ctx, app.ID, user.ID, req.Key, user.Username)
	if err != nil {
		if msg := licenseDenial(app, err); msg != "" {
			s.fail(c, req, app, sess, msg)
			return
		}
		s.log.WithError(err).Error("license redeem failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	s.eventBus.PublishLicenseRedeemed(app.OwnerID, app.Name, user.Username, grant.SubscriptionName)

	s.ok(c, req, app, sess, "Upgraded successfully", nil)
}

// opChangeUsername renames the session's user after a password confirm.
// The session is closed: the credential binding is one-way, so the
// client has to log back in under the new name.
func (s *Server) opChangeUsername(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}
	cred := deref(sess.Credential)

	if _, err := s.identity.Authenticate(ctx, app.ID, cred, req.Pass); err != nil {
		s.fail(c, req, app, sess, app.Messages.PasswordMismatch)
		return
	}

	switch err := s.identity.ChangeUsername(ctx, app, cred, req.NewUsername); err {
	case nil:
	case identity.ErrUsernameTaken:
		s.fail(c, req, app, sess, app.Messages.UsernameTaken)
		return
	case identity.ErrUsernameTooShort:
		s.fail(c, req, app, sess, app.Messages.UsernameTooShort)
		return
	default:
		s.log.WithError(err).Error("username change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	if err := s.sessions.Close(ctx, app.ID, sess.SessionID); err != nil {
		s.log.WithError(err).Warn("session close failed")
	}

	s.ok(c, req, app, sess, "Username changed, please log back in", nil)
}

// opBan is a client-initiated self-ban: the tenant binary detected
// tampering and reports its own user. The hwid and ip land on the
// blacklist so a fresh registration doesn't help.
func (s *Server) opBan(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}
	cred := deref(sess.Credential)

	reason := req.Reason
	if reason == "" {
		reason = "Banned by application"
	}

	user, err := s.identity.Lookup(ctx, app.ID, cred)
	if err != nil || user == nil {
		s.fail(c, req, app, sess, app.Messages.UsernameNotFound)
		return
	}

	if err := s.identity.Ban(ctx, app.ID, cred, reason); err != nil {
		s.log.WithError(err).Error("user ban failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	ip := c.ClientIP()
	hwid := deref(user.HWID)
	if hwid == "" {
		hwid = req.HWID
	}
	if err := s.repo.AddBlacklistEntry(ctx, app.ID, &ip, strPtr(hwid), &reason); err != nil {
		s.log.WithError(err).Warn("blacklist insert failed")
	}
	if err := s.sessions.Close(ctx, app.ID, sess.SessionID); err != nil {
		s.log.WithError(err).Warn("session close failed")
	}

	s.eventBus.PublishUserBanned(app.OwnerID, app.Name, cred, reason)

	s.ok(c, req, app, sess, "Banned", nil)
}

// opCheckBlacklist reports whether the caller's ip or hwid is listed.
// Mirrors the legacy shape: success means "you are blacklisted".
func (s *Server) opCheckBlacklist(c *gin.Context, req *clientRequest, app *database.Application) {
	listed, err := s.guard.IsBlacklisted(c.Request.Context(), app.ID, c.ClientIP(), req.HWID)
	if err != nil {
		s.log.WithError(err).Warn("blacklist lookup failed")
	}
	if listed {
		s.ok(c, req, app, nil, app.Messages.HWIDBlacklisted, nil)
		return
	}
	s.fail(c, req, app, nil, "Not blacklisted")
}
