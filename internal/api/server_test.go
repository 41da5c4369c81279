package api

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"hexauth-server/config"
	"hexauth-server/internal/auth"
	"hexauth-server/internal/database"
	"hexauth-server/internal/events"
	"hexauth-server/internal/guard"
	"hexauth-server/internal/identity"
	"hexauth-server/internal/license"
	"hexauth-server/internal/session"
	"hexauth-server/internal/subscription"
	"hexauth-server/internal/webhook"
)

var errCacheMiss = errors.New("cache miss")

// memStore is an in-memory backing store satisfying every persistence
// interface the server wires together.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	apps    map[string]*database.Application // ownerID/name
	users   map[string]*database.AppUser     // appID/username
	lics    map[string]*database.License     // appID/key
	plans   map[string]*database.Subscription
	grants  map[string][]*database.UserSubscription // userID
	sess    map[string]*database.Session            // appID/sid
	black   []database.BlacklistEntry
	white   map[string]bool
	appVars map[string]*database.AppVariable  // appID/name
	usrVars map[string]*database.UserVariable // userID/name
	files   map[string]*database.File
	hooks   map[string]*database.WebhookEndpoint
	chans   map[string]*database.ChatChannel
	msgs    map[string][]*database.ChatMessage
	logs    []*database.UserLog
	accts   map[string]*database.Account
}

func newMemStore() *memStore {
	return &memStore{
		apps:    make(map[string]*database.Application),
		users:   make(map[string]*database.AppUser),
		lics:    make(map[string]*database.License),
		plans:   make(map[string]*database.Subscription),
		grants:  make(map[string][]*database.UserSubscription),
		sess:    make(map[string]*database.Session),
		white:   make(map[string]bool),
		appVars: make(map[string]*database.AppVariable),
		usrVars: make(map[string]*database.UserVariable),
		files:   make(map[string]*database.File),
		hooks:   make(map[string]*database.WebhookEndpoint),
		chans:   make(map[string]*database.ChatChannel),
		msgs:    make(map[string][]*database.ChatMessage),
		accts:   make(map[string]*database.Account),
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("row-%d", m.nextID)
}

func key2(a, b string) string { return a + "/" + b }

// seedApp installs a ready-to-use tenant
func (m *memStore) seedApp(ownerID, name string) *database.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := &database.Application{
		ID:                m.id(),
		OwnerID:           ownerID,
		Name:              name,
		Secret:            "test-app-secret",
		Enabled:           true,
		Version:           "1.0",
		SessionExpirySecs: 3600,
		MinUsernameLength: 3,
		LicenseMask:       "****-****",
		CooldownSecs:      604800,
		Messages:          database.DefaultMessages(),
		CreatedAt:         time.Now(),
	}
	m.apps[key2(ownerID, name)] = app
	return app
}

func (m *memStore) seedPlan(appID, name, level string) *database.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan := &database.Subscription{ID: m.id(), ApplicationID: appID, Name: name, Level: level}
	m.plans[key2(appID, level)] = plan
	return plan
}

func (m *memStore) seedLicense(appID, key, level string, expiresSecs int64) *database.License {
	m.mu.Lock()
	defer m.mu.Unlock()
	lic := &database.License{
		ID: m.id(), ApplicationID: appID, Key: key, Level: level,
		Status: database.LicenseNotUsed, ExpiresSecs: expiresSecs, GeneratedAt: time.Now(),
	}
	m.lics[key2(appID, key)] = lic
	return lic
}

// Directory

func (m *memStore) GetApplication(_ context.Context, ownerID, name string) (*database.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apps[key2(ownerID, name)], nil
}

func (m *memStore) CreateApplication(_ context.Context, ownerID, name, secret string) (*database.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[key2(ownerID, name)]; ok {
		return nil, database.ErrDuplicate
	}
	app := &database.Application{
		ID: m.id(), OwnerID: ownerID, Name: name, Secret: secret,
		Enabled: true, SessionExpirySecs: 21600, MinUsernameLength: 3,
		LicenseMask: "******-******", CooldownSecs: 604800,
		Messages: database.DefaultMessages(), CreatedAt: time.Now(),
	}
	m.apps[key2(ownerID, name)] = app
	return app, nil
}

func (m *memStore) ListApplicationsByOwner(_ context.Context, ownerID string) ([]*database.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Application
	for _, app := range m.apps {
		if app.OwnerID == ownerID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *memStore) UpdateApplicationSettings(_ context.Context, app *database.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[key2(app.OwnerID, app.Name)] = app
	return nil
}

func (m *memStore) CountAppUsers(_ context.Context, appID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.ApplicationID == appID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountLicenses(_ context.Context, appID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.lics {
		if l.ApplicationID == appID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetAppVariable(_ context.Context, appID, name string) (*database.AppVariable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appVars[key2(appID, name)], nil
}

func (m *memStore) SetAppVariable(_ context.Context, appID, name, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appVars[key2(appID, name)] = &database.AppVariable{ID: m.id(), ApplicationID: appID, Name: name, Data: data}
	return nil
}

func (m *memStore) GetUserVariable(_ context.Context, userID, appID, name string) (*database.UserVariable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usrVars[key2(userID, name)], nil
}

func (m *memStore) SetUserVariable(_ context.Context, userID, appID, name, data string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.usrVars[key2(userID, name)]; ok {
		if v.ReadOnly {
			return false, nil
		}
		v.Data = data
		return true, nil
	}
	m.usrVars[key2(userID, name)] = &database.UserVariable{
		ID: m.id(), UserID: userID, ApplicationID: appID, Name: name, Data: data,
	}
	return true, nil
}

func (m *memStore) GetFile(_ context.Context, appID, fileID string) (*database.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[key2(appID, fileID)], nil
}

func (m *memStore) CreateFile(_ context.Context, appID, fileID, url string) (*database.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &database.File{ID: m.id(), ApplicationID: appID, FileID: fileID, URL: url}
	m.files[key2(appID, fileID)] = f
	return f, nil
}

func (m *memStore) GetWebhookEndpoint(_ context.Context, appID, webhookID string) (*database.WebhookEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hooks[key2(appID, webhookID)], nil
}

func (m *memStore) CreateWebhookEndpoint(_ context.Context, appID, webhookID, url string, userAgent *string) (*database.WebhookEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := &database.WebhookEndpoint{ID: m.id(), ApplicationID: appID, WebhookID: webhookID, URL: url, UserAgent: userAgent}
	m.hooks[key2(appID, webhookID)] = h
	return h, nil
}

func (m *memStore) GetChatChannel(_ context.Context, appID, name string) (*database.ChatChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chans[key2(appID, name)], nil
}

func (m *memStore) CreateChatChannel(_ context.Context, appID, name string, delaySecs int) (*database.ChatChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chans[key2(appID, name)]; ok {
		return nil, database.ErrDuplicate
	}
	ch := &database.ChatChannel{ID: m.id(), ApplicationID: appID, Name: name, DelaySecs: delaySecs}
	m.chans[key2(appID, name)] = ch
	return ch, nil
}

func (m *memStore) ListChatMessages(_ context.Context, channelID string, limit int) ([]*database.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.msgs[channelID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *memStore) LastChatMessageAt(_ context.Context, channelID, author string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	for _, msg := range m.msgs[channelID] {
		if msg.Author == author {
			t := msg.SentAt
			last = &t
		}
	}
	return last, nil
}

func (m *memStore) AddChatMessage(_ context.Context, channelID, author, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[channelID] = append(m.msgs[channelID], &database.ChatMessage{
		ID: m.id(), ChannelID: channelID, Author: author, Message: message, SentAt: time.Now(),
	})
	return nil
}

func (m *memStore) AddUserLog(_ context.Context, appID string, credential, pcUser *string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, &database.UserLog{
		ID: m.id(), ApplicationID: appID, Credential: credential, PCUser: pcUser,
		Message: message, CreatedAt: time.Now(),
	})
	return nil
}

func (m *memStore) ListUserLogs(_ context.Context, appID string, limit int) ([]*database.UserLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.UserLog
	for _, l := range m.logs {
		if l.ApplicationID == appID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) AddBlacklistEntry(_ context.Context, appID string, ip, hwid, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.black = append(m.black, database.BlacklistEntry{
		ID: m.id(), ApplicationID: appID, IPAddress: ip, HWID: hwid, Reason: reason,
	})
	return nil
}

func (m *memStore) AddWhitelistEntry(_ context.Context, appID, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.white[key2(appID, ip)] = true
	return nil
}

func (m *memStore) GetPlatformStats(_ context.Context) (*database.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &database.PlatformStats{
		Applications: len(m.apps),
		Users:        len(m.users),
		Licenses:     len(m.lics),
		Accounts:     len(m.accts),
	}, nil
}

// guard.Store

func (m *memStore) IsBlacklisted(_ context.Context, appID, ip, hwid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.black {
		if e.ApplicationID != appID {
			continue
		}
		if e.IPAddress != nil && ip != "" && *e.IPAddress == ip {
			return true, nil
		}
		if e.HWID != nil && hwid != "" && *e.HWID == hwid {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) IsWhitelisted(_ context.Context, appID, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.white[key2(appID, ip)], nil
}

// identity.Store

func (m *memStore) CreateAppUser(_ context.Context, appID, username, passwordHash string, email, hwid, ip *string) (*database.AppUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[key2(appID, username)]; ok {
		return nil, database.ErrDuplicate
	}
	u := &database.AppUser{
		ID: m.id(), ApplicationID: appID, Username: username, PasswordHash: passwordHash,
		Email: email, HWID: hwid, IPAddress: ip, CreatedAt: time.Now(),
	}
	m.users[key2(appID, username)] = u
	return u, nil
}

func (m *memStore) GetAppUser(_ context.Context, appID, username string) (*database.AppUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[key2(appID, username)], nil
}

func (m *memStore) findUser(userID string) *database.AppUser {
	for _, u := range m.users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (m *memStore) TouchUserLogin(_ context.Context, userID string, ip, hwid *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		now := time.Now()
		u.LastLogin = &now
		if ip != nil {
			u.IPAddress = ip
		}
		if hwid != nil {
			u.HWID = hwid
		}
	}
	return nil
}

func (m *memStore) SetUserHWID(_ context.Context, userID, hwid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		u.HWID = &hwid
	}
	return nil
}

func (m *memStore) ResetUserHWID(_ context.Context, userID string, cooldownUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		u.HWID = nil
		u.CooldownUntil = &cooldownUntil
	}
	return nil
}

func (m *memStore) RenameAppUser(_ context.Context, userID, newUsername string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.findUser(userID)
	if u == nil {
		return nil
	}
	if _, ok := m.users[key2(u.ApplicationID, newUsername)]; ok {
		return database.ErrDuplicate
	}
	delete(m.users, key2(u.ApplicationID, u.Username))
	u.Username = newUsername
	m.users[key2(u.ApplicationID, newUsername)] = u
	return nil
}

func (m *memStore) SetUserPassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *memStore) BanAppUser(_ context.Context, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		u.Banned = true
		u.BanReason = &reason
	}
	return nil
}

func (m *memStore) UnbanAppUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findUser(userID); u != nil {
		u.Banned = false
		u.BanReason = nil
	}
	return nil
}

// license.Store

func (m *memStore) CreateLicense(_ context.Context, appID, key, level string, expiresSecs int64, note, generatedBy *string) (*database.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lics[key2(appID, key)]; ok {
		return nil, database.ErrDuplicate
	}
	lic := &database.License{
		ID: m.id(), ApplicationID: appID, Key: key, Level: level,
		Status: database.LicenseNotUsed, ExpiresSecs: expiresSecs,
		Note: note, GeneratedBy: generatedBy, GeneratedAt: time.Now(),
	}
	m.lics[key2(appID, key)] = lic
	return lic, nil
}

func (m *memStore) GetLicense(_ context.Context, appID, key string) (*database.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lics[key2(appID, key)], nil
}

func (m *memStore) ListLicenses(_ context.Context, appID string) ([]*database.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.License
	for _, l := range m.lics {
		if l.ApplicationID == appID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) DeleteLicense(_ context.Context, appID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lics, key2(appID, key))
	return nil
}

func (m *memStore) RedeemLicense(_ context.Context, appID, userID, key, credential string) (*database.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lic, ok := m.lics[key2(appID, key)]
	if !ok {
		return nil, database.ErrLicenseNotFound
	}
	switch lic.Status {
	case database.LicenseBanned:
		return nil, database.ErrLicenseBanned
	case database.LicenseUsed:
		return nil, database.ErrLicenseUsed
	}
	plan, ok := m.plans[key2(appID, lic.Level)]
	if !ok {
		return nil, database.ErrNoPlanForLevel
	}

	now := time.Now()
	lic.Status = database.LicenseUsed
	lic.UsedAt = &now
	lic.UsedBy = &credential

	grant := &database.UserSubscription{
		ID: m.id(), UserID: userID, SubscriptionID: plan.ID, ApplicationID: appID,
		ExpiresAt:  now.Add(time.Duration(lic.ExpiresSecs) * time.Second),
		LicenseKey: &key, CreatedAt: now,
		SubscriptionName: plan.Name, Level: plan.Level,
	}
	m.grants[userID] = append(m.grants[userID], grant)
	return grant, nil
}

func (m *memStore) BanLicense(_ context.Context, appID, key, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lic, ok := m.lics[key2(appID, key)]
	if !ok {
		return database.ErrLicenseNotFound
	}
	lic.Status = database.LicenseBanned
	lic.BanReason = &reason
	for userID, grants := range m.grants {
		kept := grants[:0]
		for _, g := range grants {
			if g.ApplicationID == appID && g.LicenseKey != nil && *g.LicenseKey == key {
				continue
			}
			kept = append(kept, g)
		}
		m.grants[userID] = kept
	}
	return nil
}

func (m *memStore) UnbanLicense(_ context.Context, appID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lic, ok := m.lics[key2(appID, key)]
	if !ok || lic.Status != database.LicenseBanned {
		return database.ErrLicenseNotFound
	}
	lic.BanReason = nil
	if lic.UsedBy == nil {
		lic.Status = database.LicenseNotUsed
		return nil
	}
	lic.Status = database.LicenseUsed
	user := m.users[key2(appID, *lic.UsedBy)]
	plan := m.plans[key2(appID, lic.Level)]
	if user == nil || plan == nil {
		return nil
	}
	m.grants[user.ID] = append(m.grants[user.ID], &database.UserSubscription{
		ID: m.id(), UserID: user.ID, SubscriptionID: plan.ID, ApplicationID: appID,
		ExpiresAt:  lic.UsedAt.Add(time.Duration(lic.ExpiresSecs) * time.Second),
		LicenseKey: &key, CreatedAt: time.Now(),
		SubscriptionName: plan.Name, Level: plan.Level,
	})
	return nil
}

// subscription.Store

func (m *memStore) CreateSubscription(_ context.Context, appID, name, level string) (*database.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[key2(appID, level)]; ok {
		return nil, database.ErrDuplicate
	}
	plan := &database.Subscription{ID: m.id(), ApplicationID: appID, Name: name, Level: level}
	m.plans[key2(appID, level)] = plan
	return plan, nil
}

func (m *memStore) ListSubscriptions(_ context.Context, appID string) ([]*database.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Subscription
	for _, p := range m.plans {
		if p.ApplicationID == appID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListUserSubscriptions(_ context.Context, userID string) ([]*database.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[userID], nil
}

func (m *memStore) findGrant(grantID string) *database.UserSubscription {
	for _, gs := range m.grants {
		for _, g := range gs {
			if g.ID == grantID {
				return g
			}
		}
	}
	return nil
}

func (m *memStore) PauseUserSubscription(_ context.Context, appID, grantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.findGrant(grantID)
	if g == nil || g.ApplicationID != appID || g.IsPaused || !time.Now().Before(g.ExpiresAt) {
		return false, nil
	}
	g.IsPaused = true
	g.PausedRemainingSecs = int64(time.Until(g.ExpiresAt).Seconds())
	return true, nil
}

func (m *memStore) UnpauseUserSubscription(_ context.Context, appID, grantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.findGrant(grantID)
	if g == nil || g.ApplicationID != appID || !g.IsPaused {
		return false, nil
	}
	g.IsPaused = false
	g.ExpiresAt = time.Now().Add(time.Duration(g.PausedRemainingSecs) * time.Second)
	g.PausedRemainingSecs = 0
	return true, nil
}

func (m *memStore) DeleteUserSubscription(_ context.Context, appID, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, gs := range m.grants {
		for i, g := range gs {
			if g.ID == grantID && g.ApplicationID == appID {
				m.grants[userID] = append(gs[:i], gs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

// session.Store

func (m *memStore) CreateSession(_ context.Context, appID, sessionID, encryptionKey string, ip *string, expiresAt time.Time) (*database.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sess[key2(appID, sessionID)]; ok {
		return nil, database.ErrDuplicate
	}
	s := &database.Session{
		ID: m.id(), SessionID: sessionID, ApplicationID: appID,
		EncryptionKey: encryptionKey, IPAddress: ip, ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	m.sess[key2(appID, sessionID)] = s
	return s, nil
}

func (m *memStore) GetSession(_ context.Context, appID, sessionID string) (*database.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess[key2(appID, sessionID)], nil
}

func (m *memStore) ValidateSession(_ context.Context, appID, sessionID, credential string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sess[key2(appID, sessionID)]
	if !ok || s.Expired(time.Now()) {
		return false, nil
	}
	if s.IsValidated && (s.Credential == nil || *s.Credential != credential) {
		return false, nil
	}
	s.IsValidated = true
	s.Credential = &credential
	return true, nil
}

func (m *memStore) DeleteSession(_ context.Context, appID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, key2(appID, sessionID))
	return nil
}

func (m *memStore) DeleteExpiredSessions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for k, s := range m.sess {
		if s.Expired(now) {
			delete(m.sess, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountOnlineSessions(_ context.Context, appID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now()
	for _, s := range m.sess {
		if s.ApplicationID == appID && s.IsValidated && !s.Expired(now) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListOnlineCredentials(_ context.Context, appID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	now := time.Now()
	for _, s := range m.sess {
		if s.ApplicationID == appID && s.IsValidated && s.Credential != nil && !s.Expired(now) {
			out = append(out, *s.Credential)
		}
	}
	return out, nil
}

// auth.Store

func (m *memStore) CreateAccount(_ context.Context, username, email, passwordHash, ownerID string) (*database.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accts[username]; ok {
		return nil, database.ErrDuplicate
	}
	acct := &database.Account{
		ID: m.id(), Username: username, Email: email, PasswordHash: passwordHash,
		OwnerID: ownerID, Role: "owner", CreatedAt: time.Now(),
	}
	m.accts[username] = acct
	return acct, nil
}

func (m *memStore) GetAccountByUsername(_ context.Context, username string) (*database.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accts[username], nil
}

func (m *memStore) GetAccountByID(_ context.Context, id string) (*database.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetAccountByOwnerID(_ context.Context, ownerID string) (*database.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accts {
		if a.OwnerID == ownerID {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memStore) SetAccountPassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accts {
		if a.ID == id {
			a.PasswordHash = passwordHash
		}
	}
	return nil
}

func (m *memStore) TouchAccountLogin(_ context.Context, id, ip string) error {
	return nil
}

// fakeCounters satisfies guard.Counters with a permanently cold cache
type fakeCounters struct{}

func (fakeCounters) Get(_ context.Context, _ string) (string, error) { return "", errCacheMiss }
func (fakeCounters) Set(_ context.Context, _ string, _ interface{}, _ time.Duration) error {
	return nil
}
func (fakeCounters) IncrementWindow(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, errCacheMiss
}

type testEnv struct {
	server *Server
	store  *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvGuard(t, config.GuardConfig{})
}

func newTestEnvGuard(t *testing.T, guardCfg config.GuardConfig) *testEnv {
	t.Helper()
	store := newMemStore()

	rlCfg := config.RateLimitConfig{}
	g := guard.New(store, fakeCounters{}, guardCfg, rlCfg)

	jwtMgr := auth.NewJWTManager("test-jwt-secret", time.Hour)
	authSvc := auth.NewService(store, jwtMgr, auth.NewPasswordManager(4, 8))

	sender := webhook.NewSender()
	bus := events.NewEventBus()
	sender.AttachBus(bus, store)

	deps := Deps{
		Repo:          store,
		Guard:         g,
		Identity:      identity.NewService(store),
		Licenses:      license.NewService(store),
		Subscriptions: subscription.NewService(store),
		Sessions:      session.NewManager(store),
		AuthService:   authSvc,
		JWTManager:    jwtMgr,
		Sender:        sender,
		EventBus:      bus,
	}

	srv := NewServer(config.ServerConfig{ProductionMode: true}, deps)
	return &testEnv{server: srv, store: store}
}

// post sends a legacy wire request and decodes nothing; callers inspect
// the recorder
func (e *testEnv) post(params map[string]string) *httptest.ResponseRecorder {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req := httptest.NewRequest("POST", "/api/v1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}
