package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hexauth-server/internal/cache"
	"hexauth-server/internal/database"

	"github.com/gin-gonic/gin"
)

const chatHistoryLimit = 50

// opChatGet returns recent messages for a tenant channel
func (s *Server) opChatGet(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}

	channel, err := s.repo.GetChatChannel(ctx, app.ID, req.Channel)
	if err != nil {
		s.log.WithError(err).Error("channel lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if channel == nil {
		s.fail(c, req, app, sess, "Channel not found")
		return
	}

	msgs, err := s.repo.ListChatMessages(ctx, channel.ID, chatHistoryLimit)
	if err != nil {
		s.log.WithError(err).Error("message list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	entries := make([]chatEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, chatEntry{
			Author:    m.Author,
			Message:   m.Message,
			Timestamp: m.SentAt.Unix(),
		})
	}

	s.ok(c, req, app, sess, "Fetched messages", gin.H{"messages": entries})
}

// opChatSend appends a message, enforcing the channel's per-author
// delay. The cache stamp is the fast path; the persisted last-message
// time is authoritative when the cache is cold or down.
func (s *Server) opChatSend(c *gin.Context, req *clientRequest, app *database.Application) {
	ctx := c.Request.Context()

	sess := s.requireValidatedSession(c, req, app)
	if sess == nil {
		return
	}
	if req.Message == "" {
		s.fail(c, req, app, sess, "Missing message")
		return
	}

	channel, err := s.repo.GetChatChannel(ctx, app.ID, req.Channel)
	if err != nil {
		s.log.WithError(err).Error("channel lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}
	if channel == nil {
		s.fail(c, req, app, sess, "Channel not found")
		return
	}

	author := deref(sess.Credential)
	if channel.DelaySecs > 0 && s.chatThrottled(ctx, channel, author) {
		s.fail(c, req, app, sess, app.Messages.ChatDelay)
		return
	}

	message := truncateMessage(req.Message, maxClientMessage)

	if err := s.repo.AddChatMessage(ctx, channel.ID, author, message); err != nil {
		s.log.WithError(err).Error("message insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cache.ChatThrottleKey(channel.ID, author),
			strconv.FormatInt(time.Now().Unix(), 10),
			time.Duration(channel.DelaySecs)*time.Second)
	}

	s.ok(c, req, app, sess, "Message sent", nil)
}

func (s *Server) chatThrottled(ctx context.Context, channel *database.ChatChannel, author string) bool {
	delay := time.Duration(channel.DelaySecs) * time.Second

	if s.cache != nil {
		if stamp, err := s.cache.Get(ctx, cache.ChatThrottleKey(channel.ID, author)); err == nil && stamp != "" {
			if sent, err := strconv.ParseInt(stamp, 10, 64); err == nil {
				return time.Since(time.Unix(sent, 0)) < delay
			}
		}
	}

	last, err := s.repo.LastChatMessageAt(ctx, channel.ID, author)
	if err != nil || last == nil {
		return false
	}
	return time.Since(*last) < delay
}
