package api

import (
	"encoding/json"
	"net/http"

	"hexauth-server/internal/codec"
	"hexauth-server/internal/database"

	"github.com/gin-gonic/gin"
)

// respond writes an operation response. Plain JSON by default; when the
// client asked for the enhanced-security transport the JSON body is
// AES-256-CBC encrypted and shipped as hex. The cipher secret is the
// session encryption key once a session exists, the application secret
// for init itself (the only operation a client performs without one).
func (s *Server) respond(c *gin.Context, req *clientRequest, app *database.Application, sess *database.Session, status int, payload gin.H) {
	if req == nil || !req.encrypted() || req.IV == "" || app == nil {
		c.JSON(status, payload)
		return
	}

	secret := app.Secret
	if sess != nil && sess.EncryptionKey != "" {
		secret = sess.EncryptionKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	hexCipher, err := codec.Encrypt(string(body), secret, req.IV)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	c.Data(status, "text/plain; charset=utf-8", []byte(hexCipher))
}

// fail is the common denial shape: success=false plus a tenant message
func (s *Server) fail(c *gin.Context, req *clientRequest, app *database.Application, sess *database.Session, message string) {
	s.respond(c, req, app, sess, http.StatusBadRequest, gin.H{
		"success": false,
		"message": message,
	})
}

// ok is the common success shape; extra fields ride alongside
func (s *Server) ok(c *gin.Context, req *clientRequest, app *database.Application, sess *database.Session, message string, extra gin.H) {
	payload := gin.H{
		"success": true,
		"message": message,
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.respond(c, req, app, sess, http.StatusOK, payload)
}
