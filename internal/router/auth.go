package router

import (
	"net/http"
	"strings"

	"wholesale_catalog/internal/middleware"
	"wholesale_catalog/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func login(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil {
			fail(c, http.StatusBadRequest, "No se recibieron datos")
			return
		}
		req.Username = strings.TrimSpace(req.Username)

		hash, known := d.Config.AdminUsers[req.Username]
		if !known || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			logger.Warn(ctx, "admin login rejected", "username", req.Username, "ip", c.ClientIP())
			fail(c, http.StatusUnauthorized, "Usuario o contraseña incorrectos")
			return
		}

		sess, err := d.Sessions.Create(ctx, req.Username)
		if err != nil {
			logger.Error(ctx, "create session failed", "error", err)
			fail(c, http.StatusInternalServerError, "Error interno del servidor")
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, sess.Token, int(d.Config.SessionTTL.Seconds()), "/", "", false, true)
		logger.Info(ctx, "admin logged in", "username", req.Username)
		ok(c, gin.H{"usuario": req.Username})
	}
}

func logout(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
			if err := d.Sessions.Delete(c.Request.Context(), token); err != nil {
				logger.Warn(c.Request.Context(), "delete session failed", "error", err)
			}
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", false, true)
		ok(c, nil)
	}
}

func dashboard(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := d.Products.Stats(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "dashboard stats")
			return
		}
		ok(c, gin.H{
			"usuario":      c.GetString(middleware.AdminUserKey),
			"estadisticas": stats,
		})
	}
}
