/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"linkauthority-go/internal/database"
	"linkauthority-go/internal/exchange"
	"linkauthority-go/internal/models"
	"linkauthority-go/internal/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 120 * time.Second
)

// Server is the HTTP front of the exchange.
type Server struct {
	cfg      *models.Config
	router   *gin.Engine
	server   *http.Server
	db       *database.Service
	registry *registry.Service
	exchange *exchange.Service
}

func NewServer(cfg *models.Config, db *database.Service, reg *registry.Service, exch *exchange.Service) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware())

	s := &Server{
		cfg:      cfg,
		router:   router,
		db:       db,
		registry: reg,
		exchange: exch,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	// Public embed endpoint, consumed by the widget script on seller sites.
	v1.GET("/widget/:websiteId/links", s.handleWidgetLinks)

	authed := v1.Group("")
	authed.Use(s.authMiddleware())
	{
		authed.GET("/me/balance", s.handleBalance)
		authed.GET("/me/transactions", s.handleHistory)

		authed.POST("/websites", s.handleRegisterWebsite)
		authed.GET("/websites", s.handleListWebsites)
		authed.PATCH("/websites/:websiteId", s.handleUpdateWebsite)
		authed.POST("/websites/:websiteId/verify", s.handleVerifyWebsite)

		authed.GET("/marketplace", s.handleMarketplace)
		authed.POST("/links", s.handleRequestLink)
		authed.POST("/links/:transactionId/verify", s.handleSubmitVerification)
	}

	admin := v1.Group("/admin")
	admin.Use(s.authMiddleware(), s.adminMiddleware())
	{
		admin.POST("/adjust", s.handleAdminAdjust)
		admin.POST("/reanalyze", s.handleReanalyze)
		admin.POST("/websites/:websiteId/verify", s.handleAdminVerify)
		admin.GET("/websites/:websiteId/links", s.handleAuditLinks)
		admin.GET("/users/:userId/reconcile", s.handleReconcile)
	}
}

func (s *Server) Start() error {
	zap.L().Info("Starting HTTP server", zap.String("addr", s.cfg.Server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	if _, err := s.db.GetUsers(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		zap.L().Info("Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
