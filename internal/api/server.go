// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the agent over HTTP: the coordinator endpoint that
// resolves and dispatches requests, the chat endpoint, and the usual
// health and metrics surfaces.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/mpazaryna/tides-lab-sub004/internal/config"
	"github.com/mpazaryna/tides-lab-sub004/internal/metrics"
	"github.com/mpazaryna/tides-lab-sub004/internal/resolver"
	"github.com/mpazaryna/tides-lab-sub004/internal/store"
)

// Server hosts the agent's HTTP API.
type Server struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	records  store.RecordStore
	metrics  *metrics.Metrics
	engine   *gin.Engine
	httpSrv  *http.Server
}

// New assembles the server. records may be nil when the object store is
// disabled; the service handlers degrade to store-less responses.
func New(cfg *config.Config, res *resolver.Resolver, records store.RecordStore, m *metrics.Metrics) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		resolver: res,
		records:  records,
		metrics:  m,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestIDMiddleware(), s.requestLogMiddleware())

	engine.POST("/coordinator", s.handleCoordinator)
	engine.POST("/chat", s.handleChat)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(m.Handler()))

	s.engine = engine
	return s
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("API server listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("Shutting down API server")
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
