// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const requestIDKey = "request_id"

// requestIDMiddleware tags every request with a short ID, echoed in the
// X-Request-ID header and carried through log lines.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLogMiddleware logs one line per request and feeds the HTTP counter.
func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		s.metrics.RequestsTotal.WithLabelValues(c.FullPath(), strconv.Itoa(status)).Inc()

		entry := log.WithFields(log.Fields{
			requestIDKey: c.GetString(requestIDKey),
			"status":     status,
			"latency":    time.Since(start).Round(time.Microsecond).String(),
		})
		if status >= 500 {
			entry.Errorf("%s %s", c.Request.Method, c.Request.URL.Path)
		} else {
			entry.Infof("%s %s", c.Request.Method, c.Request.URL.Path)
		}
	}
}

// requestLogger returns a log entry bound to the request's ID.
func requestLogger(c *gin.Context) *log.Entry {
	return log.WithField(requestIDKey, c.GetString(requestIDKey))
}
