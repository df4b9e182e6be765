// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
	"github.com/mpazaryna/tides-lab-sub004/internal/resolver"
	"github.com/mpazaryna/tides-lab-sub004/internal/store"
)

// handleCoordinator is the main entry point: it authenticates the caller,
// resolves the request to a service, dispatches it, and stamps the
// resolution metadata into the response.
//
// POST /coordinator
func (s *Server) handleCoordinator(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}

	if !s.authorize(c, raw) {
		return
	}

	// An explicit service field must name a known service; resolution only
	// fills in for absent or empty values, never for typos.
	if svcField := gjson.GetBytes(raw, "service"); svcField.Type == gjson.String && svcField.Str != "" {
		if _, known := resolver.ParseService(svcField.Str); !known {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   fmt.Sprintf("unknown service %q", svcField.Str),
			})
			return
		}
	}

	p := payload.FromJSON(raw)
	explicit, _ := p.Service()

	start := time.Now()
	res := s.resolver.Resolve(c.Request.Context(), p)
	elapsed := time.Since(start).Seconds()

	outcome := "routed"
	switch {
	case explicit != "":
		outcome = "override"
	case res.Service == resolver.ServiceChat:
		outcome = "deferred"
	}
	s.metrics.RecordResolution(res.Service.String(), outcome, elapsed)

	requestLogger(c).WithFields(map[string]any{
		"service":    res.Service,
		"confidence": res.Confidence,
		"outcome":    outcome,
	}).Info("Request resolved")

	if res.Service == resolver.ServiceChat {
		s.respondClarification(c, p, res)
		return
	}

	data, err := s.dispatch(c.Request.Context(), res.Service, p)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrRecordNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	s.respond(c, data, res)
}

// handleChat is the direct conversational endpoint. It answers in place and,
// when the message actually looks routable, includes a hint toward the
// matching service.
//
// POST /chat
func (s *Server) handleChat(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}
	if !s.authorize(c, raw) {
		return
	}

	p := payload.FromJSON(raw)
	data := gin.H{
		"service":  resolver.ServiceChat,
		"response": chatGreeting,
	}
	if _, ok := p.Text(); ok {
		// The gate already filters weak matches, so anything that resolves
		// to a real service is worth hinting at.
		if res := s.resolver.Resolve(c.Request.Context(), p); res.Service.IsReal() {
			data["hint"] = gin.H{
				"service":    res.Service,
				"confidence": res.Confidence,
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

const chatGreeting = "I can analyze your productivity, optimize your schedule, answer questions, " +
	"update preferences, or generate reports. What would you like to do?"

// authorize checks the api_key field (or a bearer token) against the
// configured key set. An empty key set disables authentication.
func (s *Server) authorize(c *gin.Context, raw []byte) bool {
	if len(s.cfg.APIKeys) == 0 {
		return true
	}

	key := gjson.GetBytes(raw, "api_key").String()
	if key == "" {
		key = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	for _, allowed := range s.cfg.APIKeys {
		if key == allowed {
			return true
		}
	}

	requestLogger(c).Warn("Rejected request with missing or invalid api key")
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid api key"})
	return false
}

// respond wraps the handler payload in the response envelope and stamps the
// resolution metadata into it.
func (s *Server) respond(c *gin.Context, data gin.H, res resolver.Result) {
	body, err := json.Marshal(gin.H{"success": true, "data": data})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to encode response"})
		return
	}

	body, _ = sjson.SetBytes(body, "data.resolution.service", res.Service.String())
	body, _ = sjson.SetBytes(body, "data.resolution.confidence", res.Confidence)
	body, _ = sjson.SetBytes(body, "data.resolution.reasoning", res.Reasoning)
	if len(res.Alternatives) > 0 {
		body, _ = sjson.SetBytes(body, "data.resolution.alternatives", res.Alternatives)
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// respondClarification answers a deferred request with the ranked
// suggestions so the client can ask the user to pick.
func (s *Server) respondClarification(c *gin.Context, p payload.Payload, res resolver.Result) {
	sug := s.resolver.Suggest(p)
	s.respond(c, gin.H{
		"service":  resolver.ServiceChat,
		"response": clarificationMessage(sug),
		"suggestion": gin.H{
			"service":      sug.Suggested,
			"confidence":   sug.Confidence,
			"reasoning":    sug.Reasoning,
			"alternatives": sug.Alternatives,
		},
	}, res)
}

func clarificationMessage(sug resolver.Suggestion) string {
	return fmt.Sprintf(
		"I'm not sure what you need yet. It looks most like a %s request. "+
			"You can also ask me to analyze productivity, optimize your schedule, "+
			"answer a question, update preferences, or build a report.",
		sug.Suggested)
}

// dispatch hands the request to the resolved service handler.
func (s *Server) dispatch(ctx context.Context, svc resolver.Service, p payload.Payload) (gin.H, error) {
	switch svc {
	case resolver.ServiceInsights:
		return s.serveInsights(ctx, p)
	case resolver.ServiceOptimize:
		return s.serveOptimize(p)
	case resolver.ServiceQuestions:
		return s.serveQuestions(p)
	case resolver.ServicePreferences:
		return s.servePreferences(ctx, p)
	case resolver.ServiceReports:
		return s.serveReports(ctx, p)
	}
	return nil, fmt.Errorf("no handler for service %q", svc)
}
