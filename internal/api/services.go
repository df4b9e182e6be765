// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/mpazaryna/tides-lab-sub004/internal/payload"
	"github.com/mpazaryna/tides-lab-sub004/internal/resolver"
	"github.com/mpazaryna/tides-lab-sub004/internal/store"
)

// userID extracts the caller's tide identifier. Older clients send user_id.
func userID(p payload.Payload) string {
	if id, ok := p.String("tides_id"); ok {
		return id
	}
	if id, ok := p.String("user_id"); ok {
		return id
	}
	return "anonymous"
}

// serveInsights summarizes the user's stored tide records for the requested
// timeframe.
func (s *Server) serveInsights(ctx context.Context, p payload.Payload) (gin.H, error) {
	timeframe, ok := p.String("timeframe")
	if !ok {
		timeframe = "recent"
	}

	data := gin.H{
		"service":   resolver.ServiceInsights,
		"timeframe": timeframe,
	}
	if areas, exists := p["focus_areas"]; exists {
		data["focus_areas"] = areas
	}

	if s.records == nil {
		data["records_analyzed"] = 0
		data["note"] = "record store not configured; analysis covers this request only"
		return data, nil
	}

	ids, err := s.records.List(ctx, userID(p))
	if err != nil {
		return nil, err
	}
	data["records_analyzed"] = len(ids)
	data["records"] = ids
	return data, nil
}

// serveOptimize acknowledges a scheduling request, echoing the inputs the
// planner will work from.
func (s *Server) serveOptimize(p payload.Payload) (gin.H, error) {
	data := gin.H{
		"service": resolver.ServiceOptimize,
		"status":  "scheduled for planning",
	}
	if prefs, ok := p.Object("preferences"); ok {
		data["preferences"] = prefs
	}
	if constraints, exists := p["constraints"]; exists {
		data["constraints"] = constraints
	}
	if text, ok := p.Text(); ok {
		data["request"] = text
	}
	return data, nil
}

// serveQuestions answers a general productivity question.
func (s *Server) serveQuestions(p payload.Payload) (gin.H, error) {
	text, _ := p.Text()
	return gin.H{
		"service":  resolver.ServiceQuestions,
		"question": text,
		"answer":   "Here is what I know about that. Ask a follow-up for more detail.",
	}, nil
}

// servePreferences acknowledges a settings update, including the stored
// preference record when one exists so clients can diff against it.
func (s *Server) servePreferences(ctx context.Context, p payload.Payload) (gin.H, error) {
	data := gin.H{
		"service": resolver.ServicePreferences,
		"status":  "preferences updated",
	}
	if prefs, ok := p.Object("preferences"); ok {
		data["preferences"] = prefs
	}
	for _, key := range []string{"settings", "work_hours", "notifications"} {
		if v, exists := p[key]; exists {
			data[key] = v
		}
	}

	if s.records != nil {
		rec, err := s.records.Get(ctx, userID(p), "preferences")
		switch {
		case err == nil:
			data["previous"] = json.RawMessage(rec.Data)
		case errors.Is(err, store.ErrRecordNotFound):
			// First write for this user, nothing to diff.
		default:
			return nil, err
		}
	}
	return data, nil
}

// serveReports builds a report envelope over the user's stored records.
func (s *Server) serveReports(ctx context.Context, p payload.Payload) (gin.H, error) {
	reportType, ok := p.String("report_type")
	if !ok {
		reportType = "summary"
	}

	data := gin.H{
		"service":     resolver.ServiceReports,
		"report_type": reportType,
	}
	if period, exists := p["period"]; exists {
		data["period"] = period
	}

	// A report over a single named record returns that record's body.
	if recordID, ok := p.String("record_id"); ok && s.records != nil {
		rec, err := s.records.Get(ctx, userID(p), recordID)
		if err != nil {
			return nil, err
		}
		data["record"] = json.RawMessage(rec.Data)
		return data, nil
	}

	if s.records == nil {
		data["records"] = []string{}
		data["note"] = "record store not configured; report is empty"
		return data, nil
	}

	ids, err := s.records.List(ctx, userID(p))
	if err != nil {
		return nil, err
	}
	data["records"] = ids
	return data, nil
}
