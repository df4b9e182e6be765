// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resolver implements the request intent resolver: deterministic
// rule matching, confidence scoring, an optional model-backed classifier,
// and the confidence gate that decides between auto-routing and deferring
// to clarification.
package resolver

// Service identifies one of the fixed downstream capabilities a request
// can be routed to. ServiceChat is the clarification sentinel: it is a
// valid resolution target but never a real backend service.
type Service string

const (
	ServiceInsights    Service = "insights"
	ServiceOptimize    Service = "optimize"
	ServiceQuestions   Service = "questions"
	ServicePreferences Service = "preferences"
	ServiceReports     Service = "reports"
	ServiceChat        Service = "chat"
)

// realServices lists the five routable services in their canonical
// priority order. ServiceChat is deliberately absent: ranking and
// suggestion never propose clarification as a destination.
var realServices = []Service{
	ServiceReports,
	ServicePreferences,
	ServiceOptimize,
	ServiceInsights,
	ServiceQuestions,
}

// RealServices returns the five routable services in priority order.
func RealServices() []Service {
	out := make([]Service, len(realServices))
	copy(out, realServices)
	return out
}

// ParseService maps a label to a known Service. It accepts the six
// category names the classifier may emit, chat included.
func ParseService(s string) (Service, bool) {
	switch Service(s) {
	case ServiceInsights, ServiceOptimize, ServiceQuestions,
		ServicePreferences, ServiceReports, ServiceChat:
		return Service(s), true
	}
	return "", false
}

func (s Service) String() string {
	return string(s)
}

// IsReal reports whether the service is a routable backend target
// rather than the chat clarification sentinel.
func (s Service) IsReal() bool {
	return s != ServiceChat && s != ""
}
