package model

import "time"

// LogKind classifies a logged request.
type LogKind string

const (
	LogKindVisitor LogKind = "visitor"
	LogKindCrawler LogKind = "crawler"
	LogKindBot     LogKind = "bot"
	LogKindAPI     LogKind = "api"
)

// RequestLog is one served request as stored in request_logs.
type RequestLog struct {
	ID             int64     `json:"id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	IPAddress      string    `json:"ip_address"`
	Route          string    `json:"route"`
	Method         string    `json:"method"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Device         string    `json:"device,omitempty"`
	Country        string    `json:"country"`
	Referrer       string    `json:"referrer,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Kind           LogKind   `json:"kind"`
}

// Truncate clips string fields to their column widths.
func (l *RequestLog) Truncate() {
	l.Route = clip(l.Route, 255)
	l.Method = clip(l.Method, 12)
	l.UserAgent = clip(l.UserAgent, 500)
	l.Device = clip(l.Device, 32)
	l.Country = clip(l.Country, 80)
	l.Referrer = clip(l.Referrer, 500)
	l.SessionID = clip(l.SessionID, 120)
	l.IPAddress = clip(l.IPAddress, 64)
	if l.IPAddress == "" {
		l.IPAddress = "0.0.0.0"
	}
	if l.Route == "" {
		l.Route = "/"
	}
	if l.Country == "" {
		l.Country = "Unknown"
	}
}

// DailyVisits is a per-day visitor count for the dashboard chart.
type DailyVisits struct {
	Day    time.Time `json:"day"`
	Visits int64     `json:"visits"`
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
