package server

import (
	"time"

	"market-dashboard/src/cache"
	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

type FrameType string

const (
	FrameInitial FrameType = "INITIAL"
	FrameUpdate  FrameType = "UPDATE"
)

// Frame is the full dashboard state pushed to viewers and served as the
// snapshot. Events are sorted by symbol.
type Frame struct {
	Type          FrameType               `json:"type"`
	SessionID     string                  `json:"sessionId"`
	State         models.MConnectionState `json:"state"`
	Subscriptions []string                `json:"subscriptions"`
	Events        []models.MMarketEvent   `json:"events"`
	Stats         cache.MStats            `json:"stats"`
	Timestamp     int64                   `json:"timestamp"`
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) buildFrame(t FrameType) *Frame {
	status := s.Session.Status()
	return &Frame{
		Type:          t,
		SessionID:     status.SessionID,
		State:         status.State,
		Subscriptions: status.Desired,
		Events:        s.Session.Cache.Sorted(),
		Stats:         status.Stats,
		Timestamp:     time.Now().UnixMilli(),
	}
}
