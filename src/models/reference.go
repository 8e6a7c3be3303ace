package models

// -----------------------------------------------------------------------------
// Reference data served by the control plane
// -----------------------------------------------------------------------------

type MInstrument struct {
	ID       int64  `json:"id"`
	Symbol   string `json:"symbol" binding:"required"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
	Active   bool   `json:"active"`
}

type MFeed struct {
	ID       int64  `json:"id"`
	Name     string `json:"name" binding:"required"`
	Provider string `json:"provider"`
	Protocol string `json:"protocol"`
	Endpoint string `json:"endpoint"`
	Enabled  bool   `json:"enabled"`
}

type MSubscription struct {
	ID           int64 `json:"id"`
	InstrumentID int64 `json:"instrumentId" binding:"required"`
	FeedID       int64 `json:"feedId" binding:"required"`
	Priority     int   `json:"priority"`
	Active       bool  `json:"active"`
}
