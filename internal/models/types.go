package models

// ========================= Wire Models =========================
// Shapes shared by the counter service and its clients.

// ClicksResponse is the body of GET /clicks and POST /click. Clicks is a
// pointer so clients can tell a missing field from a zero count.
type ClicksResponse struct {
	Clicks *int `json:"clicks"`
}

func NewClicksResponse(n int) ClicksResponse {
	return ClicksResponse{Clicks: &n}
}

// DailyClicks is the body of GET /clicks/today.
type DailyClicks struct {
	Date   string `json:"date"` // YYYY-MM-DD, UTC
	Clicks int    `json:"clicks"`
}

// ClickEvent is published after the counter service accepts an increment.
type ClickEvent struct {
	Clicks int   `json:"clicks"`
	At     int64 `json:"at"` // unix seconds
}

// WebSocket message structure
type WsMsg struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
