package observerproto

// Version is the observer handshake version (separate from the binary frame
// version in internal/protocol).
const Version = "1"

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional display name used in server logs.
	Name string `json:"name,omitempty"`
}

// Server -> Client. Sent once after a valid SUBSCRIBE; binary update frames
// follow.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	RegionID        string `json:"region_id"`
	Tick            uint64 `json:"tick"`
	FrameVersion    int    `json:"frame_version"`
}

// Server -> Client. Sent before closing a rejected connection.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	RegionID        string       `json:"region_id"`
	RegionName      string       `json:"region_name"`
	Tick            uint64       `json:"tick"`
	RegionParams    RegionParams `json:"region_params"`
	Groups          int          `json:"groups"`
	Parts           int          `json:"parts"`
	Observers       int          `json:"observers"`
}

type RegionParams struct {
	TickRateHz   int `json:"tick_rate_hz"`
	MaxLinks     int `json:"max_links"`
	FrameVersion int `json:"frame_version"`
}
