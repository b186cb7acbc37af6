package dtos

// ----------------------
// Responses
// ----------------------

// LoginResponse is the /login success payload. LoginResult must be the
// literal "success" for shipped clients to proceed.
type LoginResponse struct {
	LoginResult string    `json:"login_result"`
	Messages    []Message `json:"messages"`
}

// Message is a server-pushed notification delivered with the login
// response. Whether a given client shows it is decided client-side by
// the message gate, against the version constraint and show history.
type Message struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // "normal" or "debug"
	IsOneTime bool   `json:"is_one_time"`
	// AppVersion is a version constraint: one operator character
	// (=, < or >) followed by a version string, e.g. "=1.0(16)".
	AppVersion string          `json:"app_version"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Buttons    []MessageButton `json:"buttons"`
}

type MessageButton struct {
	Title      string `json:"title"`
	ActionType string `json:"action_type"` // "dismiss" or "open_url"
	ActionData string `json:"action_data"`
}
