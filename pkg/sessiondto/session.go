// Package sessiondto defines the wire shapes exchanged with board
// frontends over the session WebSocket.
package sessiondto

// Command is a frontend -> server frame. Op selects the action; the
// remaining fields are op-specific arguments.
type Command struct {
	Op string `json:"op"`

	// square for op "click", e.g. "e2"
	Square string `json:"square,omitempty"`
	// promotion piece letter for op "promote": q, r, b, n
	Piece string `json:"piece,omitempty"`
	// human side for op "new": "w" or "b"
	Side string `json:"side,omitempty"`
	// oracle toggle for op "oracle"
	Enabled bool `json:"enabled,omitempty"`
	// search depth for op "depth"
	Depth int `json:"depth,omitempty"`
}

// MoveRecord is one applied move.
type MoveRecord struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Promo string `json:"promo,omitempty"`
	SAN   string `json:"san"`
	UCI   string `json:"uci"`
}

// PromotionPrompt is set while a promotion choice is pending.
type PromotionPrompt struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// State is the full session state pushed after every change.
type State struct {
	GameID        string           `json:"game_id"`
	FEN           string           `json:"fen"`
	Turn          string           `json:"turn"`
	HumanSide     string           `json:"human_side"`
	Check         bool             `json:"check"`
	GameOver      bool             `json:"game_over"`
	Verdict       string           `json:"verdict,omitempty"`
	Selected      string           `json:"selected,omitempty"`
	Targets       []string         `json:"targets,omitempty"`
	Pending       *PromotionPrompt `json:"pending,omitempty"`
	Ledger        []MoveRecord     `json:"ledger,omitempty"`
	LastMove      *MoveRecord      `json:"last_move,omitempty"`
	Eval          string           `json:"eval,omitempty"`
	Busy          bool             `json:"busy"`
	LastError     string           `json:"last_error,omitempty"`
	OracleEnabled bool             `json:"oracle_enabled"`
	Depth         int              `json:"depth"`
	WhiteBottom   bool             `json:"white_bottom"`
}

// Frame is a server -> frontend message.
type Frame struct {
	Type  string `json:"type"` // "state" | "board" | "error"
	State *State `json:"state,omitempty"`
	// base64-encoded PNG for type "board"
	PNG   string `json:"png,omitempty"`
	Error string `json:"error,omitempty"`
}
