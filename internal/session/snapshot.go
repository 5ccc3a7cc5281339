package session

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// MoveRecord is one ledger entry in coordinate text form.
type MoveRecord struct {
	From  string
	To    string
	Promo string
	SAN   string
	UCI   string
}

// PromotionPrompt marks a promotion waiting for the user's piece choice.
type PromotionPrompt struct {
	From string
	To   string
}

// Snapshot is a complete, detached copy of the session state. It never
// aliases controller internals.
type Snapshot struct {
	GameID        string
	FEN           string
	Turn          string
	HumanSide     string
	Check         bool
	GameOver      bool
	Verdict       string
	Selected      string
	Targets       []string
	Pending       *PromotionPrompt
	Ledger        []MoveRecord
	LastMove      *MoveRecord
	Eval          string
	Busy          bool
	LastError     string
	OracleEnabled bool
	Depth         int
	WhiteBottom   bool
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		GameID:        c.id,
		FEN:           c.game.FEN(),
		Turn:          strings.ToLower(c.game.Position().Turn().String()),
		HumanSide:     strings.ToLower(c.humanSide.String()),
		Check:         c.check,
		GameOver:      c.game.Outcome() != nchess.NoOutcome,
		Eval:          c.eval,
		Busy:          c.busy,
		LastError:     c.lastErr,
		OracleEnabled: c.oracleEnabled,
		Depth:         c.depth,
		WhiteBottom:   c.whiteBottom,
	}

	if snap.GameOver {
		snap.Verdict = c.verdictLocked()
	}
	if c.hasSel {
		snap.Selected = c.selected.String()
		snap.Targets = make([]string, len(c.targets))
		for i, t := range c.targets {
			snap.Targets[i] = t.String()
		}
	}
	if c.pending != nil {
		snap.Pending = &PromotionPrompt{
			From: c.pending.From.String(),
			To:   c.pending.To.String(),
		}
	}
	if len(c.applied) > 0 {
		snap.Ledger = make([]MoveRecord, len(c.applied))
		for i, a := range c.applied {
			snap.Ledger[i] = MoveRecord{
				From:  a.From.String(),
				To:    a.To.String(),
				Promo: promoLetter(a.Promo),
				SAN:   a.SAN,
				UCI:   a.UCI,
			}
		}
		last := snap.Ledger[len(snap.Ledger)-1]
		snap.LastMove = &last
	}
	return snap
}

func (c *Controller) verdictLocked() string {
	switch c.game.Method() {
	case nchess.Checkmate:
		winner := "White"
		if c.game.Outcome() == nchess.BlackWon {
			winner = "Black"
		}
		return c.cat.RenderOr("status.checkmate",
			map[string]any{"Winner": winner},
			fmt.Sprintf("Checkmate. %s wins.", winner))
	case nchess.Stalemate:
		return c.cat.RenderOr("status.stalemate", nil, "Stalemate.")
	default:
		method := fmt.Sprint(c.game.Method())
		return c.cat.RenderOr("status.draw",
			map[string]any{"Method": method},
			fmt.Sprintf("Draw (%s).", method))
	}
}

func promoLetter(p nchess.PieceType) string {
	switch p {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}
