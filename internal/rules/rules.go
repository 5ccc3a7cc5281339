package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Thin, stateless helpers over the chess library. Every function is
// queried against an explicit game value, never a shared one.

// ParseSquare converts coordinate text like "e2" into a square.
func ParseSquare(s string) (nchess.Square, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if len(t) != 2 {
		return 0, fmt.Errorf("invalid square %q", s)
	}
	file := int(t[0] - 'a')
	rank := int(t[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("invalid square %q", s)
	}
	return nchess.NewSquare(nchess.File(file), nchess.Rank(rank)), nil
}

// MovesFrom returns the legal moves originating at from for the side to move.
func MovesFrom(game *nchess.Game, from nchess.Square) []nchess.Move {
	var out []nchess.Move
	for _, mv := range game.ValidMoves() {
		if mv.S1() == from {
			out = append(out, mv)
		}
	}
	return out
}

// TargetsOf extracts the destination squares of a move set, deduplicated
// (promotion variants share one destination).
func TargetsOf(moves []nchess.Move) []nchess.Square {
	seen := make(map[nchess.Square]struct{}, len(moves))
	var out []nchess.Square
	for _, mv := range moves {
		if _, ok := seen[mv.S2()]; ok {
			continue
		}
		seen[mv.S2()] = struct{}{}
		out = append(out, mv.S2())
	}
	return out
}

// FindMove picks the move in moves that lands on to. When promo is set,
// only the matching promotion variant qualifies.
func FindMove(moves []nchess.Move, to nchess.Square, promo nchess.PieceType) *nchess.Move {
	for i := range moves {
		if moves[i].S2() != to {
			continue
		}
		if promo != nchess.NoPieceType && moves[i].Promo() != promo {
			continue
		}
		if promo == nchess.NoPieceType && moves[i].Promo() != nchess.NoPieceType {
			continue
		}
		return &moves[i]
	}
	return nil
}

// RequiresPromotion reports whether any legal move in moves landing on to
// carries a promotion.
func RequiresPromotion(moves []nchess.Move, to nchess.Square) bool {
	for _, mv := range moves {
		if mv.S2() == to && mv.Promo() != nchess.NoPieceType {
			return true
		}
	}
	return false
}

// DecodeUCI parses a coordinate move token against the game's current
// position. Illegal or malformed tokens are rejected by the library.
func DecodeUCI(game *nchess.Game, token string) (*nchess.Move, error) {
	notation := nchess.UCINotation{}
	mv, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(token)))
	if err != nil {
		return nil, fmt.Errorf("decode move %s: %w", token, err)
	}
	return mv, nil
}

// Replay rebuilds a game from the start position through a list of UCI
// move tokens.
func Replay(uciMoves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, mv := range uciMoves {
		move, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(mv)))
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

// PromotionFromLetter maps a promotion letter (q, r, b, n) to a piece type.
func PromotionFromLetter(s string) (nchess.PieceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q":
		return nchess.Queen, nil
	case "r":
		return nchess.Rook, nil
	case "b":
		return nchess.Bishop, nil
	case "n":
		return nchess.Knight, nil
	default:
		return nchess.NoPieceType, fmt.Errorf("invalid promotion %q", s)
	}
}
