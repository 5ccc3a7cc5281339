package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvas-dev/chessdesk/internal/msgcat"
	"github.com/kvas-dev/chessdesk/internal/oracle"
	"github.com/kvas-dev/chessdesk/internal/rules"
)

// Oracle produces the engine's reply move for a position. Implementations
// may block; the controller always calls it off the event path.
type Oracle interface {
	Suggest(ctx context.Context, fen string, depth int) (oracle.Reply, error)
}

// Applied is one ledger entry: a move that has been executed against the
// authoritative game.
type Applied struct {
	From  nchess.Square
	To    nchess.Square
	Promo nchess.PieceType
	SAN   string
	UCI   string
}

// PendingPromotion suspends a human move between "destination chosen"
// and "promotion piece chosen". While set, all other board input is
// ignored.
type PendingPromotion struct {
	From nchess.Square
	To   nchess.Square
}

// Controller owns the authoritative game state for one session and is
// the single entry point for every external event. All commands are
// serialized by its mutex; the only asynchronous work is the oracle
// query, whose completion re-enters under the same lock.
type Controller struct {
	mu sync.Mutex

	id      string
	game    *nchess.Game
	applied []Applied
	check   bool

	selected nchess.Square
	hasSel   bool
	targets  []nchess.Square
	pending  *PendingPromotion

	oracleEnabled bool
	depth         int
	humanSide     nchess.Color
	whiteBottom   bool

	busy       bool
	generation uint64
	eval       string
	lastErr    string

	oracle   Oracle
	cat      *msgcat.Catalog
	logger   *zap.Logger
	onUpdate func(Snapshot)
}

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMessages(cat *msgcat.Catalog) Option {
	return func(c *Controller) { c.cat = cat }
}

func WithDepth(depth int) Option {
	return func(c *Controller) { c.depth = oracle.ClampDepth(depth) }
}

func WithOracleEnabled(enabled bool) Option {
	return func(c *Controller) { c.oracleEnabled = enabled }
}

// WithUpdateHook registers a callback invoked with a fresh snapshot after
// every state change, including asynchronous oracle completions. The
// callback runs outside the controller lock.
func WithUpdateHook(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

func NewController(engine Oracle, opts ...Option) *Controller {
	c := &Controller{
		id:            uuid.NewString(),
		game:          nchess.NewGame(),
		oracleEnabled: true,
		depth:         12,
		humanSide:     nchess.White,
		whiteBottom:   true,
		oracle:        engine,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// NewGame resets everything to the starting position. side is the color
// the human plays; when the human takes Black and the oracle is enabled,
// the opening reply is requested immediately. An in-flight oracle request
// is not aborted, but its eventual reply belongs to the previous
// generation and will be discarded.
func (c *Controller) NewGame(side nchess.Color) {
	c.mu.Lock()
	if side != nchess.Black {
		side = nchess.White
	}
	c.generation++
	c.game = nchess.NewGame()
	c.applied = nil
	c.check = false
	c.clearSelectionLocked()
	c.pending = nil
	c.busy = false
	c.eval = ""
	c.lastErr = ""
	c.humanSide = side
	c.whiteBottom = side == nchess.White
	if side == nchess.Black && c.oracleEnabled {
		c.startOracleLocked()
	}
	c.pushLocked()
}

// SelectOrMove handles a board click. Routine exploration that leads
// nowhere (wrong turn, empty square, illegal destination) is a silent
// no-op; in particular, clicking an illegal destination never drops the
// current selection.
func (c *Controller) SelectOrMove(sq nchess.Square) {
	c.mu.Lock()
	if c.game.Outcome() != nchess.NoOutcome || c.pending != nil || c.busy {
		c.mu.Unlock()
		return
	}

	if c.hasSel && c.isTargetLocked(sq) {
		moves := rules.MovesFrom(c.game, c.selected)
		if rules.RequiresPromotion(moves, sq) {
			c.pending = &PendingPromotion{From: c.selected, To: sq}
			c.pushLocked()
			return
		}
		if mv := rules.FindMove(moves, sq, nchess.NoPieceType); mv != nil {
			c.applyMoveLocked(mv)
			c.pushLocked()
			return
		}
		c.mu.Unlock()
		return
	}

	piece := c.game.Position().Board().Piece(sq)
	if piece == nchess.NoPiece || piece.Color() != c.game.Position().Turn() {
		c.mu.Unlock()
		return
	}
	moves := rules.MovesFrom(c.game, sq)
	c.selected = sq
	c.hasSel = true
	c.targets = rules.TargetsOf(moves)
	c.pushLocked()
}

// ChoosePromotion resolves a pending promotion with the chosen piece.
// Without a pending promotion, or with a piece outside queen, rook,
// bishop and knight, it is a silent no-op. The rules engine stays the
// sole arbiter: if it rejects the combination the pending move is
// dropped without applying anything.
func (c *Controller) ChoosePromotion(piece nchess.PieceType) {
	switch piece {
	case nchess.Queen, nchess.Rook, nchess.Bishop, nchess.Knight:
	default:
		return
	}

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	pending := *c.pending
	c.pending = nil

	moves := rules.MovesFrom(c.game, pending.From)
	if mv := rules.FindMove(moves, pending.To, piece); mv != nil {
		c.applyMoveLocked(mv)
	} else {
		c.clearSelectionLocked()
	}
	c.pushLocked()
}

// SetOracleEnabled toggles automatic engine replies. Disabling does not
// interrupt a request already in flight.
func (c *Controller) SetOracleEnabled(enabled bool) {
	c.mu.Lock()
	c.oracleEnabled = enabled
	c.pushLocked()
}

func (c *Controller) SetSearchDepth(depth int) {
	c.mu.Lock()
	c.depth = oracle.ClampDepth(depth)
	c.pushLocked()
}

func (c *Controller) ToggleOrientation() {
	c.mu.Lock()
	c.whiteBottom = !c.whiteBottom
	c.pushLocked()
}

// RequestOracleMoveNow asks the engine to move for the side to move.
// While a request is already in flight, or once the game is over, it is
// a no-op.
func (c *Controller) RequestOracleMoveNow() {
	c.mu.Lock()
	if c.busy || c.game.Outcome() != nchess.NoOutcome || c.pending != nil {
		c.mu.Unlock()
		return
	}
	c.startOracleLocked()
	c.pushLocked()
}

// Snapshot returns a consistent copy of the full session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// applyMoveLocked executes a legal move through the single shared path:
// the game advances, the ledger grows by one entry, the selection
// resets, and the oracle is asked for its reply when the mover was the
// human and the game continues. Identical for human and oracle moves.
func (c *Controller) applyMoveLocked(mv *nchess.Move) {
	pos := c.game.Position()
	mover := pos.Turn()
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))

	if err := c.game.Move(mv, nil); err != nil {
		// Cannot happen for moves produced by MovesFrom/DecodeUCI, but a
		// rejection must never corrupt the ledger.
		c.logger.Warn("move rejected by rules engine", zap.String("uci", uci), zap.Error(err))
		c.clearSelectionLocked()
		return
	}

	c.applied = append(c.applied, Applied{
		From:  mv.S1(),
		To:    mv.S2(),
		Promo: mv.Promo(),
		SAN:   san,
		UCI:   uci,
	})
	c.check = mv.HasTag(nchess.Check)
	c.clearSelectionLocked()

	if c.oracleEnabled && mover == c.humanSide && c.game.Outcome() == nchess.NoOutcome {
		c.startOracleLocked()
	}
}

func (c *Controller) startOracleLocked() {
	if c.busy || c.game.Outcome() != nchess.NoOutcome {
		return
	}
	c.busy = true
	c.lastErr = ""
	gen := c.generation
	fen := c.game.FEN()
	depth := c.depth
	go func() {
		reply, err := c.oracle.Suggest(context.Background(), fen, depth)
		c.finishOracle(gen, reply, err)
	}()
}

// finishOracle settles an oracle request. A reply from a previous
// generation is discarded outright; a current one is still re-validated
// against the live position, so a suggestion that is no longer legal
// becomes a soft failure instead of a corrupt ledger.
func (c *Controller) finishOracle(gen uint64, reply oracle.Reply, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding stale oracle reply",
			zap.Uint64("reply_generation", gen),
			zap.String("move", reply.Move),
		)
		return
	}
	c.busy = false

	switch {
	case errors.Is(err, oracle.ErrNoMove):
		c.lastErr = c.cat.RenderOr("oracle.no_move", nil, "The engine returned no usable move.")
	case err != nil:
		c.logger.Warn("oracle request failed", zap.Error(err))
		c.lastErr = c.cat.RenderOr("oracle.transport", nil, "Engine request failed, you can retry.")
	default:
		mv, decErr := rules.DecodeUCI(c.game, reply.Move)
		if decErr != nil {
			c.logger.Warn("oracle suggestion rejected", zap.String("move", reply.Move), zap.Error(decErr))
			c.lastErr = c.cat.RenderOr("oracle.rejected",
				map[string]any{"Move": reply.Move},
				"The engine suggested an illegal move.")
		} else {
			c.eval = reply.EvalText()
			c.applyMoveLocked(mv)
		}
	}
	c.pushLocked()
}

func (c *Controller) clearSelectionLocked() {
	c.hasSel = false
	c.selected = 0
	c.targets = nil
}

func (c *Controller) isTargetLocked(sq nchess.Square) bool {
	for _, t := range c.targets {
		if t == sq {
			return true
		}
	}
	return false
}

// pushLocked snapshots the state, releases the lock, and hands the
// snapshot to the update hook.
func (c *Controller) pushLocked() {
	snap := c.snapshotLocked()
	cb := c.onUpdate
	c.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}
