// Package server exposes the session controller to board frontends over
// a WebSocket. Each connection owns one controller; commands come in as
// JSON frames and every state change is pushed back as a snapshot.
package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kvas-dev/chessdesk/internal/msgcat"
	"github.com/kvas-dev/chessdesk/internal/render"
	"github.com/kvas-dev/chessdesk/internal/rules"
	"github.com/kvas-dev/chessdesk/internal/session"
	"github.com/kvas-dev/chessdesk/pkg/sessiondto"
)

const writeTimeout = 10 * time.Second

type Server struct {
	oracle   session.Oracle
	renderer *render.Renderer
	cat      *msgcat.Catalog
	depth    int
	logger   *zap.Logger
}

func New(oracle session.Oracle, renderer *render.Renderer, cat *msgcat.Catalog, defaultDepth int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		oracle:   oracle,
		renderer: renderer,
		cat:      cat,
		depth:    defaultDepth,
		logger:   logger,
	}
}

// Handler returns the HTTP routes: /ws upgrades to the session socket,
// /healthz answers liveness probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	sink := &connSink{conn: conn, ctx: ctx, logger: s.logger}

	ctrl := session.NewController(s.oracle,
		session.WithLogger(s.logger.Named("session")),
		session.WithMessages(s.cat),
		session.WithDepth(s.depth),
		session.WithUpdateHook(func(snap session.Snapshot) {
			sink.writeState(snap)
		}),
	)
	s.logger.Info("session opened", zap.String("session_id", ctrl.ID()))

	// Initial snapshot so the frontend can draw immediately.
	sink.writeState(ctrl.Snapshot())

	for {
		var cmd sessiondto.Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			s.logger.Info("session closed", zap.String("session_id", ctrl.ID()))
			_ = conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}
		s.dispatch(ctx, ctrl, sink, cmd)
	}
}

func (s *Server) dispatch(ctx context.Context, ctrl *session.Controller, sink *connSink, cmd sessiondto.Command) {
	switch cmd.Op {
	case "click":
		sq, err := rules.ParseSquare(cmd.Square)
		if err != nil {
			sink.writeError("invalid square")
			return
		}
		ctrl.SelectOrMove(sq)
	case "promote":
		piece, err := rules.PromotionFromLetter(cmd.Piece)
		if err != nil {
			sink.writeError("invalid promotion piece")
			return
		}
		ctrl.ChoosePromotion(piece)
	case "new":
		side := nchess.White
		if cmd.Side == "b" || cmd.Side == "black" {
			side = nchess.Black
		}
		ctrl.NewGame(side)
	case "oracle":
		ctrl.SetOracleEnabled(cmd.Enabled)
	case "depth":
		ctrl.SetSearchDepth(cmd.Depth)
	case "flip":
		ctrl.ToggleOrientation()
	case "engine_move":
		ctrl.RequestOracleMoveNow()
	case "board":
		s.sendBoard(ctx, ctrl, sink)
	default:
		sink.writeError("unknown op")
	}
}

func (s *Server) sendBoard(ctx context.Context, ctrl *session.Controller, sink *connSink) {
	snap := ctrl.Snapshot()
	board, err := render.BoardFromFEN(snap.FEN)
	if err != nil {
		s.logger.Warn("board rebuild failed", zap.Error(err))
		sink.writeError("render failed")
		return
	}
	opts := renderOptions(snap, board)

	pngBytes, err := s.renderer.PNG(ctx, board, opts)
	if err != nil {
		s.logger.Warn("board render failed", zap.Error(err))
		sink.writeError("render failed")
		return
	}
	sink.write(sessiondto.Frame{Type: "board", PNG: base64.StdEncoding.EncodeToString(pngBytes)})
}

// renderOptions translates a snapshot into renderer overlays.
func renderOptions(snap session.Snapshot, board *nchess.Board) render.Options {
	opts := render.Options{WhiteBottom: snap.WhiteBottom}
	if snap.Selected != "" {
		if sq, err := rules.ParseSquare(snap.Selected); err == nil {
			opts.Selected = &sq
		}
	}
	for _, t := range snap.Targets {
		if sq, err := rules.ParseSquare(t); err == nil {
			opts.Targets = append(opts.Targets, sq)
		}
	}
	if snap.LastMove != nil {
		from, errF := rules.ParseSquare(snap.LastMove.From)
		to, errT := rules.ParseSquare(snap.LastMove.To)
		if errF == nil && errT == nil {
			opts.LastMove = &render.Highlight{From: from, To: to}
		}
	}
	if snap.Check {
		side := nchess.White
		if snap.Turn == "black" {
			side = nchess.Black
		}
		if sq, ok := render.KingSquare(board, side); ok {
			opts.CheckSquare = &sq
		}
	}
	return opts
}

// connSink serializes writes to one connection; pushes may come from the
// read loop and from oracle completions concurrently.
type connSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	logger *zap.Logger
}

func (s *connSink) write(frame sessiondto.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, s.conn, frame); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
	}
}

func (s *connSink) writeState(snap session.Snapshot) {
	s.write(sessiondto.Frame{Type: "state", State: toDTO(snap)})
}

func (s *connSink) writeError(msg string) {
	s.write(sessiondto.Frame{Type: "error", Error: msg})
}

func toDTO(snap session.Snapshot) *sessiondto.State {
	state := &sessiondto.State{
		GameID:        snap.GameID,
		FEN:           snap.FEN,
		Turn:          snap.Turn,
		HumanSide:     snap.HumanSide,
		Check:         snap.Check,
		GameOver:      snap.GameOver,
		Verdict:       snap.Verdict,
		Selected:      snap.Selected,
		Targets:       append([]string(nil), snap.Targets...),
		Eval:          snap.Eval,
		Busy:          snap.Busy,
		LastError:     snap.LastError,
		OracleEnabled: snap.OracleEnabled,
		Depth:         snap.Depth,
		WhiteBottom:   snap.WhiteBottom,
	}
	if snap.Pending != nil {
		state.Pending = &sessiondto.PromotionPrompt{From: snap.Pending.From, To: snap.Pending.To}
	}
	for _, m := range snap.Ledger {
		state.Ledger = append(state.Ledger, sessiondto.MoveRecord{
			From: m.From, To: m.To, Promo: m.Promo, SAN: m.SAN, UCI: m.UCI,
		})
	}
	if snap.LastMove != nil {
		state.LastMove = &sessiondto.MoveRecord{
			From: snap.LastMove.From, To: snap.LastMove.To,
			Promo: snap.LastMove.Promo, SAN: snap.LastMove.SAN, UCI: snap.LastMove.UCI,
		}
	}
	return state
}
