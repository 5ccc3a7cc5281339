package server

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kvas-dev/chessdesk/internal/oracle"
	"github.com/kvas-dev/chessdesk/internal/render"
	"github.com/kvas-dev/chessdesk/pkg/sessiondto"
)

type stubOracle struct{}

func (stubOracle) Suggest(_ context.Context, _ string, _ int) (oracle.Reply, error) {
	return oracle.Reply{Move: "e7e5"}, nil
}

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := New(stubOracle{}, render.New(), nil, 12, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws://"+ts.Listener.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) sessiondto.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var frame sessiondto.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func writeCommand(t *testing.T, conn *websocket.Conn, cmd sessiondto.Command) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		t.Fatalf("write command: %v", err)
	}
}

func TestInitialStateFrame(t *testing.T) {
	conn := dialTestServer(t)

	frame := readFrame(t, conn)
	if frame.Type != "state" || frame.State == nil {
		t.Fatalf("frame = %+v", frame)
	}
	if frame.State.Turn != "white" || frame.State.GameOver {
		t.Fatalf("state = %+v", frame.State)
	}
	if frame.State.GameID == "" {
		t.Fatal("missing game id")
	}
}

func TestClickMoveAndEngineReply(t *testing.T) {
	conn := dialTestServer(t)
	readFrame(t, conn) // initial state

	writeCommand(t, conn, sessiondto.Command{Op: "click", Square: "e2"})
	writeCommand(t, conn, sessiondto.Command{Op: "click", Square: "e4"})

	// frames arrive for: selection, human move, (busy), engine reply
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("never saw the engine reply")
		default:
		}
		frame := readFrame(t, conn)
		if frame.Type != "state" || frame.State == nil {
			continue
		}
		if len(frame.State.Ledger) == 2 && !frame.State.Busy {
			if frame.State.Ledger[1].UCI != "e7e5" {
				t.Fatalf("ledger = %+v", frame.State.Ledger)
			}
			return
		}
	}
}

func TestBoardFrameCarriesPNG(t *testing.T) {
	conn := dialTestServer(t)
	readFrame(t, conn)

	writeCommand(t, conn, sessiondto.Command{Op: "board"})
	frame := readFrame(t, conn)
	if frame.Type != "board" || frame.PNG == "" {
		t.Fatalf("frame = %+v", frame)
	}
	raw, err := base64.StdEncoding.DecodeString(frame.PNG)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	// PNG signature
	if len(raw) < 8 || raw[1] != 'P' || raw[2] != 'N' || raw[3] != 'G' {
		t.Fatal("payload is not a png")
	}
}

func TestUnknownOp(t *testing.T) {
	conn := dialTestServer(t)
	readFrame(t, conn)

	writeCommand(t, conn, sessiondto.Command{Op: "bogus"})
	frame := readFrame(t, conn)
	if frame.Type != "error" || frame.Error == "" {
		t.Fatalf("frame = %+v", frame)
	}
}
