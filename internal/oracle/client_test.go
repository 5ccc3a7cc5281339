package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithTimeout(2 * time.Second), WithRetry(1)}, opts...)
	return NewClient(srv.URL, opts...)
}

func TestSuggestParsesReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fen"); got != startFEN {
			t.Errorf("unexpected fen param: %q", got)
		}
		if got := r.URL.Query().Get("depth"); got != "12" {
			t.Errorf("unexpected depth param: %q", got)
		}
		_, _ = w.Write([]byte(`{"success":true,"evaluation":0.34,"mate":null,"bestmove":"bestmove e2e4 ponder e7e5"}`))
	})

	reply, err := c.Suggest(context.Background(), startFEN, 12)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if reply.Move != "e2e4" {
		t.Fatalf("move = %q, want e2e4", reply.Move)
	}
	if !reply.HasEval || reply.Eval != 0.34 {
		t.Fatalf("eval = %+v", reply)
	}
	if reply.HasMate {
		t.Fatal("unexpected mate flag")
	}
}

func TestSuggestClampsDepth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("depth"); got != "15" {
			t.Errorf("depth not clamped: %q", got)
		}
		_, _ = w.Write([]byte(`{"success":true,"evaluation":0.1,"mate":null,"bestmove":"bestmove e2e4"}`))
	})
	if _, err := c.Suggest(context.Background(), startFEN, 99); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
}

func TestSuggestNoMove(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"evaluation":null,"mate":null,"bestmove":""}`))
	})
	_, err := c.Suggest(context.Background(), startFEN, 10)
	if !errors.Is(err, ErrNoMove) {
		t.Fatalf("err = %v, want ErrNoMove", err)
	}
}

func TestSuggestRejectedQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"data":"invalid fen"}`))
	})
	_, err := c.Suggest(context.Background(), "garbage", 10)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestSuggestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"evaluation":1.0,"mate":null,"bestmove":"bestmove d2d4"}`))
	}, WithRetry(3))

	reply, err := c.Suggest(context.Background(), startFEN, 10)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if reply.Move != "d2d4" {
		t.Fatalf("move = %q", reply.Move)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestSuggestHardStatusFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := c.Suggest(context.Background(), startFEN, 10); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestExtractMoveToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"bestmove e2e4 ponder e7e5", "e2e4"},
		{"bestmove e7e8q", "e7e8q"},
		{"e2e4", "e2e4"},
		{"bestmove (none)", ""},
		{"bestmove", ""},
		{"", ""},
		{"bestmove x9y0", ""},
		{"info depth 12", ""},
	}
	for _, tc := range cases {
		if got := extractMoveToken(tc.in); got != tc.want {
			t.Errorf("extractMoveToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEvalText(t *testing.T) {
	cases := []struct {
		reply Reply
		want  string
	}{
		{Reply{HasEval: true, Eval: 0.34}, "+0.34"},
		{Reply{HasEval: true, Eval: -1.2}, "-1.20"},
		{Reply{HasMate: true, MateIn: 2, HasEval: true, Eval: 99.0}, "#2"},
		{Reply{HasMate: true, MateIn: -3}, "#3"},
		{Reply{}, ""},
	}
	for _, tc := range cases {
		if got := tc.reply.EvalText(); got != tc.want {
			t.Errorf("EvalText(%+v) = %q, want %q", tc.reply, got, tc.want)
		}
	}
}

func TestClampDepth(t *testing.T) {
	if ClampDepth(0) != MinDepth {
		t.Fatal("low depth not clamped")
	}
	if ClampDepth(40) != MaxDepth {
		t.Fatal("high depth not clamped")
	}
	if ClampDepth(8) != 8 {
		t.Fatal("in-range depth changed")
	}
}
