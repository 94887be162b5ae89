package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"IndexTracker/internal/calculator"
	"IndexTracker/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", zaptest.NewLogger(t))
	n.APIBase = srv.URL
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry_Recovers(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", zaptest.NewLogger(t))
	n.APIBase = srv.URL
	require.NoError(t, n.SendWithRetry(context.Background(), "hi", 2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", zaptest.NewLogger(t))
	n.APIBase = srv.URL
	err := n.SendWithRetry(context.Background(), "hi", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestStartPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan string, 1)
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if atomic.AddInt32(&polls, 1) == 1 {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":"/status","chat":{"id":99}}},
					{"update_id":8,"message":{"text":" /status ","chat":{"id":42}}}]}`))
				return
			}
			assert.Equal(t, "9", r.URL.Query().Get("offset"))
			<-ctx.Done()
		case "/botTOKEN/sendMessage":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			replies <- body["text"]
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "", zaptest.NewLogger(t))
	n.APIBase = srv.URL
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		n.StartPolling(ctx, func(cmd string) string { return "reply to " + cmd })
	}()

	select {
	case got := <-replies:
		assert.Equal(t, "reply to /status", got)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	<-stopped
}

func TestFormatBatchReport(t *testing.T) {
	now := time.Date(2024, 7, 15, 17, 0, 0, 0, time.UTC)
	sum := &tracker.Summary{
		StartedAt:    now.Add(-3 * time.Second),
		FinishedAt:   now,
		WindowMonths: 6,
		Results: []tracker.PairResult{
			{Title: "CSI 300", ChartPath: "x.html", FetchErr: &tracker.RetrievalError{Key: "csi300_etf.csv", Err: errors.New("timeout")}, Stats: calculator.WindowStats{
				From: now.AddDate(0, -6, 0), To: now, Rows: 118,
				LastIndex: 3461.69, LastETF: 3.512, IndexReturn: 0.05, ETFReturn: 0.047, TrackingDiff: -0.003, Correlation: 0.998,
			}},
			{Title: "A<B", Skipped: true},
			{Title: "HSI", Err: errors.New("render exploded")},
		},
	}
	msg := FormatBatchReport(sum)
	assert.Contains(t, msg, "Charts: 1  Skipped: 1  Failed: 1  (3s)")
	assert.Contains(t, msg, "Index: 3461.69 (+5.00%)")
	assert.Contains(t, msg, "Tracking diff: -0.30%")
	assert.Contains(t, msg, "stale")
	assert.Contains(t, msg, "A&lt;B")
	assert.Contains(t, msg, "❌ <b>HSI</b>: render exploded")
}
