package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"brewpos/internal/config"
	"brewpos/internal/http/handlers"
	applog "brewpos/internal/log"
	"brewpos/internal/netcheck"
	"brewpos/internal/repos"
	"brewpos/internal/services"
)

type logEntry struct {
	Level  string         `json:"level"`
	ReqID  string         `json:"req_id"`
	Path   string         `json:"path"`
	Action string         `json:"action"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuf) entries(t *testing.T) []logEntry {
	t.Helper()
	l.mu.Lock()
	raw := l.b.String()
	l.mu.Unlock()

	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		out = append(out, e)
	}
	return out
}

func (l *lockedBuf) find(t *testing.T, action string) (logEntry, bool) {
	t.Helper()
	for _, e := range l.entries(t) {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

type testApp struct {
	app    *fiber.App
	db     *sqlx.DB
	logs   *lockedBuf
	latte  int64
	matcha int64
}

type appOpts struct {
	offline    bool
	confirmMax int
}

// newTestApp wires the real routes over a seeded in-memory store. Stages
// complete instantly and the network answer is fixed.
func newTestApp(t *testing.T, o appOpts) *testApp {
	t.Helper()
	ctx := context.Background()
	db, err := repos.OpenDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repos.Seed(ctx, db))

	logs := &lockedBuf{}
	logger := applog.New(applog.Options{Service: "brewpos-test", Level: applog.ParseLevel("debug"), Output: logs})

	cfg := config.Config{Checkout: config.CheckoutConfig{
		TerminalID:     "T1",
		CashierID:      "c-1",
		CashierName:    "Ana",
		Consumables:    true,
		IdempotencyTTL: time.Hour,
	}}
	deps := handlers.NewDeps(db, handlers.Options{
		Config:  cfg,
		Log:     logger,
		Network: netcheck.Static(!o.offline),
		Timer:   services.InstantTimer{},
	})

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger), BodyLimit: 1 << 20})
	app.Use(requestid.New())
	app.Use(applog.AccessLog(logger))

	var confirm fiber.Handler
	if o.confirmMax > 0 {
		confirm = limiter.New(limiter.Config{Max: o.confirmMax, Expiration: time.Minute})
	}
	handlers.Register(app, deps, confirm)

	ta := &testApp{app: app, db: db, logs: logs}
	require.NoError(t, db.Get(&ta.latte, `SELECT id FROM products WHERE name = 'Latte'`))
	require.NoError(t, db.Get(&ta.matcha, `SELECT id FROM products WHERE name = 'Matcha Milk Tea'`))
	return ta
}

// do sends a JSON request and decodes a JSON object response.
func (a *testApp) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			rd = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func mediumLatte(id int64) map[string]any {
	return map[string]any{"productId": id, "qty": map[string]int{"Medium": 1}}
}

// openCashSale shows a one Medium Latte cart and selects cash with amount tendered.
func (a *testApp) openCashSale(t *testing.T, amount string) {
	t.Helper()
	code, _ := a.do(t, http.MethodPost, "/api/v1/payment", map[string]any{"items": []any{mediumLatte(a.latte)}})
	require.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/payment/method", map[string]any{"method": "Cash"})
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/payment/cash", map[string]any{"amount": amount, "mode": "set"})
	require.Equal(t, http.StatusOK, code)
}

func (a *testApp) onHand(t *testing.T, name string) float64 {
	t.Helper()
	var q float64
	require.NoError(t, a.db.Get(&q, `SELECT on_hand_qty FROM inventory_items WHERE name = ?`, name))
	return q
}
