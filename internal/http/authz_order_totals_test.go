package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Client-supplied totals are ignored; the server prices from the menu and
// audits any mismatch.
func TestShowPaymentRecomputesTotal(t *testing.T) {
	ta := newTestApp(t, appOpts{})

	items := []any{
		map[string]any{"productId": ta.latte, "qty": map[string]int{"Small": 2, "Large": 1}},
	}
	code, body := ta.do(t, http.MethodPost, "/api/v1/payment", map[string]any{"items": items, "clientTotal": "1.00"})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "370", body["total"])
	assert.Equal(t, "Idle", body["state"])
	assert.NotEmpty(t, body["sessionId"])

	entry, ok := ta.logs.find(t, "payment.total_check")
	require.True(t, ok)
	assert.Equal(t, "audit", entry.Level)
	assert.Equal(t, true, entry.Fields["mismatch"])
	assert.Equal(t, "370.00", entry.Fields["server_total"])
}

func TestCashSaleEndToEnd(t *testing.T) {
	ta := newTestApp(t, appOpts{})
	beans, milk, cups := ta.onHand(t, "Coffee Beans"), ta.onHand(t, "Milk"), ta.onHand(t, "Medium Cup")

	ta.openCashSale(t, "150")
	code, body := ta.do(t, http.MethodPost, "/api/v1/payment/cash", map[string]any{"amount": "50"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "200", body["amountPaid"])
	assert.Equal(t, "70", body["change"])
	assert.Equal(t, true, body["canConfirmPayment"])

	code, body = ta.do(t, http.MethodPost, "/api/v1/payment/confirm", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Nil(t, body["warning"])
	tx := body["transaction"].(map[string]any)
	id := int64(tx["id"].(float64))
	assert.Positive(t, id)
	assert.Equal(t, "Cash", tx["method"])
	assert.Equal(t, "T1", tx["terminalId"])
	status := body["status"].(map[string]any)
	assert.Equal(t, "Confirmed", status["state"])

	assert.InDelta(t, beans-30, ta.onHand(t, "Coffee Beans"), 1e-9)
	assert.InDelta(t, milk-200, ta.onHand(t, "Milk"), 1e-9)
	assert.InDelta(t, cups-1, ta.onHand(t, "Medium Cup"), 1e-9)

	code, body = ta.do(t, http.MethodGet, "/api/v1/transactions", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transactions"], 1)

	code, body = ta.do(t, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", id), nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "70.00", body["change"])
	assert.NotEmpty(t, body["deductions"])
	lines := body["lineItems"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, "Medium", lines[0].(map[string]any)["size"])

	// The same session cannot be committed twice.
	code, body = ta.do(t, http.MethodPost, "/api/v1/payment/confirm", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "STATE_CONFLICT", errorCode(body))
}

func TestGCashNeedsNoTender(t *testing.T) {
	ta := newTestApp(t, appOpts{})
	code, _ := ta.do(t, http.MethodPost, "/api/v1/payment", map[string]any{"items": []any{mediumLatte(ta.latte)}})
	require.Equal(t, http.StatusCreated, code)
	code, body := ta.do(t, http.MethodPost, "/api/v1/payment/method", map[string]any{"method": "GCash"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "130", body["amountPaid"])

	code, body = ta.do(t, http.MethodPost, "/api/v1/payment/confirm", nil)
	require.Equal(t, http.StatusOK, code, body)
	status := body["status"].(map[string]any)
	assert.Equal(t, "Confirmed", status["state"])
	assert.EqualValues(t, 4, status["stageCount"])
}

func TestConfirmOfflineKeepsSession(t *testing.T) {
	ta := newTestApp(t, appOpts{offline: true})
	ta.openCashSale(t, "200")

	code, body := ta.do(t, http.MethodPost, "/api/v1/payment/confirm", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "NETWORK_UNAVAILABLE", errorCode(body))
	assert.Equal(t, true, body["error"].(map[string]any)["retryable"])

	_, status := ta.do(t, http.MethodGet, "/api/v1/payment", nil)
	assert.Equal(t, "MethodSelected", status["state"])

	var n int
	require.NoError(t, ta.db.Get(&n, `SELECT COUNT(*) FROM transactions`))
	assert.Zero(t, n)
}

func TestConfirmShortageReportsIssues(t *testing.T) {
	ta := newTestApp(t, appOpts{})
	var milkID int64
	require.NoError(t, ta.db.Get(&milkID, `SELECT id FROM inventory_items WHERE name = 'Milk'`))
	code, _ := ta.do(t, http.MethodPut, fmt.Sprintf("/api/v1/inventory/%d", milkID), map[string]any{"onHandQty": 150})
	require.Equal(t, http.StatusOK, code)

	ta.openCashSale(t, "200")
	code, body := ta.do(t, http.MethodPost, "/api/v1/payment/confirm", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(body))

	_, status := ta.do(t, http.MethodGet, "/api/v1/payment", nil)
	assert.Equal(t, "Failed", status["state"])
	issues := status["issues"].([]any)
	require.Len(t, issues, 1)
	assert.InDelta(t, 50, issues[0].(map[string]any)["shortfall"], 1e-9)
	assert.InDelta(t, 150, ta.onHand(t, "Milk"), 1e-9)
}

func TestStockCheck(t *testing.T) {
	ta := newTestApp(t, appOpts{})
	code, body := ta.do(t, http.MethodPost, "/api/v1/stock/check", map[string]any{"items": []any{mediumLatte(ta.latte)}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "130", body["total"])
	// beans, milk, medium cup, straw
	assert.Len(t, body["deductions"], 4)
}

func TestCancelBeforeProcessingResets(t *testing.T) {
	ta := newTestApp(t, appOpts{})
	ta.openCashSale(t, "200")

	code, body := ta.do(t, http.MethodPost, "/api/v1/payment/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Idle", body["state"])
	assert.Equal(t, "0", body["amountPaid"])

	_, ok := ta.logs.find(t, "payment.cancel")
	assert.True(t, ok)
}

func TestMenuHidesSmallForMilkTea(t *testing.T) {
	ta := newTestApp(t, appOpts{})
	code, body := ta.do(t, http.MethodGet, "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, code)

	byName := map[string]map[string]any{}
	for _, p := range body["products"].([]any) {
		m := p.(map[string]any)
		byName[m["name"].(string)] = m["prices"].(map[string]any)
	}
	require.Contains(t, byName, "Latte")
	assert.Equal(t, "110", byName["Latte"]["Small"])
	assert.NotContains(t, byName["Matcha Milk Tea"], "Small")
	assert.Equal(t, "120", byName["Matcha Milk Tea"]["Medium"])
}
