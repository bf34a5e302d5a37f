package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srv *httptest.Server) *ApiClient {
	c := NewApiClient()
	c.BaseURL = srv.URL
	c.TenantID = "demo"
	c.ConversationID = "c1"
	c.Token = "tok"
	return c
}

func TestSendEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tenants/demo/conversations/c1/turns", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body struct {
			Event Event `json:"event"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "button", body.Event.Kind)
		assert.Equal(t, "checkout", body.Event.ButtonID)

		_ = json.NewEncoder(w).Encode(TurnResult{State: "AWAITING_LOCATION", Replies: []Reply{{Text: "Please share your location"}}})
	}))
	defer srv.Close()

	res, err := testClient(srv).SendEvent(Event{Kind: "button", ButtonID: "checkout"})
	require.NoError(t, err)
	assert.Equal(t, "AWAITING_LOCATION", res.State)
	require.Len(t, res.Replies, 1)
}

func TestSendEventKeepsRepliesOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   "internal error",
			"replies": []Reply{{Text: "Sorry, something went wrong"}},
		})
	}))
	defer srv.Close()

	res, err := testClient(srv).SendEvent(Event{Kind: "text", Text: "hi"})
	assert.Error(t, err)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, "internal error", res.Error)
}

func TestParseInput(t *testing.T) {
	buttons := []Button{{ID: "pay:card", Title: "Card"}, {ID: "pay:cash", Title: "Cash"}}

	act, err := parseInput("2 ayran", buttons)
	require.NoError(t, err)
	assert.Equal(t, &Event{Kind: "text", Text: "2 ayran"}, act.event)

	act, err = parseInput("/2", buttons)
	require.NoError(t, err)
	assert.Equal(t, "pay:cash", act.event.ButtonID)

	_, err = parseInput("/3", buttons)
	assert.Error(t, err)

	act, err = parseInput("/loc 40.99, 29.03", nil)
	require.NoError(t, err)
	assert.InDelta(t, 40.99, act.event.Location.Lat, 1e-9)
	assert.InDelta(t, 29.03, act.event.Location.Lng, 1e-9)

	_, err = parseInput("/loc nowhere", nil)
	assert.Error(t, err)

	act, err = parseInput("/paid", nil)
	require.NoError(t, err)
	assert.True(t, act.payment.success)

	act, err = parseInput("/reset", nil)
	require.NoError(t, err)
	assert.True(t, act.reset)

	_, err = parseInput("   ", nil)
	assert.Error(t, err)
}
