package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribeapp/tribe-server/internal/chat"
	"github.com/tribeapp/tribe-server/internal/engage"
	"github.com/tribeapp/tribe-server/internal/events"
	"github.com/tribeapp/tribe-server/internal/lifecycle"
	"github.com/tribeapp/tribe-server/internal/realtime"
	"github.com/tribeapp/tribe-server/internal/store"
	"github.com/tribeapp/tribe-server/internal/store/sqlite"
	"github.com/tribeapp/tribe-server/internal/tribe"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	db, err := sqlite.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))
	st := sqlite.NewWithDB(db)

	log := zerolog.Nop()
	bus := events.NewBus(64)
	presence := realtime.NewPresenceTracker()
	coordinator := realtime.NewCoordinator(presence, st, log)
	chatSvc := chat.NewService(st, bus, coordinator, nil, log, 4096)
	tribeSvc := tribe.NewService(st, bus, log)
	engageSvc := engage.NewService(st, engage.NewSafeGenerator(nil, log), chatSvc, log)
	engine := lifecycle.NewEngine(st, log)

	srv := httptest.NewServer(NewRouter(Deps{
		Tribes:      tribeSvc,
		Chat:        chatSvc,
		Engage:      engageSvc,
		Engine:      engine,
		Coordinator: coordinator,
		IsHealthy:   func() bool { return true },
		Components:  func() map[string]bool { return map[string]bool{"store": true} },
		Log:         log,
	}))
	t.Cleanup(srv.Close)
	return srv, st
}

func postJSON(t *testing.T, url string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) == 0 {
		return nil
	}
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	return out
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := getJSON(t, srv.URL+"/v0/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	components := body["components"].(map[string]interface{})
	assert.Equal(t, true, components["store"])
}

func TestTribeAndMessageFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create a tribe.
	resp, body := postJSON(t, srv.URL+"/v0/tribes", map[string]interface{}{
		"name": "Board Gamers", "creatorId": "alice", "minMembers": 2, "maxMembers": 6,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tribeID := body["tribeId"].(string)
	require.NotEmpty(t, tribeID)
	assert.Equal(t, "FORMING", body["status"])

	// Bob joins.
	resp, _ = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/members", map[string]interface{}{"memberId": "bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A non-member cannot post.
	resp, _ = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages", map[string]interface{}{
		"memberId": "mallory", "content": "let me in",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Alice posts, Bob reads.
	resp, msgBody := postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages", map[string]interface{}{
		"memberId": "alice", "content": "Catan on Friday?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	messageID := msgBody["id"].(string)

	resp, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])

	resp, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/members/bob/unread")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["unread"])

	resp, _ = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/members/bob/read", map[string]interface{}{"all": true})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/members/bob/unread")
	assert.EqualValues(t, 0, body["unread"])

	// Search finds the message case-insensitively.
	_, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages/search?q=catan")
	assert.EqualValues(t, 1, body["count"])

	// Only the sender can delete.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v0/messages/"+messageID+"?memberId=bob", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, false, decodeBody(t, resp)["deleted"])

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/v0/messages/"+messageID+"?memberId=alice", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, true, decodeBody(t, resp)["deleted"])
}

func TestListMessages_QueryFilters(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/v0/tribes", map[string]interface{}{
		"name": "Filters", "creatorId": "alice", "minMembers": 2, "maxMembers": 6,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tribeID := body["tribeId"].(string)

	resp, _ = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/members", map[string]interface{}{"memberId": "bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for member, content := range map[string]string{"alice": "hello", "bob": "hi back"} {
		resp, _ = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages", map[string]interface{}{
			"memberId": member, "content": content,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// No filter params means no filtering, not an empty-string match.
	_, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages")
	assert.EqualValues(t, 2, body["count"])

	_, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages?senderId=alice")
	require.EqualValues(t, 1, body["count"])
	msgs := body["messages"].([]interface{})
	assert.Equal(t, "hello", msgs[0].(map[string]interface{})["content"])

	_, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages?type=TEXT")
	assert.EqualValues(t, 2, body["count"])

	_, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/messages?type=IMAGE")
	assert.EqualValues(t, 0, body["count"])
}

func TestLifecycleEvaluateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// Two members with a minimum of two trips FORMING -> ACTIVE.
	resp, body := postJSON(t, srv.URL+"/v0/tribes", map[string]interface{}{
		"name": "Duo", "creatorId": "alice", "minMembers": 2, "maxMembers": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tribeID := body["tribeId"].(string)

	resp, _ = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/members", map[string]interface{}{"memberId": "bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/evaluate", map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	transition := body["transition"].(map[string]interface{})
	assert.Equal(t, "FORMING", transition["from"])
	assert.Equal(t, "ACTIVE", transition["to"])
}

func TestEngagementEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/v0/tribes", map[string]interface{}{
		"name": "Quiet Ones", "creatorId": "alice", "minMembers": 2, "maxMembers": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tribeID := body["tribeId"].(string)

	resp, body = getJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/engagements/recommend")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CONVERSATION_PROMPT", body["type"])

	resp, body = postJSON(t, srv.URL+"/v0/tribes/"+tribeID+"/engagements", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	eng := body["engagement"].(map[string]interface{})
	engagementID := eng["engagementId"].(string)
	require.NotEmpty(t, engagementID)
	msg := body["message"].(map[string]interface{})
	assert.Equal(t, "AI_PROMPT", msg["messageType"])

	resp, _ = postJSON(t, srv.URL+"/v0/engagements/"+engagementID+"/responses", map[string]interface{}{})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Unknown tribe is a 404.
	resp, _ = getJSON(t, srv.URL+"/v0/tribes/nope/engagements/recommend")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/v0/tribes", map[string]interface{}{
		"name": "Live Ones", "creatorId": "alice", "minMembers": 2, "maxMembers": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tribeID := body["tribeId"].(string)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v0/tribes/" + tribeID + "/ws"

	// A non-member handshake succeeds but the server immediately refuses.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?memberId=mallory", nil)
	require.NoError(t, err)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	_ = conn.Close()

	// A member connects and sees their own message broadcast back.
	conn, _, err = websocket.DefaultDialer.Dial(wsURL+"?memberId=alice", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event":   "send-message",
		"content": "anyone here?",
	}))

	var frame struct {
		Event   string `json:"event"`
		Message struct {
			Content string `json:"content"`
			Seq     int64  `json:"seq"`
		} `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "new-message", frame.Event)
	assert.Equal(t, "anyone here?", frame.Message.Content)
	assert.Equal(t, int64(1), frame.Message.Seq)
}

func TestUpgraderOriginCheck(t *testing.T) {
	up := newUpgrader([]string{"https://app.tribe.example"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.tribe.example")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(req))

	// No configured origins admits anything.
	open := newUpgrader(nil)
	assert.True(t, open.CheckOrigin(req))
}
