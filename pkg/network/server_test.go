package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	authproviders "github.com/cbodonnell/wordrush/pkg/auth/providers"
	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type fakeCoordinator struct {
	// onJoin runs inside Join, before the welcome is returned
	onJoin func()

	lock         sync.Mutex
	joined       []string
	disconnected []string
	selected     []string
}

func (c *fakeCoordinator) Join(ctx context.Context, identity string) (gametypes.JoinResult, error) {
	if c.onJoin != nil {
		c.onJoin()
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.joined = append(c.joined, identity)
	return gametypes.JoinResult{
		TargetWord:         "garden",
		PreviousTargetWord: "house",
		CompletedFrom:      "cat",
		CompletedIn:        3,
		StarterWords:       []string{"cat", "dog", "man", "plane"},
		Leaderboard:        []gametypes.LeaderboardEntry{{Name: "alice", Points: 2}},
		ActiveUsers:        1,
	}, nil
}

func (c *fakeCoordinator) SelectWord(ctx context.Context, identity string, word string) (gametypes.SelectResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.selected = append(c.selected, word)
	if word == "garden" {
		return gametypes.SelectResult{Completed: true, TargetWord: "light"}, nil
	}
	return gametypes.SelectResult{Options: []string{word + "1", word + "2"}}, nil
}

func (c *fakeCoordinator) Disconnect(ctx context.Context, identity string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.disconnected = append(c.disconnected, identity)
	return nil
}

func (c *fakeCoordinator) Status() gametypes.Status {
	return gametypes.Status{
		TargetWord:  "garden",
		ActiveUsers: 1,
		Leaderboard: []gametypes.LeaderboardEntry{{Name: "alice", Points: 2}},
	}
}

func (c *fakeCoordinator) disconnects() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.disconnected...)
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCoordinator, *WSServer) {
	coordinator := &fakeCoordinator{}
	s := NewWSServer(NewWSServerOptions{
		Prefix:       "/game",
		AuthProvider: authproviders.NewAnonymousAuthProvider(),
		Coordinator:  coordinator,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, coordinator, s
}

func dial(t *testing.T, ts *httptest.Server, name string) *websocket.Conn {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws?name=" + name
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func write(t *testing.T, conn *websocket.Conn, data string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(data)))
}

func TestWSServer_session(t *testing.T) {
	ts, coordinator, _ := newTestServer(t)
	conn := dial(t, ts, "alice")

	welcome := readJSON(t, conn)
	assert.Equal(t, "garden", welcome["targetWord"])
	assert.Equal(t, "house", welcome["previousTargetWord"])
	assert.Equal(t, "cat", welcome["completedFrom"])
	assert.Equal(t, float64(3), welcome["completedIn"])
	assert.Len(t, welcome["wordOptions"], 4)
	assert.Len(t, welcome["leaderboard"], 1)

	write(t, conn, `{"word": "dog"}`)
	options := readJSON(t, conn)
	assert.Equal(t, []interface{}{"dog1", "dog2"}, options["wordOptions"])

	write(t, conn, `not json`)
	diagnostic := readJSON(t, conn)
	assert.Contains(t, diagnostic["error"], "invalid message")

	// a completion has no private reply, so the next frame answers "cat"
	write(t, conn, `{"word": "garden"}`)
	write(t, conn, `{"word": "cat"}`)
	options = readJSON(t, conn)
	assert.Equal(t, []interface{}{"cat1", "cat2"}, options["wordOptions"])

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool {
		return len(coordinator.disconnects()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"alice"}, coordinator.disconnects())
}

func TestWSServer_broadcast(t *testing.T) {
	ts, _, s := newTestServer(t)
	alice := dial(t, ts, "alice")
	bob := dial(t, ts, "bob")
	readJSON(t, alice)
	readJSON(t, bob)

	require.Eventually(t, func() bool { return s.Group().Len() == 2 }, 5*time.Second, 10*time.Millisecond)
	result := s.Group().Broadcast([]byte(`{"activeUsers":2,"leaderboard":[]}`))
	assert.Equal(t, FanoutResult{Delivered: 2}, result)

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readJSON(t, conn)
		assert.Equal(t, float64(2), msg["activeUsers"])
	}
}

func TestWSServer_welcomeComesBeforeBroadcasts(t *testing.T) {
	ts, coordinator, s := newTestServer(t)
	coordinator.onJoin = func() {
		// another player completes the round while this one is joining
		result := s.Group().Broadcast([]byte(`{"targetWord":"light","leaderboard":[],"completedFrom":"cat","completedIn":2,"previousTargetWord":"garden"}`))
		assert.Equal(t, FanoutResult{Delivered: 1}, result)
	}

	conn := dial(t, ts, "alice")
	welcome := readJSON(t, conn)
	assert.Equal(t, "garden", welcome["targetWord"])
	assert.Contains(t, welcome, "wordOptions")

	newTarget := readJSON(t, conn)
	assert.Equal(t, "light", newTarget["targetWord"])
	assert.NotContains(t, newTarget, "wordOptions")
}

func TestWSServer_rejectsAnonymousWithoutName(t *testing.T) {
	ts, coordinator, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, coordinator.joined)
}

func TestWSServer_httpEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/game/leaderboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var body struct {
		ActiveUsers int                          `json:"activeUsers"`
		TargetWord  string                       `json:"targetWord"`
		Leaderboard []gametypes.LeaderboardEntry `json:"leaderboard"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.ActiveUsers)
	assert.Equal(t, []gametypes.LeaderboardEntry{{Name: "alice", Points: 2}}, body.Leaderboard)

	tests := []struct {
		path        string
		contentType string
	}{
		{path: "/game/healthz", contentType: "text/plain; charset=utf-8"},
		{path: "/game/version", contentType: "text/plain; charset=utf-8"},
		{path: "/game/qr", contentType: "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
		})
	}

	resp, err = http.Get(ts.URL + "/game/pprof/heap")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
