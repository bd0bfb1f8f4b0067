// Copyright 2026 The Matrix Status Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"maunium.net/go/mautrix/id"
)

// newTestSession creates a Client and DirectSession pointing at a test server.
func newTestSession(t *testing.T, handler http.Handler) (*httptest.Server, *DirectSession) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken("", "test-token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return server, session
}

func TestWhoAmI(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, WhoAmIResponse{UserID: "@test:local", DeviceID: "DEV1"})
	}))

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if userID != "@test:local" {
		t.Errorf("unexpected user ID: %s", userID)
	}
}

func TestSync(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/sync" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}

		query := request.URL.Query()
		if query.Get("since") != "s123" {
			t.Errorf("unexpected since token: %s", query.Get("since"))
		}
		if query.Get("timeout") != "30000" {
			t.Errorf("unexpected timeout: %s", query.Get("timeout"))
		}
		if query.Get("filter") != MinimalFilter() {
			t.Errorf("unexpected filter: %s", query.Get("filter"))
		}

		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{
			"next_batch": "s456",
			"rooms": {"join": {"!room1:local": {
				"summary": {"m.heroes": ["@bob:local"], "m.joined_member_count": 2},
				"unread_notifications": {"notification_count": 2, "highlight_count": 1},
				"account_data": {"events": [{"type": "m.tag", "content": {"tags": {"m.favourite": {"order": 0.5}}}}]},
				"state": {"events": [{"type": "m.room.member", "state_key": "@bob:local", "content": {"displayname": "Bob"}}]},
				"timeline": {"events": [{"event_id": "$evt1", "type": "m.room.message", "sender": "@bob:local", "origin_server_ts": 1700000000000, "content": {}}]}
			}}}
		}`))
	}))

	response, err := session.Sync(context.Background(), SyncOptions{
		Since:      "s123",
		Timeout:    LongPollTimeout,
		SetTimeout: true,
		Filter:     MinimalFilter(),
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if response.NextBatch != "s456" {
		t.Errorf("unexpected next_batch: %s", response.NextBatch)
	}
	room, ok := response.Rooms.Join["!room1:local"]
	if !ok {
		t.Fatal("expected room !room1:local in sync response")
	}
	if room.UnreadNotifications.Total() != 3 {
		t.Errorf("expected 3 unread, got %d", room.UnreadNotifications.Total())
	}
	if len(room.Summary.Heroes) != 1 || room.Summary.Heroes[0] != "@bob:local" {
		t.Errorf("unexpected heroes: %v", room.Summary.Heroes)
	}
	if len(room.AccountData.Events) != 1 || !room.AccountData.Events[0].HasTag(TagFavourite) {
		t.Error("expected favourite tag in account data")
	}
	member := room.State.Events[0]
	if !member.HasStateKey("@bob:local") || member.ContentString("displayname") != "Bob" {
		t.Errorf("unexpected member event: %+v", member)
	}
	if room.Timeline.Events[0].OriginServerTS != 1700000000000 {
		t.Errorf("unexpected timestamp: %d", room.Timeline.Events[0].OriginServerTS)
	}
}

func TestSyncColdStartOmitsSince(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		query := request.URL.Query()
		if query.Has("since") {
			t.Errorf("cold start should not send since, got %q", query.Get("since"))
		}
		if query.Get("timeout") != "0" {
			t.Errorf("cold start should send timeout=0, got %q", query.Get("timeout"))
		}
		writeJSON(writer, SyncResponse{NextBatch: "s1"})
	}))

	if _, err := session.Sync(context.Background(), SyncOptions{SetTimeout: true}); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
}

func TestSyncUnauthorized(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(writer).Encode(map[string]string{
			"errcode": ErrCodeUnknownToken,
			"error":   "Invalid access token",
		})
	}))

	_, err := session.Sync(context.Background(), SyncOptions{})
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !IsAuthFailure(err) {
		t.Errorf("expected auth failure, got %v", err)
	}
	if !IsMatrixError(err, ErrCodeUnknownToken) {
		t.Errorf("expected M_UNKNOWN_TOKEN, got %v", err)
	}
}

func TestSyncCancelled(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		<-request.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Sync(ctx, SyncOptions{})
	if !IsCancellation(err) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestFetchMedia(t *testing.T) {
	t.Run("homeserver media is authenticated", func(t *testing.T) {
		server, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assertAuth(t, request, "test-token")
			writer.Header().Set("Content-Type", "image/png")
			writer.Write([]byte("png-bytes"))
		}))

		media, err := session.FetchMedia(context.Background(),
			server.URL+"/_matrix/client/v1/media/thumbnail/local/abc?width=64&height=64&method=crop")
		if err != nil {
			t.Fatalf("FetchMedia failed: %v", err)
		}
		if string(media.Data) != "png-bytes" {
			t.Errorf("unexpected data: %q", media.Data)
		}
		if media.ContentType != "image/png" {
			t.Errorf("unexpected content type: %s", media.ContentType)
		}
	})

	t.Run("foreign host gets no token", func(t *testing.T) {
		foreign := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if auth := request.Header.Get("Authorization"); auth != "" {
				t.Errorf("token leaked to foreign host: %q", auth)
			}
			writer.Write([]byte("ok"))
		}))
		t.Cleanup(foreign.Close)

		_, session := newTestSession(t, http.NotFoundHandler())
		if _, err := session.FetchMedia(context.Background(), foreign.URL+"/image"); err != nil {
			t.Fatalf("FetchMedia failed: %v", err)
		}
	})

	t.Run("non-200 is a MatrixError", func(t *testing.T) {
		server, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotFound)
			writer.Write([]byte(`{"errcode":"M_UNRECOGNIZED","error":"Unrecognized request"}`))
		}))

		_, err := session.FetchMedia(context.Background(), server.URL+"/_matrix/client/v1/media/thumbnail/local/abc")
		if StatusCode(err) != http.StatusNotFound {
			t.Errorf("expected 404 MatrixError, got %v", err)
		}
		if !IsMatrixError(err, ErrCodeUnrecognized) {
			t.Errorf("expected M_UNRECOGNIZED, got %v", err)
		}
	})
}

func assertAuth(t *testing.T, request *http.Request, expectedToken string) {
	t.Helper()
	auth := request.Header.Get("Authorization")
	expected := "Bearer " + expectedToken
	if auth != expected {
		t.Errorf("unexpected auth header: got %q, want %q", auth, expected)
	}
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}

func TestRoomsSectionOrder(t *testing.T) {
	var response SyncResponse
	data := `{"next_batch":"s1","rooms":{"join":{"!z:x":{},"!a:x":{},"!m:x":{}}}}`
	if err := json.Unmarshal([]byte(data), &response); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	order := response.Rooms.JoinedRoomIDs()
	expected := []string{"!z:x", "!a:x", "!m:x"}
	if len(order) != len(expected) {
		t.Fatalf("unexpected order %v", order)
	}
	for i := range expected {
		if string(order[i]) != expected[i] {
			t.Errorf("position %d = %s, want %s", i, order[i], expected[i])
		}
	}

	// Sections built in code fall back to sorted order.
	built := RoomsSection{Join: map[id.RoomID]JoinedRoom{"!b:x": {}, "!a:x": {}}}
	if ids := built.JoinedRoomIDs(); ids[0] != "!a:x" || ids[1] != "!b:x" {
		t.Errorf("unexpected fallback order %v", ids)
	}

	var empty SyncResponse
	if err := json.Unmarshal([]byte(`{"next_batch":"s2","rooms":{}}`), &empty); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(empty.Rooms.JoinedRoomIDs()) != 0 {
		t.Error("expected no rooms")
	}
}
