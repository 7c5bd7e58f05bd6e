// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testAPIKey = "test-api-key"

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	if opts.Storage == nil {
		opts.Storage = newTestStorage(t)
	}
	if opts.DataDir == "" {
		opts.DataDir = "unused"
	}
	if opts.ServiceURL == "" {
		opts.ServiceURL = "https://playcall.example.com"
	}
	if opts.APIKey == "" {
		opts.APIKey = testAPIKey
	}
	return NewServerHandler(opts)
}

func TestSetupMode(t *testing.T) {
	// No service URL and no API key: setup screen only, no storage.
	handler := NewServerHandler(Options{})

	t.Run("ConfigReportsUnconfigured", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/config", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if resp["configured"] != false {
			t.Errorf("configured = %v, want false", resp["configured"])
		}
	})

	t.Run("APIRefused", func(t *testing.T) {
		for _, path := range []string{"/api/plays", "/api/games", "/api/session", "/api/state"} {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("%s: expected 503, got %d", path, w.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Errorf("%s: non-JSON error body: %v", path, err)
			} else if resp["error"] != "Service is not configured" {
				t.Errorf("%s: error = %q", path, resp["error"])
			}
		}
	})

	t.Run("ServesSetupScreen", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "PC_SERVICE_URL") {
			t.Error("Setup screen does not mention the required environment variables")
		}
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	handler := newTestHandler(t, Options{UseMockAuth: true})

	t.Run("MissingKey", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/plays", nil)
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: "user1@example.com"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", w.Code)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/plays", nil)
		req.Header.Set("X-Api-Key", "not-the-key")
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: "user1@example.com"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", w.Code)
		}
	})

	t.Run("ConfigIsExempt", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/config", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
	})
}

func TestHTTPHandlers(t *testing.T) {
	handler := newTestHandler(t, Options{UseMockAuth: true})
	userID := "coach@example.com"

	makeRequest := func(method, url, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("X-Api-Key", testAPIKey)
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: userID})
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	var sweepID, counterID, gameID string

	t.Run("Unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/plays", nil)
		req.Header.Set("X-Api-Key", testAPIKey)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("AddPlay", func(t *testing.T) {
		w := makeRequest("POST", "/api/plays", `{"name":"Sweep Right","icon":"run"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("AddPlay failed: %d - %s", w.Code, w.Body.String())
		}
		var play Play
		if err := json.Unmarshal(w.Body.Bytes(), &play); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if play.ID == "" || play.Name != "Sweep Right" || play.Icon != "run" {
			t.Errorf("Unexpected play: %+v", play)
		}
		sweepID = play.ID

		w = makeRequest("POST", "/api/plays", `{"name":"Counter","icon":"run"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("AddPlay failed: %d - %s", w.Code, w.Body.String())
		}
		var counter Play
		json.Unmarshal(w.Body.Bytes(), &counter)
		counterID = counter.ID
	})

	t.Run("AddPlayInvalidIcon", func(t *testing.T) {
		w := makeRequest("POST", "/api/plays", `{"name":"Bad","icon":"rocket"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		if !strings.Contains(resp["error"], "icon") {
			t.Errorf("error = %q, want an icon message", resp["error"])
		}
	})

	t.Run("ListPlaysWithETag", func(t *testing.T) {
		w := makeRequest("GET", "/api/plays", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ListPlays failed: %d", w.Code)
		}
		etag := w.Header().Get("ETag")
		if etag == "" {
			t.Fatal("Missing ETag header")
		}
		var resp struct {
			Plays []Play `json:"plays"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		// Alphabetical catalog order.
		if len(resp.Plays) != 2 || resp.Plays[0].Name != "Counter" {
			t.Errorf("Unexpected plays: %+v", resp.Plays)
		}

		req := httptest.NewRequest("GET", "/api/plays", nil)
		req.Header.Set("X-Api-Key", testAPIKey)
		req.Header.Set("If-None-Match", etag)
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: userID})
		w2 := httptest.NewRecorder()
		handler.ServeHTTP(w2, req)
		if w2.Code != http.StatusNotModified {
			t.Errorf("Expected 304, got %d", w2.Code)
		}
	})

	t.Run("AddGame", func(t *testing.T) {
		w := makeRequest("POST", "/api/games", `{"opponent":"Bears","gameDate":"2026-09-04"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("AddGame failed: %d - %s", w.Code, w.Body.String())
		}
		var game Game
		if err := json.Unmarshal(w.Body.Bytes(), &game); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if game.ID == "" || game.Opponent != "Bears" || game.GameDate != "2026-09-04" {
			t.Errorf("Unexpected game: %+v", game)
		}
		gameID = game.ID
	})

	t.Run("AddGameBadDate", func(t *testing.T) {
		w := makeRequest("POST", "/api/games", `{"opponent":"Bears","gameDate":"09/04/2026"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("RecordCall", func(t *testing.T) {
		body := fmt.Sprintf(`{"playId":%q,"gameId":%q,"yards":"7"}`, sweepID, gameID)
		w := makeRequest("POST", "/api/record-call", body)
		if w.Code != http.StatusOK {
			t.Fatalf("RecordCall failed: %d - %s", w.Code, w.Body.String())
		}
		var call PlayCall
		if err := json.Unmarshal(w.Body.Bytes(), &call); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if call.Yards != 7 || call.PlayID != sweepID || call.GameID != gameID {
			t.Errorf("Unexpected call: %+v", call)
		}
	})

	t.Run("RecordCallBadYards", func(t *testing.T) {
		body := fmt.Sprintf(`{"playId":%q,"gameId":%q,"yards":"seven"}`, sweepID, gameID)
		w := makeRequest("POST", "/api/record-call", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["error"] != "yards must be a whole number" {
			t.Errorf("error = %q", resp["error"])
		}
	})

	t.Run("RecordCallUnknownPlay", func(t *testing.T) {
		body := fmt.Sprintf(`{"playId":"99999999-9999-4999-8999-999999999999","gameId":%q,"yards":"3"}`, gameID)
		w := makeRequest("POST", "/api/record-call", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d - %s", w.Code, w.Body.String())
		}
	})

	t.Run("RecentCallsLimit", func(t *testing.T) {
		// One Sweep Right call exists already. Add 11 Counter calls so the
		// window fills past the limit.
		for i := 0; i < 11; i++ {
			body := fmt.Sprintf(`{"playId":%q,"gameId":%q,"yards":"%d"}`, counterID, gameID, i)
			if w := makeRequest("POST", "/api/record-call", body); w.Code != http.StatusOK {
				t.Fatalf("RecordCall %d failed: %d", i, w.Code)
			}
		}

		w := makeRequest("GET", "/api/recent-calls?gameId="+gameID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("RecentCalls failed: %d", w.Code)
		}
		var resp struct {
			Calls []RecentCall `json:"calls"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(resp.Calls) != RecentCallLimit {
			t.Fatalf("Expected %d calls, got %d", RecentCallLimit, len(resp.Calls))
		}
		if resp.Calls[0].Yards != 10 || resp.Calls[0].PlayName != "Counter" {
			t.Errorf("Newest call = %+v", resp.Calls[0])
		}
	})

	t.Run("CallStatsCoverRecentWindow", func(t *testing.T) {
		w := makeRequest("GET", "/api/call-stats?gameId="+gameID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("CallStats failed: %d", w.Code)
		}
		var resp struct {
			Stats []PlayStat `json:"stats"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		// The Sweep Right call and the oldest Counter call fell out of the
		// ten-call window, so only ten Counter calls remain.
		if len(resp.Stats) != 1 {
			t.Fatalf("Expected 1 stat row, got %d: %+v", len(resp.Stats), resp.Stats)
		}
		if resp.Stats[0].Name != "Counter" || resp.Stats[0].Count != 10 || resp.Stats[0].Avg != "5.5" {
			t.Errorf("Stats[0] = %+v", resp.Stats[0])
		}
	})

	t.Run("StateEndpoint", func(t *testing.T) {
		w := makeRequest("GET", "/api/state", "")
		if w.Code != http.StatusOK {
			t.Fatalf("State failed: %d - %s", w.Code, w.Body.String())
		}
		var state State
		if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if state.Session == nil || state.Session.Email != userID {
			t.Errorf("Session = %+v", state.Session)
		}
		if len(state.Plays) != 2 {
			t.Errorf("Expected 2 plays, got %d", len(state.Plays))
		}
		if state.ActiveGameID != gameID {
			t.Errorf("ActiveGameID = %q, want %q", state.ActiveGameID, gameID)
		}
		if len(state.RecentCalls) != RecentCallLimit {
			t.Errorf("Expected %d recent calls, got %d", RecentCallLimit, len(state.RecentCalls))
		}
		if w.Header().Get("ETag") == "" {
			t.Error("Missing ETag header")
		}
	})

	t.Run("DeletePlayCascades", func(t *testing.T) {
		w := makeRequest("POST", "/api/delete-play", fmt.Sprintf(`{"id":%q}`, counterID))
		if w.Code != http.StatusOK {
			t.Fatalf("DeletePlay failed: %d - %s", w.Code, w.Body.String())
		}

		w = makeRequest("GET", "/api/recent-calls?gameId="+gameID, "")
		var resp struct {
			Calls []RecentCall `json:"calls"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		for _, c := range resp.Calls {
			if c.PlayName == "Counter" {
				t.Fatalf("Call for deleted play survived: %+v", c)
			}
		}
		if len(resp.Calls) != 1 {
			t.Errorf("Expected 1 remaining call, got %d", len(resp.Calls))
		}
	})

	t.Run("DeletePlayNotFound", func(t *testing.T) {
		w := makeRequest("POST", "/api/delete-play", `{"id":"99999999-9999-4999-8999-999999999999"}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("Varz", func(t *testing.T) {
		w := makeRequest("GET", "/api/varz", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Varz failed: %d", w.Code)
		}
		var snap VarzSnapshot
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if snap.Requests == 0 {
			t.Error("Monitor recorded no requests")
		}
	})

	t.Run("SecurityHeaders", func(t *testing.T) {
		w := makeRequest("GET", "/api/session", "")
		if w.Header().Get("X-Frame-Options") != "DENY" {
			t.Error("Missing X-Frame-Options header")
		}
		if w.Header().Get("Cache-Control") != "private, no-cache, no-transform" {
			t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
		}
	})
}

func TestRevisionETags(t *testing.T) {
	handler := newTestHandler(t, Options{UseMockAuth: true})
	userID := "coach@example.com"

	makeRequest := func(method, url, body, ifNoneMatch string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("X-Api-Key", testAPIKey)
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: userID})
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if ifNoneMatch != "" {
			req.Header.Set("If-None-Match", ifNoneMatch)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	var playID, gameID string

	t.Run("MutationInvalidatesPlaysETag", func(t *testing.T) {
		w := makeRequest("GET", "/api/plays", "", "")
		etag := w.Header().Get("ETag")
		if etag == "" {
			t.Fatal("Missing ETag header")
		}
		if w := makeRequest("GET", "/api/plays", "", etag); w.Code != http.StatusNotModified {
			t.Fatalf("Expected 304, got %d", w.Code)
		}

		w = makeRequest("POST", "/api/plays", `{"name":"Dive","icon":"run"}`, "")
		if w.Code != http.StatusOK {
			t.Fatalf("AddPlay failed: %d - %s", w.Code, w.Body.String())
		}
		var play Play
		json.Unmarshal(w.Body.Bytes(), &play)
		playID = play.ID

		w = makeRequest("GET", "/api/plays", "", etag)
		if w.Code != http.StatusOK {
			t.Fatalf("Stale ETag still matched: %d", w.Code)
		}
		if next := w.Header().Get("ETag"); next == etag {
			t.Errorf("ETag did not change after mutation: %q", next)
		}
	})

	t.Run("MutationInvalidatesGamesETag", func(t *testing.T) {
		w := makeRequest("GET", "/api/games", "", "")
		etag := w.Header().Get("ETag")
		if etag == "" {
			t.Fatal("Missing ETag header")
		}

		w = makeRequest("POST", "/api/games", `{"opponent":"Hawks","gameDate":"2026-09-11"}`, "")
		if w.Code != http.StatusOK {
			t.Fatalf("AddGame failed: %d - %s", w.Code, w.Body.String())
		}
		var game Game
		json.Unmarshal(w.Body.Bytes(), &game)
		gameID = game.ID

		if w := makeRequest("GET", "/api/games", "", etag); w.Code != http.StatusOK {
			t.Errorf("Stale ETag still matched: %d", w.Code)
		}
	})

	t.Run("RecordCallInvalidatesCallsETag", func(t *testing.T) {
		w := makeRequest("GET", "/api/recent-calls?gameId="+gameID, "", "")
		etag := w.Header().Get("ETag")
		if etag == "" {
			t.Fatal("Missing ETag header")
		}
		if w := makeRequest("GET", "/api/recent-calls?gameId="+gameID, "", etag); w.Code != http.StatusNotModified {
			t.Fatalf("Expected 304, got %d", w.Code)
		}

		body := fmt.Sprintf(`{"playId":%q,"gameId":%q,"yards":"5"}`, playID, gameID)
		if w := makeRequest("POST", "/api/record-call", body, ""); w.Code != http.StatusOK {
			t.Fatalf("RecordCall failed: %d - %s", w.Code, w.Body.String())
		}

		if w := makeRequest("GET", "/api/recent-calls?gameId="+gameID, "", etag); w.Code != http.StatusOK {
			t.Errorf("Stale ETag still matched: %d", w.Code)
		}
	})

	t.Run("DeletePlayInvalidatesBoth", func(t *testing.T) {
		playsTag := makeRequest("GET", "/api/plays", "", "").Header().Get("ETag")
		callsTag := makeRequest("GET", "/api/recent-calls?gameId="+gameID, "", "").Header().Get("ETag")

		w := makeRequest("POST", "/api/delete-play", fmt.Sprintf(`{"id":%q}`, playID), "")
		if w.Code != http.StatusOK {
			t.Fatalf("DeletePlay failed: %d - %s", w.Code, w.Body.String())
		}

		if w := makeRequest("GET", "/api/plays", "", playsTag); w.Code != http.StatusOK {
			t.Errorf("Stale plays ETag still matched: %d", w.Code)
		}
		if w := makeRequest("GET", "/api/recent-calls?gameId="+gameID, "", callsTag); w.Code != http.StatusOK {
			t.Errorf("Stale calls ETag still matched: %d", w.Code)
		}
	})
}

func TestSessionAuthFlow(t *testing.T) {
	handler := newTestHandler(t, Options{})

	makeRequest := func(method, url, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("X-Api-Key", testAPIKey)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	var authCookies []*http.Cookie

	t.Run("Signup", func(t *testing.T) {
		w := makeRequest("POST", "/api/signup", `{"email":"Coach@Example.com","password":"hunter22","teamName":"North Tigers"}`, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Signup failed: %d - %s", w.Code, w.Body.String())
		}
		var resp struct {
			Session *SessionInfo `json:"session"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if resp.Session == nil || resp.Session.Email != "coach@example.com" {
			t.Fatalf("Session = %+v", resp.Session)
		}
		if resp.Session.TeamName != "North Tigers" {
			t.Errorf("TeamName = %q", resp.Session.TeamName)
		}
		authCookies = w.Result().Cookies()
		if len(authCookies) == 0 {
			t.Fatal("No session cookie set")
		}
	})

	t.Run("SignupDuplicate", func(t *testing.T) {
		w := makeRequest("POST", "/api/signup", `{"email":"coach@example.com","password":"other","teamName":"X"}`, nil)
		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", w.Code)
		}
	})

	t.Run("SignupEmptyFields", func(t *testing.T) {
		for name, body := range map[string]string{
			"TeamName": `{"email":"new@example.com","password":"hunter22","teamName":""}`,
			"Password": `{"email":"new@example.com","password":"","teamName":"Tigers"}`,
			"Email":    `{"email":"","password":"hunter22","teamName":"Tigers"}`,
		} {
			w := makeRequest("POST", "/api/signup", body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d - %s", name, w.Code, w.Body.String())
			}
		}
	})

	t.Run("SessionWithCookie", func(t *testing.T) {
		w := makeRequest("GET", "/api/session", "", authCookies)
		if w.Code != http.StatusOK {
			t.Fatalf("Session failed: %d", w.Code)
		}
		var resp struct {
			Session *SessionInfo `json:"session"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Session == nil || resp.Session.Email != "coach@example.com" {
			t.Errorf("Session = %+v", resp.Session)
		}
	})

	t.Run("APIWithCookie", func(t *testing.T) {
		w := makeRequest("POST", "/api/plays", `{"name":"Dive","icon":"run"}`, authCookies)
		if w.Code != http.StatusOK {
			t.Errorf("AddPlay with session cookie failed: %d - %s", w.Code, w.Body.String())
		}
	})

	t.Run("ProfileUpdate", func(t *testing.T) {
		w := makeRequest("POST", "/api/profile", `{"teamName":"South Tigers"}`, authCookies)
		if w.Code != http.StatusOK {
			t.Fatalf("Profile update failed: %d", w.Code)
		}
		var p Profile
		json.Unmarshal(w.Body.Bytes(), &p)
		if p.TeamName != "South Tigers" {
			t.Errorf("TeamName = %q", p.TeamName)
		}

		// The session reflects the new name.
		w = makeRequest("GET", "/api/session", "", authCookies)
		var resp struct {
			Session *SessionInfo `json:"session"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Session == nil || resp.Session.TeamName != "South Tigers" {
			t.Errorf("Session = %+v", resp.Session)
		}
	})

	t.Run("SigninWrongPassword", func(t *testing.T) {
		w := makeRequest("POST", "/api/signin", `{"email":"coach@example.com","password":"wrong"}`, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("Signin", func(t *testing.T) {
		w := makeRequest("POST", "/api/signin", `{"email":"coach@example.com","password":"hunter22"}`, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Signin failed: %d - %s", w.Code, w.Body.String())
		}
		cookies := w.Result().Cookies()
		if len(cookies) == 0 {
			t.Error("No session cookie set")
		}

		// Signing in again must not undo a profile edit.
		w = makeRequest("GET", "/api/session", "", cookies)
		var resp struct {
			Session *SessionInfo `json:"session"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Session == nil || resp.Session.TeamName != "South Tigers" {
			t.Errorf("Session = %+v", resp.Session)
		}
	})

	t.Run("Signout", func(t *testing.T) {
		w := makeRequest("POST", "/api/signout", "", authCookies)
		if w.Code != http.StatusOK {
			t.Fatalf("Signout failed: %d", w.Code)
		}
		var cleared *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == "playcall_auth" {
				cleared = c
			}
		}
		if cleared == nil || cleared.MaxAge >= 0 || cleared.Value != "" {
			t.Errorf("Session cookie not cleared: %+v", cleared)
		}
	})

	t.Run("AnonymousSession", func(t *testing.T) {
		w := makeRequest("GET", "/api/session", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Session failed: %d", w.Code)
		}
		var resp struct {
			Session *SessionInfo `json:"session"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Session != nil {
			t.Errorf("Expected anonymous session, got %+v", resp.Session)
		}
	})

	t.Run("AnonymousAPI", func(t *testing.T) {
		w := makeRequest("GET", "/api/plays", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})
}

func TestRequireConfirmation(t *testing.T) {
	handler := newTestHandler(t, Options{RequireConfirm: true})

	makeRequest := func(method, url, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("X-Api-Key", testAPIKey)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("SignupPending", func(t *testing.T) {
		w := makeRequest("POST", "/api/signup", `{"email":"coach@example.com","password":"hunter22","teamName":"Tigers"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Signup failed: %d - %s", w.Code, w.Body.String())
		}
		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["pendingConfirmation"] != true {
			t.Errorf("pendingConfirmation = %v", resp["pendingConfirmation"])
		}
		if resp["session"] != nil {
			t.Errorf("session = %v, want null", resp["session"])
		}
		if len(w.Result().Cookies()) != 0 {
			t.Error("Unconfirmed signup set a session cookie")
		}
	})

	t.Run("SigninBlocked", func(t *testing.T) {
		w := makeRequest("POST", "/api/signin", `{"email":"coach@example.com","password":"hunter22"}`)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", w.Code)
		}
	})
}
