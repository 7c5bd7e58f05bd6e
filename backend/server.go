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
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/ttbt-io/playcall/frontend"
)

func generateETag(data []byte) string {
	return fmt.Sprintf("\"%x\"", sha256.Sum256(data))
}

// revisionETag builds a list-endpoint ETag from the owner's revision
// counter. Checking it before the store read makes a 304 cost nothing
// but a registry lookup.
func revisionETag(collection string, rev uint64) string {
	return fmt.Sprintf("\"%s-%d\"", collection, rev)
}

// Options represent server options.
type Options struct {
	Addr        string
	ServiceURL  string
	APIKey      string
	Cert        *tls.Certificate
	DataDir     string
	UseMockAuth bool
	Debug       bool
	Storage     *storage.Storage
	Listener    net.Listener

	// Injectable for tests.
	Repository Repository
	Accounts   *AccountStore
	Registry   *RevisionRegistry

	// Auth Options
	AuthCookieName  string
	AuthJWKSURL     string
	RequireConfirm  bool
	SessionLifetime time.Duration
}

// Server represents the running server instance.
type Server struct {
	httpServer *http.Server
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// StartServer starts the web server and registers the API handlers.
func StartServer(opts Options) (*Server, error) {
	handler := NewServerHandler(opts)

	httpServer := &http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}

	// TLS Config
	if opts.Cert != nil {
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*opts.Cert},
		}
	}

	// Start Server
	go func() {
		var err error
		if opts.Listener != nil {
			if httpServer.TLSConfig != nil {
				log.Printf("Starting HTTPS server on provided listener %s...", opts.Listener.Addr())
				err = httpServer.ServeTLS(opts.Listener, "", "")
			} else {
				log.Printf("Starting HTTP server on provided listener %s...", opts.Listener.Addr())
				err = httpServer.Serve(opts.Listener)
			}
		} else {
			log.Printf("Server starting on port %s...\n", opts.Addr)
			if opts.Cert != nil {
				err = httpServer.ListenAndServeTLS("", "")
			} else if _, statErr := os.Stat("certs/cert.pem"); statErr == nil {
				log.Println("Starting HTTPS server using certs/cert.pem...")
				err = httpServer.ListenAndServeTLS("certs/cert.pem", "certs/key.pem")
			} else {
				log.Println("Starting HTTP server...")
				err = httpServer.ListenAndServe()
			}
		}

		if err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return &Server{httpServer: httpServer}, nil
}

// writeError maps store and validation errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	if reason, ok := IsValidationError(err); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": reason})
		return
	}
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	log.Printf("Internal Server Error: %v", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// NewServerHandler creates and configures the HTTP handler for the server.
// When the service URL or API key is missing the handler serves the setup
// screen and refuses API calls. No storage is touched in that mode.
func NewServerHandler(opts Options) http.Handler {
	if opts.ServiceURL == "" || opts.APIKey == "" {
		return newSetupHandler(opts)
	}

	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}
	if opts.SessionLifetime <= 0 {
		opts.SessionLifetime = 30 * 24 * time.Hour
	}
	if opts.AuthCookieName == "" {
		opts.AuthCookieName = "playcall_auth"
	}

	registry := opts.Registry
	if registry == nil {
		registry = NewRevisionRegistry(opts.Storage, 1024)
	}

	repo := opts.Repository
	if repo == nil {
		repo = NewRepo(
			NewPlayStore(opts.DataDir, opts.Storage),
			NewGameStore(opts.DataDir, opts.Storage),
			NewCallStore(opts.DataDir, opts.Storage),
			NewProfileStore(opts.DataDir, opts.Storage),
			registry,
		)
	}

	accounts := opts.Accounts
	if accounts == nil {
		accounts = NewAccountStore(opts.DataDir, opts.Storage)
	}

	issuer, err := NewSessionIssuer(opts.Storage, opts.AuthCookieName, opts.SessionLifetime)
	if err != nil {
		log.Fatalf("Failed to initialize session issuer: %v", err)
	}

	hm := NewHubManager()
	mon := NewMonitor()

	debugf := func(string, ...any) {}
	if opts.Debug {
		debugf = func(f string, a ...any) {
			log.Printf("[DEBUG BACKEND] "+f, a...)
		}
	}

	secureCookies := opts.Cert != nil

	// sessionInfo builds the client-facing identity for a signed-in user.
	sessionInfo := func(userID string) *SessionInfo {
		info := &SessionInfo{Email: userID, TeamName: DefaultTeamName}
		if p, err := repo.LoadProfile(userID); err == nil {
			info.TeamName = p.TeamName
		} else if !errors.Is(err, os.ErrNotExist) {
			// The session survives a broken profile read.
			log.Printf("Warning: failed to load profile for %s: %v", maskEmail(userID), err)
		}
		return info
	}

	requireUser := func(w http.ResponseWriter, r *http.Request) (string, bool) {
		userID := getUserID(r)
		if userID == "" || !isValidEmail(userID) {
			http.Error(w, "Unauthenticated", http.StatusUnauthorized)
			return "", false
		}
		return userID, true
	}

	notify := func(userID, noticeType, gameID string) {
		hm.Notify(userID, ChangeNotice{
			Type:      noticeType,
			GameID:    gameID,
			Revisions: registry.Get(userID),
		})
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		// The app is the only intended consumer of the key. It needs it
		// to talk to the API it was served from.
		writeJSON(w, map[string]any{
			"configured": true,
			"serviceUrl": opts.ServiceURL,
			"apiKey":     opts.APIKey,
			"mockAuth":   opts.UseMockAuth,
		})
	})

	mux.HandleFunc("/api/signup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			TeamName string `json:"teamName"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}

		confirmed := !opts.RequireConfirm
		account, err := accounts.Create(req.Email, req.Password, req.TeamName, confirmed)
		if err != nil {
			if errors.Is(err, ErrAccountExists) {
				http.Error(w, "Conflict: An account with this email already exists", http.StatusConflict)
				return
			}
			writeError(w, err)
			return
		}

		// Profile creation failure is not fatal. The account exists and
		// the default team name applies until the next save.
		if _, err := repo.UpsertProfile(account.Email, req.TeamName); err != nil {
			log.Printf("Warning: failed to save profile for %s: %v", maskEmail(account.Email), err)
		}

		if !account.Confirmed {
			writeJSON(w, map[string]any{"session": nil, "pendingConfirmation": true})
			return
		}

		token, err := issuer.Issue(account.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		issuer.SetCookie(w, token, secureCookies)
		writeJSON(w, map[string]any{"session": sessionInfo(account.Email)})
	})

	mux.HandleFunc("/api/signin", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}

		account, err := accounts.Authenticate(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrNotConfirmed) {
				http.Error(w, "Forbidden: Account not confirmed", http.StatusForbidden)
				return
			}
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, "Unauthorized: Invalid email or password", http.StatusUnauthorized)
				return
			}
			writeError(w, err)
			return
		}

		token, err := issuer.Issue(account.Email)
		if err != nil {
			writeError(w, err)
			return
		}
		issuer.SetCookie(w, token, secureCookies)
		debugf("user %s signed in", maskEmail(account.Email))

		// Make sure a profile exists, carrying the team name from signup.
		// An existing profile is left alone. The session stays valid even
		// when the save fails.
		resp := map[string]any{}
		if _, err := repo.LoadProfile(account.Email); errors.Is(err, os.ErrNotExist) {
			if _, err := repo.UpsertProfile(account.Email, account.TeamName); err != nil {
				log.Printf("Warning: failed to save profile for %s: %v", maskEmail(account.Email), err)
				resp["warning"] = "profile could not be saved"
			}
		}
		resp["session"] = sessionInfo(account.Email)
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/signout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		if userID := getUserID(r); userID != "" {
			hm.Notify(userID, ChangeNotice{Type: NoticeSession})
		}
		issuer.ClearCookie(w)
		writeJSON(w, map[string]any{"session": nil})
	})

	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		userID := getUserID(r)
		if userID == "" {
			writeJSON(w, map[string]any{"session": nil})
			return
		}
		writeJSON(w, map[string]any{"session": sessionInfo(userID)})
	})

	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			p, err := repo.LoadProfile(userID)
			if errors.Is(err, os.ErrNotExist) {
				writeJSON(w, Profile{UserID: userID, TeamName: DefaultTeamName})
				return
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, p)
		case http.MethodPost:
			var req struct {
				TeamName string `json:"teamName"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
				http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
				return
			}
			p, err := repo.UpsertProfile(userID, req.TeamName)
			if err != nil {
				writeError(w, err)
				return
			}
			notify(userID, NoticeSession, "")
			writeJSON(w, p)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/plays", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			etag := revisionETag("plays", registry.Get(userID).Plays)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			plays, err := repo.ListPlays(userID)
			if err != nil {
				writeError(w, err)
				return
			}
			response, err := json.Marshal(map[string]any{"plays": plays})
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("ETag", etag)
			w.Header().Set("Content-Type", "application/json")
			w.Write(response)
		case http.MethodPost:
			var req struct {
				Name string `json:"name"`
				Icon string `json:"icon"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
				http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
				return
			}
			play, err := repo.AddPlay(userID, req.Name, req.Icon)
			if err != nil {
				writeError(w, err)
				return
			}
			notify(userID, NoticePlaysChanged, "")
			writeJSON(w, play)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/delete-play", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}

		if err := repo.DeletePlay(userID, req.ID); err != nil {
			writeError(w, err)
			return
		}
		notify(userID, NoticePlaysChanged, "")
		notify(userID, NoticeCallsChanged, "")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Play deleted successfully")
	})

	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			etag := revisionETag("games", registry.Get(userID).Games)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			games, err := repo.ListGames(userID)
			if err != nil {
				writeError(w, err)
				return
			}
			response, err := json.Marshal(map[string]any{"games": games})
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("ETag", etag)
			w.Header().Set("Content-Type", "application/json")
			w.Write(response)
		case http.MethodPost:
			var req struct {
				Opponent string `json:"opponent"`
				GameDate string `json:"gameDate"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
				http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
				return
			}
			game, err := repo.AddGame(userID, req.Opponent, req.GameDate)
			if err != nil {
				writeError(w, err)
				return
			}
			notify(userID, NoticeGamesChanged, game.ID)
			writeJSON(w, game)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/record-call", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			PlayID string `json:"playId"`
			GameID string `json:"gameId"`
			Yards  string `json:"yards"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1048576)).Decode(&req); err != nil {
			http.Error(w, "Bad Request: Malformed JSON", http.StatusBadRequest)
			return
		}

		yards, err := ValidateCallInput(req.PlayID, req.GameID, req.Yards)
		if err != nil {
			writeError(w, err)
			return
		}

		call, err := repo.RecordCall(userID, req.PlayID, req.GameID, yards)
		if err != nil {
			writeError(w, err)
			return
		}
		notify(userID, NoticeCallsChanged, req.GameID)
		writeJSON(w, call)
	})

	mux.HandleFunc("/api/recent-calls", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		gameID := r.URL.Query().Get("gameId")
		if gameID == "" || !isValidUUID(gameID) {
			http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
			return
		}

		// The calls counter is per owner, so a call recorded in one game
		// also invalidates the others. That only costs an extra refetch.
		etag := revisionETag("calls-"+gameID, registry.Get(userID).Calls)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		calls, err := repo.RecentCalls(userID, gameID, RecentCallLimit)
		if err != nil {
			writeError(w, err)
			return
		}
		response, err := json.Marshal(map[string]any{"calls": calls})
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
	})

	mux.HandleFunc("/api/call-stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		gameID := r.URL.Query().Get("gameId")
		if gameID == "" || !isValidUUID(gameID) {
			http.Error(w, "Bad Request: gameId is missing or invalid", http.StatusBadRequest)
			return
		}

		// Stats derive from the same window the recent list shows.
		calls, err := repo.RecentCalls(userID, gameID, RecentCallLimit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"stats": AggregateCalls(calls)})
	})

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		ss := NewStateStore()
		ss.Apply(SessionChanged{Session: sessionInfo(userID)})

		var wg sync.WaitGroup
		var playsErr, gamesErr error

		playsTok := ss.NextRequest(colPlays)
		wg.Add(1)
		go func() {
			defer wg.Done()
			plays, err := repo.ListPlays(userID)
			if err != nil {
				playsErr = err
				return
			}
			ss.ApplyIfCurrent(colPlays, playsTok, PlaysLoaded{Plays: plays})
		}()

		gamesTok := ss.NextRequest(colGames)
		wg.Add(1)
		go func() {
			defer wg.Done()
			games, err := repo.ListGames(userID)
			if err != nil {
				gamesErr = err
				return
			}
			ss.ApplyIfCurrent(colGames, gamesTok, GamesLoaded{Games: games})
		}()

		wg.Wait()
		if playsErr != nil {
			writeError(w, playsErr)
			return
		}
		if gamesErr != nil {
			writeError(w, gamesErr)
			return
		}

		// Recent calls depend on the active game picked above.
		if gameID := ss.Current().ActiveGameID; gameID != "" {
			tok := ss.NextRequest(colCalls)
			calls, err := repo.RecentCalls(userID, gameID, RecentCallLimit)
			if err != nil {
				writeError(w, err)
				return
			}
			ss.ApplyIfCurrent(colCalls, tok, CallsLoaded{GameID: gameID, Calls: calls})
		}

		response, err := json.Marshal(ss.Current())
		if err != nil {
			writeError(w, err)
			return
		}
		etag := generateETag(response)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
	})

	mux.HandleFunc("/api/varz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, mon.Snapshot())
	})

	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hm, registry, mon, w, r)
	})

	// Serve embedded frontend
	contentStatic, err := fs.Sub(frontend.FS, ".")
	if err != nil {
		log.Fatal(err)
	}
	mux.Handle("/", contentTypeMiddleware(http.FileServerFS(contentStatic)))

	handler := http.Handler(mux)
	handler = apiKeyMiddleware(opts.APIKey, handler)
	if opts.UseMockAuth {
		handler = mockAuthMiddleware(handler)
	} else if opts.AuthJWKSURL != "" {
		handler = jwtAuthMiddleware(opts, handler)
	} else {
		handler = sessionAuthMiddleware(issuer, handler)
	}
	handler = loggingMiddleware(mon, handler)
	handler = securityMiddleware(handler)
	handler = cacheControlMiddleware(handler)

	return handler
}

// newSetupHandler serves the setup screen when the service URL or API key
// is missing. Every API call fails with 503 so a misconfigured deployment
// is visible instead of silently writing to the wrong place.
func newSetupHandler(opts Options) http.Handler {
	log.Println("Service URL or API key missing, running in setup mode")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"configured": false})
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Service is not configured",
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(frontend.SetupHTML)
	})

	handler := http.Handler(mux)
	handler = loggingMiddleware(nil, handler)
	handler = securityMiddleware(handler)
	return handler
}

// apiKeyMiddleware rejects API calls that do not carry the configured key.
// The key travels in the X-Api-Key header, or in the apiKey query
// parameter for websocket connections where headers are awkward.
func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api/config" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-Api-Key")
		if key == "" && r.URL.Path == "/api/ws" {
			key = r.URL.Query().Get("apiKey")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			http.Error(w, "Forbidden: Invalid API key", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cacheControlMiddleware adds Cache-Control headers optimized for SPA reliability behind a proxy.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=300, proxy-revalidate, no-transform")
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: blob:")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// contentTypeMiddleware ensures that files are served with the correct MIME type.
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := filepath.Ext(r.URL.Path)
		switch ext {
		case ".js", ".mjs":
			w.Header().Set("Content-Type", "application/javascript")
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case ".png":
			w.Header().Set("Content-Type", "image/png")
		case ".json":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs the method and URL path of every incoming HTTP
// request and feeds the monitor.
func loggingMiddleware(mon *Monitor, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Received request: %s %s", r.Method, r.URL.Path)
		if mon == nil || !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		mon.RecordRequest(time.Since(start), sr.status)
	})
}
