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

import "sync"

// SessionInfo is the signed-in identity as exposed to clients.
type SessionInfo struct {
	Email    string `json:"email"`
	TeamName string `json:"teamName"`
}

// State is the full client-facing view for one user. All transitions go
// through Apply so that there is exactly one place where it changes.
type State struct {
	Session      *SessionInfo `json:"session"`
	Plays        []Play       `json:"plays"`
	Games        []Game       `json:"games"`
	ActiveGameID string       `json:"activeGameId"`
	RecentCalls  []RecentCall `json:"recentCalls"`
}

// Event mutates a State. Events are pure: they return the next state and
// never touch storage or the network.
type Event interface {
	apply(s State) State
}

// collection identifies one independently fetched slice of the state.
type collection int

const (
	colPlays collection = iota
	colGames
	colCalls
	numCollections
)

// SessionChanged replaces the session identity. A nil session is a
// sign-out and wipes all user data from the state.
type SessionChanged struct {
	Session *SessionInfo
}

func (e SessionChanged) apply(s State) State {
	if e.Session == nil {
		return State{}
	}
	s.Session = e.Session
	return s
}

// PlaysLoaded replaces the play catalog.
type PlaysLoaded struct {
	Plays []Play
}

func (e PlaysLoaded) apply(s State) State {
	s.Plays = e.Plays
	return s
}

// GamesLoaded replaces the game list. When the previously active game is
// gone, the newest game becomes active.
type GamesLoaded struct {
	Games []Game
}

func (e GamesLoaded) apply(s State) State {
	s.Games = e.Games
	found := false
	for _, g := range e.Games {
		if g.ID == s.ActiveGameID {
			found = true
			break
		}
	}
	if !found {
		s.ActiveGameID = ""
		s.RecentCalls = nil
		if len(e.Games) > 0 {
			s.ActiveGameID = e.Games[0].ID
		}
	}
	return s
}

// GameAdded appends a new game and makes it active.
type GameAdded struct {
	Game Game
}

func (e GameAdded) apply(s State) State {
	games := make([]Game, 0, len(s.Games)+1)
	games = append(games, s.Games...)
	games = append(games, e.Game)
	s.Games = games
	s.ActiveGameID = e.Game.ID
	s.RecentCalls = nil
	return s
}

// ActiveGameChanged selects a different game. Unknown ids are ignored.
type ActiveGameChanged struct {
	GameID string
}

func (e ActiveGameChanged) apply(s State) State {
	for _, g := range s.Games {
		if g.ID == e.GameID {
			s.ActiveGameID = e.GameID
			s.RecentCalls = nil
			return s
		}
	}
	return s
}

// CallsLoaded replaces the recent calls for the active game.
type CallsLoaded struct {
	GameID string
	Calls  []RecentCall
}

func (e CallsLoaded) apply(s State) State {
	if e.GameID != s.ActiveGameID {
		// The active game changed while the fetch was in flight.
		return s
	}
	s.RecentCalls = e.Calls
	return s
}

// CallRecorded prepends a call to the recent list, keeping at most
// RecentCallLimit entries.
type CallRecorded struct {
	Call RecentCall
}

func (e CallRecorded) apply(s State) State {
	if e.Call.GameID != s.ActiveGameID {
		return s
	}
	calls := make([]RecentCall, 0, len(s.RecentCalls)+1)
	calls = append(calls, e.Call)
	calls = append(calls, s.RecentCalls...)
	if len(calls) > RecentCallLimit {
		calls = calls[:RecentCallLimit]
	}
	s.RecentCalls = calls
	return s
}

// StateStore holds the current State for one user and guards against
// out-of-order fetch responses with per-collection request generations.
type StateStore struct {
	mu    sync.Mutex
	state State
	gen   [numCollections]uint64
}

// NewStateStore returns an empty store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// Current returns a snapshot of the state.
func (ss *StateStore) Current() State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state
}

// Apply runs the event against the current state.
func (ss *StateStore) Apply(e Event) State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.state = e.apply(ss.state)
	return ss.state
}

// NextRequest starts a new fetch for a collection and returns its token.
// Any fetch started earlier for the same collection becomes stale.
func (ss *StateStore) NextRequest(c collection) uint64 {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.gen[c]++
	return ss.gen[c]
}

// ApplyIfCurrent runs the event only when token still identifies the
// latest fetch for the collection. It reports whether the event applied.
func (ss *StateStore) ApplyIfCurrent(c collection, token uint64, e Event) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if token != ss.gen[c] {
		return false
	}
	ss.state = e.apply(ss.state)
	return true
}
