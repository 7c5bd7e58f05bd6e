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
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the data access surface the HTTP handlers talk to. Keeping
// it narrow makes the handlers testable against a fake.
type Repository interface {
	ListPlays(userID string) ([]Play, error)
	AddPlay(userID, name, icon string) (*Play, error)
	GetPlay(userID, playID string) (*Play, error)
	DeletePlay(userID, playID string) error

	ListGames(userID string) ([]Game, error)
	AddGame(userID, opponent, gameDate string) (*Game, error)
	GetGame(userID, gameID string) (*Game, error)

	RecordCall(userID, playID, gameID string, yards int) (*PlayCall, error)
	RecentCalls(userID, gameID string, limit int) ([]RecentCall, error)

	UpsertProfile(userID, teamName string) (*Profile, error)
	LoadProfile(userID string) (*Profile, error)
}

// Repo composes the per-collection stores and keeps the revision registry
// in step with every mutation.
type Repo struct {
	plays    *PlayStore
	games    *GameStore
	calls    *CallStore
	profiles *ProfileStore
	registry *RevisionRegistry
}

// NewRepo creates a Repo over the given stores.
func NewRepo(plays *PlayStore, games *GameStore, calls *CallStore, profiles *ProfileStore, registry *RevisionRegistry) *Repo {
	return &Repo{
		plays:    plays,
		games:    games,
		calls:    calls,
		profiles: profiles,
		registry: registry,
	}
}

func (r *Repo) ListPlays(userID string) ([]Play, error) {
	return r.plays.List(userID)
}

func (r *Repo) AddPlay(userID, name, icon string) (*Play, error) {
	name, err := ValidatePlayInput(name, icon)
	if err != nil {
		return nil, err
	}
	play := Play{
		ID:        uuid.New().String(),
		Name:      name,
		Icon:      icon,
		OwnerID:   userID,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := r.plays.Add(userID, &play); err != nil {
		return nil, err
	}
	r.registry.BumpPlays(userID)
	return &play, nil
}

func (r *Repo) GetPlay(userID, playID string) (*Play, error) {
	return r.plays.Get(userID, playID)
}

// DeletePlay removes the play and every call recorded against it, across
// all of the owner's games.
func (r *Repo) DeletePlay(userID, playID string) error {
	if !isValidUUID(playID) {
		return validationErrorf("invalid play id")
	}
	if err := r.plays.Delete(userID, playID); err != nil {
		return err
	}
	removed, err := r.calls.DeleteByPlay(userID, playID)
	if err != nil {
		return fmt.Errorf("play deleted but call cleanup failed: %w", err)
	}
	r.registry.BumpPlays(userID)
	if removed > 0 {
		r.registry.BumpCalls(userID)
	}
	return nil
}

func (r *Repo) ListGames(userID string) ([]Game, error) {
	return r.games.List(userID)
}

func (r *Repo) AddGame(userID, opponent, gameDate string) (*Game, error) {
	opponent, err := ValidateGameInput(opponent, gameDate)
	if err != nil {
		return nil, err
	}
	game := Game{
		ID:        uuid.New().String(),
		Opponent:  opponent,
		GameDate:  gameDate,
		OwnerID:   userID,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := r.games.Add(userID, &game); err != nil {
		return nil, err
	}
	r.registry.BumpGames(userID)
	return &game, nil
}

func (r *Repo) GetGame(userID, gameID string) (*Game, error) {
	return r.games.Get(userID, gameID)
}

// RecordCall validates the referenced play and game exist before inserting.
func (r *Repo) RecordCall(userID, playID, gameID string, yards int) (*PlayCall, error) {
	if _, err := r.plays.Get(userID, playID); err != nil {
		return nil, validationErrorf("unknown play")
	}
	if _, err := r.games.Get(userID, gameID); err != nil {
		return nil, validationErrorf("unknown game")
	}
	call := PlayCall{
		ID:        uuid.New().String(),
		PlayID:    playID,
		GameID:    gameID,
		Yards:     yards,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := r.calls.Insert(userID, &call); err != nil {
		return nil, err
	}
	r.registry.BumpCalls(userID)
	return &call, nil
}

// RecentCalls returns the newest calls for a game joined with their play's
// current name and icon. Calls whose play has since been deleted do not
// appear because DeletePlay cascades.
func (r *Repo) RecentCalls(userID, gameID string, limit int) ([]RecentCall, error) {
	calls, err := r.calls.ListByGame(userID, gameID, limit)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return []RecentCall{}, nil
	}
	plays, err := r.plays.List(userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Play, len(plays))
	for i := range plays {
		byID[plays[i].ID] = &plays[i]
	}
	out := make([]RecentCall, 0, len(calls))
	for _, c := range calls {
		play, ok := byID[c.PlayID]
		if !ok {
			// Orphaned call, skip it.
			continue
		}
		out = append(out, RecentCall{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			Yards:     c.Yards,
			PlayName:  play.Name,
			Icon:      play.Icon,
			GameID:    c.GameID,
		})
	}
	return out, nil
}

func (r *Repo) UpsertProfile(userID, teamName string) (*Profile, error) {
	p := &Profile{UserID: userID, TeamName: teamName}
	if err := r.profiles.Upsert(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repo) LoadProfile(userID string) (*Profile, error) {
	return r.profiles.Load(userID)
}
