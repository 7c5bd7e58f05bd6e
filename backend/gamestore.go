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
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/c2FmZQ/storage"
)

// Game is one scheduled or played game against an opponent.
type Game struct {
	ID        string `json:"id"`
	Opponent  string `json:"opponent"`
	GameDate  string `json:"gameDate"` // YYYY-MM-DD
	OwnerID   string `json:"ownerId"`
	CreatedAt int64  `json:"createdAt"`
}

// gameFile is the on-disk representation of one owner's game list.
type gameFile struct {
	SchemaVersion int    `json:"schemaVersion"`
	OwnerID       string `json:"ownerId"`
	Games         []Game `json:"games"`
}

// GameStore manages game persistence to disk, one file per owner.
type GameStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.RWMutex for each owner to protect writes and reads
}

// NewGameStore creates a new GameStore.
func NewGameStore(dataDir string, s *storage.Storage) *GameStore {
	return &GameStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func (gs *GameStore) lock(owner string) *sync.RWMutex {
	m, _ := gs.mu.LoadOrStore(owner, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func gameFilename(owner string) string {
	return filepath.Join("games", fmt.Sprintf("%s.json", url.PathEscape(owner)))
}

func (gs *GameStore) load(owner string) (*gameFile, error) {
	var gf gameFile
	err := gs.storage.ReadDataFile(gameFilename(owner), &gf)
	if err != nil {
		if os.IsNotExist(err) {
			return &gameFile{SchemaVersion: SchemaVersionV1, OwnerID: owner, Games: []Game{}}, nil
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if gf.Games == nil {
		gf.Games = []Game{}
	}
	return &gf, nil
}

// List returns the owner's games ordered by date descending, most recent
// first. Same-day games are ordered by creation time descending.
func (gs *GameStore) List(owner string) ([]Game, error) {
	mutex := gs.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	gf, err := gs.load(owner)
	if err != nil {
		return nil, err
	}
	games := gf.Games
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].GameDate != games[j].GameDate {
			return games[i].GameDate > games[j].GameDate
		}
		return games[i].CreatedAt > games[j].CreatedAt
	})
	return games, nil
}

// Get returns one game by id, or os.ErrNotExist.
func (gs *GameStore) Get(owner, id string) (*Game, error) {
	mutex := gs.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	gf, err := gs.load(owner)
	if err != nil {
		return nil, err
	}
	for i := range gf.Games {
		if gf.Games[i].ID == id {
			g := gf.Games[i]
			return &g, nil
		}
	}
	return nil, os.ErrNotExist
}

// Add appends a game to the owner's list atomically.
func (gs *GameStore) Add(owner string, g *Game) error {
	mutex := gs.lock(owner)
	mutex.Lock()
	defer mutex.Unlock()

	gf, err := gs.load(owner)
	if err != nil {
		return err
	}
	gf.Games = append(gf.Games, *g)
	if err := gs.storage.SaveDataFile(gameFilename(owner), gf); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Count returns the number of games the owner has recorded.
func (gs *GameStore) Count(owner string) (int, error) {
	mutex := gs.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	gf, err := gs.load(owner)
	if err != nil {
		return 0, err
	}
	return len(gf.Games), nil
}
