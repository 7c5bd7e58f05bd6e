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
	"sync"

	"github.com/c2FmZQ/storage"
)

// PlayCall is one recorded instance of running a play during a game.
// Calls are immutable once created; the only way one disappears is the
// cascade when its play is deleted.
type PlayCall struct {
	ID        string `json:"id"`
	PlayID    string `json:"playId"`
	GameID    string `json:"gameId"`
	Yards     int    `json:"yards"`
	CreatedAt int64  `json:"createdAt"`
}

// callFile is the on-disk representation of one owner's call log, in
// creation order (oldest first).
type callFile struct {
	SchemaVersion int        `json:"schemaVersion"`
	OwnerID       string     `json:"ownerId"`
	Calls         []PlayCall `json:"calls"`
}

// CallStore manages the append-only play-call log, one file per owner.
type CallStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.RWMutex for each owner to protect writes and reads
}

// NewCallStore creates a new CallStore.
func NewCallStore(dataDir string, s *storage.Storage) *CallStore {
	return &CallStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func (cs *CallStore) lock(owner string) *sync.RWMutex {
	m, _ := cs.mu.LoadOrStore(owner, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func callFilename(owner string) string {
	return filepath.Join("calls", fmt.Sprintf("%s.json", url.PathEscape(owner)))
}

func (cs *CallStore) load(owner string) (*callFile, error) {
	var cf callFile
	err := cs.storage.ReadDataFile(callFilename(owner), &cf)
	if err != nil {
		if os.IsNotExist(err) {
			return &callFile{SchemaVersion: SchemaVersionV1, OwnerID: owner, Calls: []PlayCall{}}, nil
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if cf.Calls == nil {
		cf.Calls = []PlayCall{}
	}
	return &cf, nil
}

// Insert appends a call record to the owner's log atomically.
func (cs *CallStore) Insert(owner string, c *PlayCall) error {
	mutex := cs.lock(owner)
	mutex.Lock()
	defer mutex.Unlock()

	cf, err := cs.load(owner)
	if err != nil {
		return err
	}
	cf.Calls = append(cf.Calls, *c)
	if err := cs.storage.SaveDataFile(callFilename(owner), cf); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// ListByGame returns up to limit of the owner's calls for one game, newest
// first. limit <= 0 means no limit.
func (cs *CallStore) ListByGame(owner, gameID string, limit int) ([]PlayCall, error) {
	mutex := cs.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	cf, err := cs.load(owner)
	if err != nil {
		return nil, err
	}
	calls := []PlayCall{}
	// The log is append-only, so walking backwards yields newest-first.
	for i := len(cf.Calls) - 1; i >= 0; i-- {
		if cf.Calls[i].GameID != gameID {
			continue
		}
		calls = append(calls, cf.Calls[i])
		if limit > 0 && len(calls) >= limit {
			break
		}
	}
	return calls, nil
}

// DeleteByPlay removes every call of one play across all of the owner's
// games. It returns the number of calls removed.
func (cs *CallStore) DeleteByPlay(owner, playID string) (int, error) {
	mutex := cs.lock(owner)
	mutex.Lock()
	defer mutex.Unlock()

	cf, err := cs.load(owner)
	if err != nil {
		return 0, err
	}
	kept := cf.Calls[:0]
	removed := 0
	for _, c := range cf.Calls {
		if c.PlayID == playID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed == 0 {
		return 0, nil
	}
	cf.Calls = kept
	if err := cs.storage.SaveDataFile(callFilename(owner), cf); err != nil {
		return 0, fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return removed, nil
}
