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
	"strings"
	"sync"

	"github.com/c2FmZQ/storage"
)

// Play is one entry in a user's play catalog.
type Play struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	OwnerID   string `json:"ownerId"`
	CreatedAt int64  `json:"createdAt"`
}

// playFile is the on-disk representation of one owner's catalog.
type playFile struct {
	SchemaVersion int    `json:"schemaVersion"`
	OwnerID       string `json:"ownerId"`
	Plays         []Play `json:"plays"`
}

// PlayStore manages play catalog persistence to disk, one file per owner.
type PlayStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.RWMutex for each owner to protect writes and reads
}

// NewPlayStore creates a new PlayStore.
func NewPlayStore(dataDir string, s *storage.Storage) *PlayStore {
	return &PlayStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func (ps *PlayStore) lock(owner string) *sync.RWMutex {
	m, _ := ps.mu.LoadOrStore(owner, &sync.RWMutex{})
	return m.(*sync.RWMutex)
}

func playFilename(owner string) string {
	return filepath.Join("plays", fmt.Sprintf("%s.json", url.PathEscape(owner)))
}

// load reads one owner's catalog. A missing file is an empty catalog.
func (ps *PlayStore) load(owner string) (*playFile, error) {
	var pf playFile
	err := ps.storage.ReadDataFile(playFilename(owner), &pf)
	if err != nil {
		if os.IsNotExist(err) {
			return &playFile{SchemaVersion: SchemaVersionV1, OwnerID: owner, Plays: []Play{}}, nil
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if pf.Plays == nil {
		pf.Plays = []Play{}
	}
	return &pf, nil
}

// List returns the owner's plays ordered by name ascending.
func (ps *PlayStore) List(owner string) ([]Play, error) {
	mutex := ps.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	pf, err := ps.load(owner)
	if err != nil {
		return nil, err
	}
	plays := pf.Plays
	sort.SliceStable(plays, func(i, j int) bool {
		a, b := strings.ToLower(plays[i].Name), strings.ToLower(plays[j].Name)
		if a != b {
			return a < b
		}
		return plays[i].Name < plays[j].Name
	})
	return plays, nil
}

// Get returns one play by id, or os.ErrNotExist.
func (ps *PlayStore) Get(owner, id string) (*Play, error) {
	mutex := ps.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	pf, err := ps.load(owner)
	if err != nil {
		return nil, err
	}
	for i := range pf.Plays {
		if pf.Plays[i].ID == id {
			p := pf.Plays[i]
			return &p, nil
		}
	}
	return nil, os.ErrNotExist
}

// Add appends a play to the owner's catalog atomically.
func (ps *PlayStore) Add(owner string, p *Play) error {
	mutex := ps.lock(owner)
	mutex.Lock()
	defer mutex.Unlock()

	pf, err := ps.load(owner)
	if err != nil {
		return err
	}
	pf.Plays = append(pf.Plays, *p)
	if err := ps.storage.SaveDataFile(playFilename(owner), pf); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Delete removes a play from the owner's catalog. It returns os.ErrNotExist
// if the play is not in the catalog. Cascading the owner's call history is
// the caller's responsibility (see Repo.DeletePlay).
func (ps *PlayStore) Delete(owner, id string) error {
	mutex := ps.lock(owner)
	mutex.Lock()
	defer mutex.Unlock()

	pf, err := ps.load(owner)
	if err != nil {
		return err
	}
	kept := pf.Plays[:0]
	found := false
	for _, p := range pf.Plays {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return os.ErrNotExist
	}
	pf.Plays = kept
	if err := ps.storage.SaveDataFile(playFilename(owner), pf); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Count returns the number of plays in the owner's catalog.
func (ps *PlayStore) Count(owner string) (int, error) {
	mutex := ps.lock(owner)
	mutex.RLock()
	defer mutex.RUnlock()

	pf, err := ps.load(owner)
	if err != nil {
		return 0, err
	}
	return len(pf.Plays), nil
}
