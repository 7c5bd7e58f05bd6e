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
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// Profile holds per-user display settings, keyed by user id.
type Profile struct {
	UserID    string `json:"userId"`
	TeamName  string `json:"teamName"`
	UpdatedAt int64  `json:"updatedAt"`
}

// ProfileStore manages profile persistence to disk.
type ProfileStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.Mutex for each user to protect writes
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(dataDir string, s *storage.Storage) *ProfileStore {
	return &ProfileStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func profileFilename(userID string) string {
	return filepath.Join("profiles", fmt.Sprintf("%s.json", url.PathEscape(userID)))
}

// Upsert creates or replaces the user's profile. A blank team name falls
// back to DefaultTeamName.
func (ps *ProfileStore) Upsert(p *Profile) error {
	m, _ := ps.mu.LoadOrStore(p.UserID, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	if strings.TrimSpace(p.TeamName) == "" {
		p.TeamName = DefaultTeamName
	}
	if len(p.TeamName) > MaxTeamNameLen {
		p.TeamName = p.TeamName[:MaxTeamNameLen]
	}
	p.UpdatedAt = time.Now().UnixNano()

	if err := ps.storage.SaveDataFile(profileFilename(p.UserID), p); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Load returns the user's profile, or os.ErrNotExist.
func (ps *ProfileStore) Load(userID string) (*Profile, error) {
	var p Profile
	err := ps.storage.ReadDataFile(profileFilename(userID), &p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &p, nil
}
