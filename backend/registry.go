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
	"errors"
	"log"
	"net/url"
	"os"
	"sync"

	"github.com/c2FmZQ/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Revisions carries one monotonic counter per collection. Handlers use
// them for ETags and websocket change notices.
type Revisions struct {
	Plays uint64 `json:"plays"`
	Games uint64 `json:"games"`
	Calls uint64 `json:"calls"`
}

type revisionFile struct {
	SchemaVersion int       `json:"schemaVersion"`
	Revisions     Revisions `json:"revisions"`
}

// RevisionRegistry tracks collection revisions per owner. Counters are
// persisted so ETags stay valid across restarts, with an LRU cache in
// front to keep hot owners off the disk.
type RevisionRegistry struct {
	storage *storage.Storage
	cache   *lru.Cache[string, Revisions]
	mutexes sync.Map
}

// NewRevisionRegistry creates a registry caching up to size owners.
func NewRevisionRegistry(s *storage.Storage, size int) *RevisionRegistry {
	cache, err := lru.New[string, Revisions](size)
	if err != nil {
		// Only fails for size <= 0.
		log.Panicf("lru.New: %v", err)
	}
	return &RevisionRegistry{storage: s, cache: cache}
}

func (r *RevisionRegistry) lock(owner string) *sync.Mutex {
	mu, _ := r.mutexes.LoadOrStore(owner, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func revisionFilename(owner string) string {
	return "revisions/" + url.PathEscape(owner) + ".json"
}

// load returns the owner's revisions, consulting the cache first. The
// caller must hold the owner's lock.
func (r *RevisionRegistry) load(owner string) Revisions {
	if rev, ok := r.cache.Get(owner); ok {
		return rev
	}
	var file revisionFile
	if err := r.storage.ReadDataFile(revisionFilename(owner), &file); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Error reading revisions for owner: %v", err)
		}
		return Revisions{}
	}
	r.cache.Add(owner, file.Revisions)
	return file.Revisions
}

func (r *RevisionRegistry) save(owner string, rev Revisions) {
	file := revisionFile{SchemaVersion: SchemaVersionV1, Revisions: rev}
	if err := r.storage.SaveDataFile(revisionFilename(owner), &file); err != nil {
		// A lost bump only means a stale ETag until the next mutation.
		log.Printf("Error saving revisions for owner: %v", err)
	}
	r.cache.Add(owner, rev)
}

// Get returns the owner's current revisions.
func (r *RevisionRegistry) Get(owner string) Revisions {
	mu := r.lock(owner)
	mu.Lock()
	defer mu.Unlock()
	return r.load(owner)
}

// BumpPlays increments the plays counter and returns the new revisions.
func (r *RevisionRegistry) BumpPlays(owner string) Revisions {
	mu := r.lock(owner)
	mu.Lock()
	defer mu.Unlock()
	rev := r.load(owner)
	rev.Plays++
	r.save(owner, rev)
	return rev
}

// BumpGames increments the games counter and returns the new revisions.
func (r *RevisionRegistry) BumpGames(owner string) Revisions {
	mu := r.lock(owner)
	mu.Lock()
	defer mu.Unlock()
	rev := r.load(owner)
	rev.Games++
	r.save(owner, rev)
	return rev
}

// BumpCalls increments the calls counter and returns the new revisions.
func (r *RevisionRegistry) BumpCalls(owner string) Revisions {
	mu := r.lock(owner)
	mu.Lock()
	defer mu.Unlock()
	rev := r.load(owner)
	rev.Calls++
	r.save(owner, rev)
	return rev
}
