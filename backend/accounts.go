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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAccountExists is returned when signing up with an email that
	// already has an account.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotConfirmed is returned when the account exists but has not been
	// confirmed yet.
	ErrNotConfirmed = errors.New("account requires email confirmation")
)

// Account is one credential record in the local auth store.
type Account struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	TeamName     string `json:"teamName,omitempty"`
	Confirmed    bool   `json:"confirmed"`
	CreatedAt    int64  `json:"createdAt"`
}

// AccountStore manages account persistence to disk, one file per email.
type AccountStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.Mutex for each email to protect writes
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(dataDir string, s *storage.Storage) *AccountStore {
	return &AccountStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func accountFilename(email string) string {
	return filepath.Join("accounts", fmt.Sprintf("%s.json", url.PathEscape(email)))
}

// Get returns the account for an email, or os.ErrNotExist.
func (as *AccountStore) Get(email string) (*Account, error) {
	email = normalizeEmail(email)
	var a Account
	err := as.storage.ReadDataFile(accountFilename(email), &a)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &a, nil
}

// Create registers a new account. The password is stored as a bcrypt hash.
// confirmed=false means the account cannot sign in until Confirm is called.
func (as *AccountStore) Create(email, password, teamName string, confirmed bool) (*Account, error) {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, validationErrorf("invalid email address")
	}
	if password == "" {
		return nil, validationErrorf("password is required")
	}
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return nil, validationErrorf("team name is required")
	}

	m, _ := as.mu.LoadOrStore(email, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	if _, err := as.Get(email); err == nil {
		return nil, ErrAccountExists
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}

	a := &Account{
		Email:        email,
		PasswordHash: string(hash),
		TeamName:     teamName,
		Confirmed:    confirmed,
		CreatedAt:    time.Now().UnixNano(),
	}
	if err := as.storage.SaveDataFile(accountFilename(email), a); err != nil {
		return nil, fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return a, nil
}

// Authenticate checks the credentials and returns the account on success.
func (as *AccountStore) Authenticate(email, password string) (*Account, error) {
	email = normalizeEmail(email)
	a, err := as.Get(email)
	if err != nil {
		if os.IsNotExist(err) {
			// Burn a hash comparison anyway so a missing account is not
			// distinguishable by timing.
			bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !a.Confirmed {
		return nil, ErrNotConfirmed
	}
	return a, nil
}

// Confirm marks an account as confirmed.
func (as *AccountStore) Confirm(email string) error {
	email = normalizeEmail(email)

	m, _ := as.mu.LoadOrStore(email, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	a, err := as.Get(email)
	if err != nil {
		return err
	}
	if a.Confirmed {
		return nil
	}
	a.Confirmed = true
	if err := as.storage.SaveDataFile(accountFilename(email), a); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}
