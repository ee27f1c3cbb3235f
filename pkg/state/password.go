package state

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SetPassword hashes and stores the dashboard password.
func (s *Store) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Settings.PasswordHash = string(hash)
	return s.save()
}

// CheckPassword verifies a dashboard password attempt. An empty stored
// hash means no password is set and every attempt fails.
func (s *Store) CheckPassword(plain string) bool {
	s.mu.RLock()
	hash := s.data.Settings.PasswordHash
	s.mu.RUnlock()
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
