package session

import "sync"

// Secret owns credential bytes for the lifetime of one collection run.
// Destroy zeroes the bytes; a destroyed Secret reports empty.
type Secret struct {
	mu        sync.Mutex
	b         []byte
	destroyed bool
}

// NewSecret copies s into a new Secret
func NewSecret(s string) *Secret {
	b := make([]byte, len(s))
	copy(b, s)
	return &Secret{b: b}
}

// NewSecretBytes takes ownership of b
func NewSecretBytes(b []byte) *Secret {
	return &Secret{b: b}
}

// Reveal returns a copy of the secret, or false once destroyed
func (s *Secret) Reveal() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return "", false
	}
	return string(s.b), true
}

// Empty reports whether the secret holds no bytes
func (s *Secret) Empty() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed || len(s.b) == 0
}

// Destroy zeroes and releases the secret bytes. Safe to call repeatedly.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
	s.destroyed = true
}

// Destroyed reports whether Destroy has been called
func (s *Secret) Destroyed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
