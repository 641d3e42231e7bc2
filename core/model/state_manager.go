// Package model provides the core interfaces and state management shared by
// all tabfit estimators and transformers.
package model

import (
	"fmt"
	"sync"
)

// StateManager manages the fitted state of an estimator in a thread-safe
// manner. Once fitted, an estimator's learned state is treated as immutable
// and may be shared read-only by concurrent consumers; StateManager also
// counts Transform uses so a transformer can refuse a second Fit that would
// silently recompute statistics after its output has been consumed.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Optional metadata - Public for gob encoding
	NFeatures int
	NSamples  int

	// Transforms counts completed Transform calls since the last Fit.
	Transforms int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{
		Fitted: false,
	}
}

// IsFitted returns whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
	s.Transforms = 0
}

// SetDimensions records the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RecordTransform increments the count of completed Transform calls.
func (s *StateManager) RecordTransform() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transforms++
}

// TransformCount returns how many Transform calls completed since the last Fit.
func (s *StateManager) TransformCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Transforms
}

// RequireFitted returns an error if the estimator has not been fitted.
func (s *StateManager) RequireFitted() error {
	if !s.IsFitted() {
		return fmt.Errorf("estimator has not been fitted yet. Call Fit() first")
	}
	return nil
}
