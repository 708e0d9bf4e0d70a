package session

// Features is the single source of truth for what the session runs. Every
// engine's enabled flag is derived from it.
type Features struct {
	TrackChanges bool `json:"track_changes" yaml:"track_changes" toml:"track_changes"`
	Readability  bool `json:"readability" yaml:"readability" toml:"readability"`
	Autocomplete bool `json:"autocomplete" yaml:"autocomplete" toml:"autocomplete"`
}

// Features returns the current flags.
func (s *Session) Features() Features {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.features
}

// SetFeatures applies every flag of f.
func (s *Session) SetFeatures(f Features) error {
	s.SetTrackChanges(f.TrackChanges)
	s.SetReadability(f.Readability)
	return s.SetAutocomplete(f.Autocomplete)
}

// SetTrackChanges switches suggestion mode.
func (s *Session) SetTrackChanges(on bool) {
	s.mu.Lock()
	s.features.TrackChanges = on
	s.mu.Unlock()
	s.tracker.SetEnabled(on)
}

// SetReadability switches the readability decorations.
func (s *Session) SetReadability(on bool) {
	s.mu.Lock()
	s.features.Readability = on
	s.mu.Unlock()
	s.readability.SetEnabled(on, s.ed.State())
}

// SetAutocomplete switches ghost text completions. Turning it off aborts the
// request in flight. It fails with ErrNoGenerator when no text generator is
// configured.
func (s *Session) SetAutocomplete(on bool) error {
	if s.autocomplete == nil {
		if on {
			return ErrNoGenerator
		}
		return nil
	}
	s.mu.Lock()
	s.features.Autocomplete = on
	s.mu.Unlock()
	s.autocomplete.SetEnabled(on)
	return nil
}
