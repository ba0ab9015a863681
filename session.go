package clearpart

import (
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// ErrorAction is what an ErrorHandler wants done about a failed reset.
type ErrorAction int

const (
	// ErrorRaise - give up and return the error.
	ErrorRaise ErrorAction = iota

	// ErrorRetry - run the reset again.
	ErrorRetry
)

// ErrorHandler decides whether a failed reset is retried.
type ErrorHandler func(error) ErrorAction

// Session is the installer's storage session. It owns one reset cycle at a
// time: the configuration snapshot, the protected devices and the sealed
// graph. A Session is not safe for concurrent use.
type Session struct {
	backend  Backend
	source   Source
	log      Logger
	resolver *Resolver
	liveOS   bool

	// specs requested by the caller on top of the configured ones
	extraSpecs []string

	cfg        Config
	sealed     *Sealed
	protection Protection
	free       *FreeSpaceCalculator
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// WithLiveDetector sets the live medium detector. nil disables detection.
func WithLiveDetector(l *LiveDetector) SessionOption {
	return func(s *Session) {
		s.resolver.Live = l
	}
}

// WithLiveOS tells the session it runs on a live OS, where protected
// device specs that do not resolve are tolerated.
func WithLiveOS(live bool) SessionOption {
	return func(s *Session) {
		s.liveOS = live
	}
}

// NewSession returns a session over backend reading its configuration from
// source. Reset must be called before anything else.
func NewSession(backend Backend, source Source, opts ...SessionOption) *Session {
	s := &Session{
		backend:  backend,
		source:   source,
		log:      NewLogger(),
		resolver: &Resolver{Live: NewLiveDetector()},
	}

	for _, o := range opts {
		o(s)
	}

	s.resolver.Log = s.log

	return s
}

// Reset reads the configuration, rescans the device graph and recomputes
// the protected devices. Backend failures are returned as
// *StorageBackendError; the caller may retry.
func (s *Session) Reset() error {
	cfg, err := s.source.Config()
	if err != nil {
		return errors.Wrap(err, "failed to read storage configuration")
	}

	if verr := cfg.Validate(); verr != nil {
		s.log.Warnf("storage configuration: %v", verr)
	}

	for _, spec := range s.extraSpecs {
		if !contains(cfg.ProtectedDevSpecs, spec) {
			cfg.ProtectedDevSpecs = append(cfg.ProtectedDevSpecs, spec)
		}
	}

	if s.sealed != nil && !cmp.Equal(s.cfg, cfg) {
		s.log.Debugf("storage configuration changed: %s", cmp.Diff(s.cfg, cfg))
	}

	s.sealed = nil
	s.free = nil

	if err := s.backend.Populate(); err != nil {
		return &StorageBackendError{Op: "populate", Err: err}
	}

	sealed, protection, err := s.resolver.Protect(s.backend, cfg.ProtectedDevSpecs)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.sealed = sealed
	s.protection = protection
	s.free = NewFreeSpaceCalculator(sealed, cfg)

	dumpState(s.log, "initial", sealed)

	return nil
}

// Initialize resets the session, retrying as long as handler asks for it,
// with protected added to the configured protected device specs. If
// protected is not empty and nothing ended up protected the installation
// source cannot be found and *UnknownSourceDeviceError is returned, unless
// running on a live OS.
func (s *Session) Initialize(protected []string, handler ErrorHandler) error {
	for _, spec := range protected {
		if !contains(s.extraSpecs, spec) {
			s.extraSpecs = append(s.extraSpecs, spec)
		}
	}

	for {
		err := s.Reset()
		if err == nil {
			break
		}

		if handler == nil || handler(err) == ErrorRaise {
			return err
		}

		s.log.Warnf("storage reset failed, retrying: %v", err)
	}

	if len(protected) == 0 || s.liveOS {
		return nil
	}

	for _, d := range s.sealed.Devices() {
		if d.Protected {
			return nil
		}
	}

	return &UnknownSourceDeviceError{Specs: protected}
}

// Config returns the configuration of the current reset cycle.
func (s *Session) Config() Config {
	return s.cfg
}

// Graph returns the sealed graph of the current reset cycle.
func (s *Session) Graph() (*Sealed, error) {
	if s.sealed == nil {
		return nil, ErrNotReset
	}

	return s.sealed, nil
}

// Protection returns the protected devices of the current reset cycle.
func (s *Session) Protection() Protection {
	return s.protection
}

// Disks returns the disks currently in the graph.
func (s *Session) Disks() ([]Device, error) {
	if s.sealed == nil {
		return nil, ErrNotReset
	}

	return s.sealed.Disks(), nil
}

// ShouldClear returns true if the named device would be cleared.
func (s *Session) ShouldClear(name string, overrides ...Override) (bool, error) {
	if s.sealed == nil {
		return false, ErrNotReset
	}

	d, ok := s.sealed.Device(name)
	if !ok {
		return false, errors.Wrap(ErrDeviceNotFound, name)
	}

	return ShouldClear(s.sealed, d, s.cfg, overrides...), nil
}

// ClearPartitions runs a clearing pass and drops the free space snapshot.
func (s *Session) ClearPartitions() (ClearResult, error) {
	if s.sealed == nil {
		return ClearResult{}, ErrNotReset
	}

	defer s.free.Invalidate()

	return ClearPartitions(s.sealed, s.cfg, s.log)
}

// GetFreeSpace computes the free space of disks (all disks when empty),
// optionally with a different clear type.
func (s *Session) GetFreeSpace(disks []string, clearType *ClearType) (FreeSpaceReport, error) {
	if s.sealed == nil {
		return nil, ErrNotReset
	}

	return s.free.Compute(disks, clearType), nil
}

// FreeSpaceSnapshot returns the memoized free space of all disks.
func (s *Session) FreeSpaceSnapshot() (FreeSpaceReport, error) {
	if s.sealed == nil {
		return nil, ErrNotReset
	}

	return s.free.Snapshot(), nil
}

// CreateFreeSpaceSnapshot recomputes the memoized free space.
func (s *Session) CreateFreeSpaceSnapshot() (FreeSpaceReport, error) {
	if s.sealed == nil {
		return nil, ErrNotReset
	}

	return s.free.Refresh(), nil
}

// InvalidateFreeSpace drops the memoized free space. Call it whenever the
// graph is changed outside of the session.
func (s *Session) InvalidateFreeSpace() {
	if s.free != nil {
		s.free.Invalidate()
	}
}

// FileSystemFreeSpace returns the free space in / and /usr.
func (s *Session) FileSystemFreeSpace() (uint64, error) {
	if s.sealed == nil {
		return 0, ErrNotReset
	}

	return FileSystemFreeSpace(s.sealed), nil
}

// ResolveProtected resolves specs against the current graph without marking
// anything.
func (s *Session) ResolveProtected(specs []string) (Protection, error) {
	if s.sealed == nil {
		return Protection{}, ErrNotReset
	}

	return s.resolver.Resolve(s.sealed, specs), nil
}
