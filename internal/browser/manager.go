package browser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Driver names accepted by NewManager.
const (
	DriverAuto       = "auto"
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// SessionInfo describes a live session tracked by the Manager.
type SessionInfo struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	Driver    string    `json:"driver"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionRecord struct {
	meta    SessionInfo
	session Session
}

// Manager routes engines to drivers and tracks every session it hands out so
// Shutdown can reclaim any that a caller failed to close.
//
// With DriverAuto, chromium goes to rod and firefox/webkit go to playwright.
type Manager struct {
	driver  string
	drivers map[string]Launcher
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

// NewManager creates a manager using the named driver selection.
func NewManager(driver string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverAuto
	}
	switch driver {
	case DriverAuto, DriverRod, DriverPlaywright:
	default:
		return nil, fmt.Errorf("unknown browser driver %q", driver)
	}
	return NewManagerWithDrivers(driver, map[string]Launcher{
		DriverRod:        NewRodLauncher(logger),
		DriverPlaywright: NewPlaywrightLauncher(logger),
	}, logger), nil
}

// NewManagerWithDrivers creates a manager over custom launchers, keyed by
// driver name.
func NewManagerWithDrivers(driver string, drivers map[string]Launcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		driver:   driver,
		drivers:  drivers,
		logger:   logger,
		sessions: make(map[string]*sessionRecord),
	}
}

// DriverFor returns the driver name that serves engine.
func (m *Manager) DriverFor(engine string) string {
	if m.driver != DriverAuto {
		return m.driver
	}
	if engine == "chromium" {
		return DriverRod
	}
	return DriverPlaywright
}

// Launch starts engine on its driver and tracks the session.
func (m *Manager) Launch(ctx context.Context, engine string, opts LaunchOptions) (Session, error) {
	name := m.DriverFor(engine)
	l, ok := m.drivers[name]
	if !ok {
		return nil, fmt.Errorf("driver %s for %s: %w", name, engine, ErrDriverUnavailable)
	}

	sess, err := l.Launch(ctx, engine, opts)
	if err != nil {
		return nil, err
	}

	meta := SessionInfo{
		ID:        uuid.NewString(),
		Engine:    engine,
		Driver:    name,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, session: sess}
	m.mu.Unlock()

	m.logger.Debug("session opened", zap.String("session", meta.ID), zap.String("engine", engine), zap.String("driver", name))
	return &trackedSession{Session: sess, id: meta.ID, m: m}, nil
}

// List returns metadata for all live sessions.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]SessionInfo, 0, len(m.sessions))
	for _, rec := range m.sessions {
		results = append(results, rec.meta)
	}
	return results
}

// Shutdown closes any sessions still open and stops driver processes.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	leaked := make([]*sessionRecord, 0, len(m.sessions))
	for id, rec := range m.sessions {
		leaked = append(leaked, rec)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var err error
	for _, rec := range leaked {
		if ctx.Err() != nil {
			break
		}
		m.logger.Warn("closing leaked session", zap.String("session", rec.meta.ID), zap.String("engine", rec.meta.Engine))
		err = multierr.Append(err, rec.session.Close())
	}
	for _, l := range m.drivers {
		if c, ok := l.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

type trackedSession struct {
	Session
	id string
	m  *Manager
}

func (s *trackedSession) Close() error {
	s.m.forget(s.id)
	return s.Session.Close()
}
