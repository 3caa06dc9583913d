package history

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/proposal"
	"treasury-exchange/pkg/wallet"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "history").Logger()
}

// Manager records submissions and reads them back
type Manager struct {
	storage *Storage
	now     func() time.Time
}

// NewManager creates a new history manager
func NewManager(storagePath string) (*Manager, error) {
	storage, err := NewStorage(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	return &Manager{
		storage: storage,
		now:     time.Now,
	}, nil
}

// Record stores the outcome of submitting p
func (m *Manager) Record(dao string, p *proposal.Proposal, res wallet.Result, submitErr error) (*Entry, error) {
	if p == nil {
		return nil, errors.New("proposal is required")
	}

	entry := &Entry{
		ID:              uuid.New().String(),
		Created:         m.now().UTC(),
		DAO:             dao,
		Status:          StatusSubmitted,
		Location:        res.Location,
		TransactionHash: res.TransactionHash,
		Proposal:        *p,
	}

	switch {
	case submitErr == nil:
	case feedback.IsUserRejection(submitErr):
		entry.Status = StatusRejected
	default:
		entry.Status = StatusFailed
		entry.Error = submitErr.Error()
	}

	if err := m.storage.Add(entry); err != nil {
		return nil, err
	}

	log.Debug().Str("id", entry.ID).Str("status", string(entry.Status)).Msg("Recorded proposal")
	return entry, nil
}

// Get retrieves an entry by ID
func (m *Manager) Get(id string) (*Entry, error) {
	return m.storage.Get(id)
}

// List returns all entries, newest first
func (m *Manager) List() []*Entry {
	return m.storage.List()
}

// Exchanges returns the entries whose description decodes as an exchange
func (m *Manager) Exchanges() []*Entry {
	all := m.storage.List()
	out := make([]*Entry, 0, len(all))
	for _, e := range all {
		if _, err := e.Exchange(); err != nil {
			log.Debug().Str("id", e.ID).Msg("Skipping entry that is not an exchange")
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetStoragePath returns the path where history is stored
func (m *Manager) GetStoragePath() string {
	return m.storage.GetFilePath()
}
