package memory

import (
	"sync"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/sirupsen/logrus"
)

// CommandMemoryRepository keeps commands per session, for local runs and tests.
type CommandMemoryRepository struct {
	mu       sync.Mutex
	sessions map[string][]entity.AuditReplayCommand
	logger   logrus.FieldLogger
}

func NewCommandMemoryRepository(logger logrus.FieldLogger) *CommandMemoryRepository {
	return &CommandMemoryRepository{
		sessions: make(map[string][]entity.AuditReplayCommand),
		logger:   logger,
	}
}

func (r *CommandMemoryRepository) Save(sessionID string, commands []entity.AuditReplayCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = append(r.sessions[sessionID], commands...)
	for _, command := range commands {
		r.logger.WithFields(logrus.Fields{
			"session": sessionID,
			"ts":      command.AbsoluteTimestamp,
			"cmd":     command.Command,
			"src":     command.Source,
		}).Debug("command stored")
	}
	return nil
}

// Commands returns a copy of everything stored for sessionID.
func (r *CommandMemoryRepository) Commands(sessionID string) []entity.AuditReplayCommand {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.AuditReplayCommand(nil), r.sessions[sessionID]...)
}
