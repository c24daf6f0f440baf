package entity

// RelativeToAbsolute maps a relative timestamp to an absolute one.
type RelativeToAbsolute func(relative int64) (int64, error)

// CommandParser turns one raw audit line into an AuditReplayCommand.
// Initialize is called at most once, before any Parse call. After that Parse
// must be safe for concurrent use.
type CommandParser interface {
	Initialize(conf Config) error
	Parse(line string, rebase RelativeToAbsolute) (AuditReplayCommand, error)
}

type CommandRepository interface {
	Save(sessionID string, commands []AuditReplayCommand) error
}
