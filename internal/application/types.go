package application

import "github.com/audit_replay_parse_service/internal/domain/entity"

// ParserRegistration binds a configuration name to a parser variant.
type ParserRegistration struct {
	Name   string
	Parser func() entity.CommandParser
}
