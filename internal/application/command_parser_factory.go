package application

import (
	"fmt"
	"sort"

	"github.com/audit_replay_parse_service/internal/application/parser"
	"github.com/audit_replay_parse_service/internal/domain/entity"
)

type CommandParserFactory struct {
	registrations map[string]func() entity.CommandParser
}

func NewCommandParserFactory(registrations []ParserRegistration) *CommandParserFactory {
	f := &CommandParserFactory{
		registrations: make(map[string]func() entity.CommandParser, len(registrations)),
	}
	for _, r := range registrations {
		f.registrations[r.Name] = r.Parser
	}
	return f
}

// NewDefaultCommandParserFactory knows every parser variant shipped with the service.
func NewDefaultCommandParserFactory() *CommandParserFactory {
	return NewCommandParserFactory([]ParserRegistration{
		{Name: parser.HiveTableParserName, Parser: parser.NewHiveTableParser},
		{Name: parser.DirectParserName, Parser: parser.NewDirectParser},
	})
}

// GetParser builds the named variant and initializes it with conf.
func (f *CommandParserFactory) GetParser(name string, conf entity.Config) (entity.CommandParser, error) {
	newParser, ok := f.registrations[name]
	if !ok {
		return nil, entity.NewInitializationError(name, fmt.Errorf("unknown parser, available: %v", f.Names()))
	}

	p := newParser()
	if err := p.Initialize(conf); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *CommandParserFactory) Names() []string {
	names := make([]string, 0, len(f.registrations))
	for name := range f.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
