package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/audit_replay_parse_service/internal/domain/entity"
)

const (
	HiveTableParserName = "hive"

	hiveFieldSeparator = "\u0001"
	hiveFieldCount     = 6
)

// HiveTableParser reads lines exported by a Hive query storing uncompressed
// output, where fields are separated by U+0001:
//
//	relativeTimestampMs, ugi, command, src, dest, sourceIP
//
// The export must be sorted by relativeTimestampMs within each file; the
// parser relies on it but does not check it.
type HiveTableParser struct{}

func NewHiveTableParser() entity.CommandParser {
	return &HiveTableParser{}
}

func (p *HiveTableParser) Initialize(conf entity.Config) error {
	return nil
}

func (p *HiveTableParser) Parse(line string, rebase entity.RelativeToAbsolute) (entity.AuditReplayCommand, error) {
	fields := strings.Split(line, hiveFieldSeparator)
	if len(fields) != hiveFieldCount {
		return entity.AuditReplayCommand{}, entity.NewFormatError(line, fmt.Sprintf("expected %d fields, found %d", hiveFieldCount, len(fields)), nil)
	}

	relative, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return entity.AuditReplayCommand{}, entity.NewFormatError(line, "invalid relative timestamp", err)
	}

	absolute, err := rebase(relative)
	if err != nil {
		return entity.AuditReplayCommand{}, err
	}

	return entity.NewAuditReplayCommand(absolute, fields[1], fields[2], fields[3], fields[4], fields[5]), nil
}
