package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/audit_replay_parse_service/internal/domain/entity"
)

const (
	DirectParserName = "direct"

	// LogStartTimeKey holds the epoch milliseconds that relative timestamps
	// are measured from. Required.
	LogStartTimeKey = "auditreplay.log-start-time.ms"
	// LogDateFormatKey holds a Go time layout for the line prefix.
	LogDateFormatKey = "auditreplay.log-date.format"
	// LogDateTimeZoneKey holds an IANA zone name for the line prefix.
	LogDateTimeZoneKey = "auditreplay.log-date.time-zone"

	defaultLogDateFormat = "2006-01-02 15:04:05,000"
	defaultLogTimeZone   = "UTC"
)

var directLineRegex = regexp.MustCompile(`^(.+?) INFO [^:]+: (.+)$`)

// DirectParser reads NameNode audit log lines as written by the audit logger:
//
//	2017-01-01 00:00:00,000 INFO FSNamesystem.audit: allowed=true	ugi=hdfs (auth:SIMPLE)	ip=/10.0.0.1	cmd=open	src=/a	dst=null	perm=null
type DirectParser struct {
	startTimestamp int64
	dateFormat     string
	location       *time.Location
}

func NewDirectParser() entity.CommandParser {
	return &DirectParser{}
}

func (p *DirectParser) Initialize(conf entity.Config) error {
	start, ok, err := conf.Int64(LogStartTimeKey)
	if err != nil {
		return entity.NewInitializationError(DirectParserName, err)
	}
	if !ok {
		return entity.NewInitializationError(DirectParserName, fmt.Errorf("%s must be set", LogStartTimeKey))
	}

	location, err := time.LoadLocation(conf.Get(LogDateTimeZoneKey, defaultLogTimeZone))
	if err != nil {
		return entity.NewInitializationError(DirectParserName, err)
	}

	p.startTimestamp = start
	p.dateFormat = conf.Get(LogDateFormatKey, defaultLogDateFormat)
	p.location = location
	return nil
}

func (p *DirectParser) Parse(line string, rebase entity.RelativeToAbsolute) (entity.AuditReplayCommand, error) {
	if p.location == nil {
		return entity.AuditReplayCommand{}, entity.NewInitializationError(DirectParserName, errors.New("parser used before Initialize"))
	}

	matches := directLineRegex.FindStringSubmatch(line)
	if matches == nil {
		return entity.AuditReplayCommand{}, entity.NewFormatError(line, "not an audit log line", nil)
	}

	eventTime, err := time.ParseInLocation(p.dateFormat, matches[1], p.location)
	if err != nil {
		return entity.AuditReplayCommand{}, entity.NewFormatError(line, "invalid event time", err)
	}

	params := make(map[string]string, 8)
	for _, pair := range strings.Split(matches[2], "\t") {
		key, value, ok := strings.Cut(pair, "=")
		if ok {
			params[key] = value
		}
	}

	for _, key := range []string{"ugi", "ip", "cmd", "src", "dst"} {
		if _, ok := params[key]; !ok {
			return entity.AuditReplayCommand{}, entity.NewFormatError(line, "missing field "+key, nil)
		}
	}

	// "user (auth:SIMPLE)" and proxied "user (auth:PROXY) via ..." keep only the user
	ugi, _, _ := strings.Cut(params["ugi"], " ")
	dst := params["dst"]
	if dst == "null" {
		dst = ""
	}

	absolute, err := rebase(eventTime.UnixMilli() - p.startTimestamp)
	if err != nil {
		return entity.AuditReplayCommand{}, err
	}

	return entity.NewAuditReplayCommand(
		absolute,
		ugi,
		params["cmd"],
		params["src"],
		dst,
		strings.TrimPrefix(params["ip"], "/"),
	), nil
}
