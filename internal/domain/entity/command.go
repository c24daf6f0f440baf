package entity

// AuditReplayCommand is one audit event normalized for the replay engine.
// Values are handed to the caller by value; parsers keep no reference to them.
type AuditReplayCommand struct {
	AbsoluteTimestamp int64  `json:"absolute_timestamp" bson:"absolute_timestamp"`
	UserGroupInfo     string `json:"ugi" bson:"ugi"`
	Command           string `json:"command" bson:"command"`
	Source            string `json:"src" bson:"src"`
	Destination       string `json:"dest" bson:"dest"`
	SourceAddress     string `json:"source_ip" bson:"source_ip"`
}

func NewAuditReplayCommand(absoluteTimestamp int64, ugi, command, src, dest, sourceIP string) AuditReplayCommand {
	return AuditReplayCommand{
		AbsoluteTimestamp: absoluteTimestamp,
		UserGroupInfo:     ugi,
		Command:           command,
		Source:            src,
		Destination:       dest,
		SourceAddress:     sourceIP,
	}
}
