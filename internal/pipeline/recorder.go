package pipeline

import "context"

// Recorder receives conversation milestones for audit persistence. A nil
// Recorder disables recording. Failures are logged, never propagated: the
// timeline is an audit artifact, not part of the speech path.
type Recorder interface {
	RecordUtterance(ctx context.Context, sessionID, token, text string) error
	RecordReply(ctx context.Context, sessionID, token, text string) error
	RecordBargeIn(ctx context.Context, sessionID, token string) error
}
