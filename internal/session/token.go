package session

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Token identifies one utterance-to-reply generation cycle. Tokens are only
// ever compared for equality; a session's most recently activated token wins.
type Token string

var tokenSeq atomic.Uint64

// NewToken mints a token for an utterance in the given session. The sequence
// suffix keeps two tokens minted in the same nanosecond distinguishable.
func NewToken(sessionID string) Token {
	return Token(fmt.Sprintf("t%s_%d_%d", sessionID, time.Now().UnixNano(), tokenSeq.Add(1)))
}
