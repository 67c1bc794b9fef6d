package protocol

// AudioFrame carries one chunk of linear PCM (16-bit mono) from a client
// toward the transcription stage.
type AudioFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// Packet types carried on a session's audio bus.
const (
	PacketAudio = "audio"
	PacketStop  = "stop"
)

// AudioPacket is one outbound item for a session: either synthesized audio
// for a sentence, or a stop control telling the client to flush its playback
// buffer immediately.
type AudioPacket struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	Sentence   string `json:"sentence,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Audio      []byte `json:"audio,omitempty"`
}

// Stop returns the control packet that invalidates buffered client audio.
func Stop(sessionID string) AudioPacket {
	return AudioPacket{Type: PacketStop, SessionID: sessionID}
}

const (
	subjectAudioInPrefix  = "audio.in."
	subjectAudioOutPrefix = "audio.out."
)

// SubjectAudioIn is the NATS subject carrying inbound frames for a session.
func SubjectAudioIn(sessionID string) string {
	return subjectAudioInPrefix + sessionID
}

// SubjectAudioOut is the NATS subject carrying outbound packets for a session.
func SubjectAudioOut(sessionID string) string {
	return subjectAudioOutPrefix + sessionID
}
