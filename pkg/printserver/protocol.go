package printserver

// Message types on the wire. Control messages are JSON text frames; audio is
// sent as binary frames of 16-bit little-endian interleaved PCM.
const (
	TypeStart  = "start"
	TypeFlush  = "flush"
	TypeResult = "result"
	TypeError  = "error"
)

// Control is a client text message. A message without a type is a start
// message.
type Control struct {
	Type       string `json:"type,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Bands      int    `json:"bands,omitempty"`
}

// Reply is a server text message.
type Reply struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Frames      int    `json:"frames"`
	Width       int    `json:"width,omitempty"`
	Error       string `json:"error,omitempty"`
}
