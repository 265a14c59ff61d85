package wire

// TCPRequestPayload is the JSON body carried by a `tcp` RPC request,
// shared between the Agent's router (which dials and relays) and the
// Client's forward listener (which constructs it from a local
// connection's first read burst).
type TCPRequestPayload struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Payload []byte `json:"payload"` // encoding/json (de)serializes []byte as base64
}
