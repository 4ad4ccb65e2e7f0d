package chat

// ClientIdentity is the opaque per-session token embedded in the connection address.
type ClientIdentity string

// ConnectionState is the two-valued status shown to the user.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// MarshalText renders the state the same way the status indicator does.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
