// Package server holds the messages the game server sends to clients.
package server

import "github.com/HugKitten/KRelay/pkg/protocol"

// Namespace returns the server to client variants keyed by name
func Namespace() protocol.Namespace {
	return protocol.Namespace{
		Name: "server",
		Variants: map[string]protocol.Constructor{
			"Failure":      func() protocol.Message { return &Failure{} },
			"Text":         func() protocol.Message { return &Text{} },
			"Ping":         func() protocol.Message { return &Ping{} },
			"Notification": func() protocol.Message { return &Notification{} },
			"Goto":         func() protocol.Message { return &Goto{} },
			"Reconnect":    func() protocol.Message { return &Reconnect{} },
			"Update":       func() protocol.Message { return &Update{} },
			"NewTick":      func() protocol.Message { return &NewTick{} },
		},
	}
}

// Failure ends the session with an error
type Failure struct {
	protocol.Base
	ErrorID          int32
	ErrorDescription string
}

func (m *Failure) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "ErrorID", Ref: &m.ErrorID},
		{Name: "ErrorDescription", Ref: &m.ErrorDescription},
	}
}

func (m *Failure) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Failure) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Text is a chat line shown to the player
type Text struct {
	protocol.Base
	Name       string
	ObjectID   int32
	NumStars   int32
	BubbleTime uint8
	Recipient  string
	Text       string
	CleanText  string
}

func (m *Text) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "Name", Ref: &m.Name},
		{Name: "ObjectID", Ref: &m.ObjectID},
		{Name: "NumStars", Ref: &m.NumStars},
		{Name: "BubbleTime", Ref: &m.BubbleTime},
		{Name: "Recipient", Ref: &m.Recipient},
		{Name: "Text", Ref: &m.Text},
		{Name: "CleanText", Ref: &m.CleanText},
	}
}

func (m *Text) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Text) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Ping is a keepalive the client must answer with a Pong
type Ping struct {
	protocol.Base
	Serial int32
}

func (m *Ping) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "Serial", Ref: &m.Serial},
	}
}

func (m *Ping) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Ping) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Notification floats a message over an object
type Notification struct {
	protocol.Base
	ObjectID int32
	Message  string
	Color    int32
}

func (m *Notification) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "ObjectID", Ref: &m.ObjectID},
		{Name: "Message", Ref: &m.Message},
		{Name: "Color", Ref: &m.Color},
	}
}

func (m *Notification) Decode(r *protocol.Reader) error {
	return protocol.DecodeFields(r, m.Fields())
}

func (m *Notification) Encode(w *protocol.Writer) error {
	return protocol.EncodeFields(w, m.Fields())
}

// Goto moves an object to a position
type Goto struct {
	protocol.Base
	ObjectID int32
	X        float32
	Y        float32
}

func (m *Goto) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "ObjectID", Ref: &m.ObjectID},
		{Name: "X", Ref: &m.X},
		{Name: "Y", Ref: &m.Y},
	}
}

func (m *Goto) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Goto) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Reconnect tells the client to open a new session, possibly on another host
type Reconnect struct {
	protocol.Base
	Name        string
	Host        string
	Port        int32
	GameID      int32
	KeyTime     int32
	IsFromArena bool
	Key         []byte
}

func (m *Reconnect) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "Name", Ref: &m.Name},
		{Name: "Host", Ref: &m.Host},
		{Name: "Port", Ref: &m.Port},
		{Name: "GameID", Ref: &m.GameID},
		{Name: "KeyTime", Ref: &m.KeyTime},
		{Name: "IsFromArena", Ref: &m.IsFromArena},
		{Name: "Key", Ref: &m.Key},
	}
}

func (m *Reconnect) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Reconnect) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Update carries map tiles and object changes; relayed as raw bytes
type Update struct {
	protocol.Opaque
}

// NewTick carries per-tick object status; relayed as raw bytes
type NewTick struct {
	protocol.Opaque
}
