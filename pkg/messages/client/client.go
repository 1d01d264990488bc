// Package client holds the messages a game client sends to the server.
package client

import "github.com/HugKitten/KRelay/pkg/protocol"

// Namespace returns the client to server variants keyed by name
func Namespace() protocol.Namespace {
	return protocol.Namespace{
		Name: "client",
		Variants: map[string]protocol.Constructor{
			"Hello":      func() protocol.Message { return &Hello{} },
			"Load":       func() protocol.Message { return &Load{} },
			"Create":     func() protocol.Message { return &Create{} },
			"PlayerText": func() protocol.Message { return &PlayerText{} },
			"Move":       func() protocol.Message { return &Move{} },
			"Pong":       func() protocol.Message { return &Pong{} },
			"PlayerHit":  func() protocol.Message { return &PlayerHit{} },
			"Escape":     func() protocol.Message { return &Escape{} },
		},
	}
}

// Hello opens a game session
type Hello struct {
	protocol.Base
	BuildVersion string
	GameID       int32
	GUID         string
	Password     string
	Secret       string
	KeyTime      int32
	Key          []byte
	MapJSON      string
}

func (m *Hello) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "BuildVersion", Ref: &m.BuildVersion},
		{Name: "GameID", Ref: &m.GameID},
		{Name: "GUID", Ref: &m.GUID},
		{Name: "Password", Ref: &m.Password},
		{Name: "Secret", Ref: &m.Secret},
		{Name: "KeyTime", Ref: &m.KeyTime},
		{Name: "Key", Ref: &m.Key},
		{Name: "MapJSON", Ref: &m.MapJSON},
	}
}

func (m *Hello) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Hello) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Load picks an existing character
type Load struct {
	protocol.Base
	CharID      int32
	IsFromArena bool
}

func (m *Load) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "CharID", Ref: &m.CharID},
		{Name: "IsFromArena", Ref: &m.IsFromArena},
	}
}

func (m *Load) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Load) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Create makes a new character
type Create struct {
	protocol.Base
	ClassType uint16
	SkinType  uint16
}

func (m *Create) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "ClassType", Ref: &m.ClassType},
		{Name: "SkinType", Ref: &m.SkinType},
	}
}

func (m *Create) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Create) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// PlayerText is a chat line or slash command typed by the player
type PlayerText struct {
	protocol.Base
	Text string
}

func (m *PlayerText) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "Text", Ref: &m.Text},
	}
}

func (m *PlayerText) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *PlayerText) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Move reports the player position for a tick
type Move struct {
	protocol.Base
	TickID int32
	Time   int32
	X      float32
	Y      float32
}

func (m *Move) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "TickID", Ref: &m.TickID},
		{Name: "Time", Ref: &m.Time},
		{Name: "X", Ref: &m.X},
		{Name: "Y", Ref: &m.Y},
	}
}

func (m *Move) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Move) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Pong answers a server Ping
type Pong struct {
	protocol.Base
	Serial int32
	Time   int32
}

func (m *Pong) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "Serial", Ref: &m.Serial},
		{Name: "Time", Ref: &m.Time},
	}
}

func (m *Pong) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *Pong) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// PlayerHit reports an enemy bullet hitting the player
type PlayerHit struct {
	protocol.Base
	BulletID uint8
	ObjectID int32
}

func (m *PlayerHit) Fields() []protocol.Field {
	return []protocol.Field{
		{Name: "BulletID", Ref: &m.BulletID},
		{Name: "ObjectID", Ref: &m.ObjectID},
	}
}

func (m *PlayerHit) Decode(r *protocol.Reader) error { return protocol.DecodeFields(r, m.Fields()) }
func (m *PlayerHit) Encode(w *protocol.Writer) error { return protocol.EncodeFields(w, m.Fields()) }

// Escape returns the player to the nexus. It has no body.
type Escape struct {
	protocol.Opaque
}
