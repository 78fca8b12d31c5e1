package state

import "errors"

// ErrNoSession reports that the user has no open session, or not the expected one.
var ErrNoSession = errors.New("state: no session")

// Artifact is a scoped resource owned by a session, such as a downloaded file.
// Release must be safe to call more than once.
type Artifact interface {
	Release() error
}

// Session is a single user's in-progress flow.
type Session struct {
	UserID int64
	ChatID int64
	Flow   string
	Step   string
	// SubType narrows the flow, e.g. the QR payload kind.
	SubType string
	// Fields holds collected answers; Order records their insertion sequence.
	Fields   map[string]string
	Order    []string
	Artifact Artifact
}

// Set records a collected field. A field that was already collected keeps its
// position in Order and takes the new value.
func (s *Session) Set(name, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	if _, ok := s.Fields[name]; !ok {
		s.Order = append(s.Order, name)
	}
	s.Fields[name] = value
}

// Has reports whether the field was collected.
func (s Session) Has(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// Value returns the collected field or "".
func (s Session) Value(name string) string {
	return s.Fields[name]
}

// Is reports whether the session belongs to flow and, when steps are given,
// sits at one of them.
func (s Session) Is(flow string, steps ...string) bool {
	if s.Flow != flow {
		return false
	}
	if len(steps) == 0 {
		return true
	}
	for _, st := range steps {
		if s.Step == st {
			return true
		}
	}
	return false
}

func (s Session) clone() Session {
	out := s
	if s.Fields != nil {
		out.Fields = make(map[string]string, len(s.Fields))
		for k, v := range s.Fields {
			out.Fields[k] = v
		}
	}
	if s.Order != nil {
		out.Order = append([]string(nil), s.Order...)
	}
	return out
}
