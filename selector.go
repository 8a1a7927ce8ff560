package gridstore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SelectorKind int

const (
	ByID SelectorKind = iota + 1
	ByFilename
)

func (k SelectorKind) String() string {
	switch k {
	case ByID:
		return "id"
	case ByFilename:
		return "filename"
	default:
		return "invalid"
	}
}

// Selector addresses a stored file either by its identifier or by filename.
type Selector struct {
	Kind     SelectorKind
	ID       primitive.ObjectID
	Filename string
}

func SelectID(id primitive.ObjectID) Selector {
	return Selector{Kind: ByID, ID: id}
}

func SelectFilename(name string) Selector {
	return Selector{Kind: ByFilename, Filename: name}
}

func (s Selector) String() string {
	switch s.Kind {
	case ByID:
		return "id:" + s.ID.Hex()
	case ByFilename:
		return "filename:" + s.Filename
	default:
		return "invalid"
	}
}

func (s Selector) validate() error {
	switch {
	case s.Kind == ByID && !s.ID.IsZero():
		return nil
	case s.Kind == ByFilename && s.Filename != "":
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidSelector, s)
}

// ParseSelector resolves v into a Selector. Object ids, and strings that
// round-trip as object id hex, select by id. Any other non-empty string
// selects by filename.
func ParseSelector(v any) (Selector, error) {
	switch t := v.(type) {
	case Selector:
		return t, t.validate()
	case *Selector:
		if t == nil {
			return Selector{}, ErrInvalidSelector
		}
		return *t, t.validate()
	case primitive.ObjectID:
		return SelectID(t), SelectID(t).validate()
	case *primitive.ObjectID:
		if t == nil {
			return Selector{}, ErrInvalidSelector
		}
		return SelectID(*t), SelectID(*t).validate()
	case string:
		if id, ok := parseObjectID(t); ok {
			return SelectID(id), nil
		}
		if t == "" {
			return Selector{}, ErrInvalidSelector
		}
		return SelectFilename(t), nil
	}
	return Selector{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidSelector, v)
}

func parseObjectID(s string) (primitive.ObjectID, bool) {
	if len(s) != 24 {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil || id.IsZero() {
		return primitive.NilObjectID, false
	}
	// upper-case hex parses too but would not round-trip
	if id.Hex() != s {
		return primitive.NilObjectID, false
	}
	return id, true
}

// structured reports whether v may be handed to Remove at all.
func structured(v any) bool {
	switch v.(type) {
	case string, Selector, *Selector, primitive.ObjectID, *primitive.ObjectID:
		return true
	}
	return false
}
