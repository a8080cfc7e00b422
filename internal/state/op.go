package state

import (
	"encoding/json"
	"fmt"
)

type Kind string

const (
	OpCreatePath    Kind = "create-path"
	OpCreateRect    Kind = "create-rect"
	OpCreateEllipse Kind = "create-ellipse"
	OpEraseStroke   Kind = "erase-stroke"
	OpUpdateShape   Kind = "update-shape"
	OpClearRoom     Kind = "clear-room"
)

// Op is a single entry of a room's operation log.
//
// Create and update ops carry the full shape. Erase carries only the target
// id. Clear carries nothing.
type Op struct {
	Kind    Kind   `json:"op"`
	ShapeID string `json:"shapeId,omitempty"`
	Author  string `json:"author,omitempty"`
	Shape   *Shape `json:"shape,omitempty"`
}

func createKind(t GeometryType) Kind {
	switch t {
	case TypePath:
		return OpCreatePath
	case TypeRect:
		return OpCreateRect
	case TypeEllipse:
		return OpCreateEllipse
	}
	return ""
}

func NewCreate(s Shape) Op {
	c := s.Clone()
	return Op{Kind: createKind(s.Geometry.Type()), ShapeID: s.ID, Author: s.Author, Shape: &c}
}

func NewUpdate(s Shape) Op {
	c := s.Clone()
	return Op{Kind: OpUpdateShape, ShapeID: s.ID, Author: s.Author, Shape: &c}
}

func NewErase(shapeID, author string) Op {
	return Op{Kind: OpEraseStroke, ShapeID: shapeID, Author: author}
}

func NewClear(author string) Op {
	return Op{Kind: OpClearRoom, Author: author}
}

// Validate checks that the op carries what its kind requires.
func (op Op) Validate() error {
	switch op.Kind {
	case OpCreatePath, OpCreateRect, OpCreateEllipse:
		if op.Shape == nil || op.Shape.Geometry == nil {
			return fmt.Errorf("%s without shape: %w", op.Kind, ErrMalformedOp)
		}
		if createKind(op.Shape.Geometry.Type()) != op.Kind {
			return fmt.Errorf("%s carrying %s: %w", op.Kind, op.Shape.Geometry.Type(), ErrMalformedOp)
		}
	case OpUpdateShape:
		if op.Shape == nil || op.Shape.Geometry == nil {
			return fmt.Errorf("%s without shape: %w", op.Kind, ErrMalformedOp)
		}
	case OpEraseStroke:
		if op.ShapeID == "" {
			return fmt.Errorf("%s without shape id: %w", op.Kind, ErrMalformedOp)
		}
		return nil
	case OpClearRoom:
		return nil
	default:
		return fmt.Errorf("%q: %w", op.Kind, ErrUnknownKind)
	}
	if op.targetID() == "" {
		return fmt.Errorf("%s without shape id: %w", op.Kind, ErrMalformedOp)
	}
	return nil
}

func (op Op) targetID() string {
	if op.ShapeID != "" {
		return op.ShapeID
	}
	if op.Shape != nil {
		return op.Shape.ID
	}
	return ""
}

// EncodeOp serializes op as the message payload of a chat frame.
func EncodeOp(op Op) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}
	if op.Shape != nil {
		op.ShapeID = op.targetID()
		op.Shape.ID = op.ShapeID
	}
	data, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", op.Kind, err)
	}
	return string(data), nil
}

// DecodeOp parses a chat message payload. A payload without an "op" field but
// with a shape, as older clients send, is read as update-shape; when that
// shape has no id it is given a fresh one. Older pixel eraser strokes have no
// shape equivalent and fail with ErrUnknownGeometry.
func DecodeOp(message string) (Op, error) {
	var op Op
	if err := json.Unmarshal([]byte(message), &op); err != nil {
		return Op{}, fmt.Errorf("%w: %w", ErrMalformedOp, err)
	}
	if op.Kind == "" && op.Shape != nil {
		op.Kind = OpUpdateShape
		if op.targetID() == "" {
			op.Shape.ID = NewShapeID()
		}
	}
	if err := op.Validate(); err != nil {
		return Op{}, err
	}
	op.ShapeID = op.targetID()
	if op.Shape != nil {
		op.Shape.ID = op.ShapeID
		if op.Shape.Author == "" {
			op.Shape.Author = op.Author
		}
	}
	return op, nil
}
