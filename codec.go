package hotqueue

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// Codec turns messages into the bytes stored in the Redis list and back.
// Unmarshal always receives a pointer to the destination value.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec stores messages as JSON documents.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ProtoCodec stores protobuf messages in their binary wire format.
// The message type must be a proto.Message, usually a pointer such as *pb.Event.
type ProtoCodec struct{}

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, v)
	}
	return proto.Marshal(m)
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}

	// Queue[*pb.Event] decodes into a **pb.Event; allocate the inner message.
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Pointer {
		return fmt.Errorf("%w: cannot decode into %T", ErrUnsupportedType, v)
	}
	elem := rv.Elem()
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	m, ok := elem.Interface().(proto.Message)
	if !ok {
		return fmt.Errorf("%w: cannot decode into %T", ErrUnsupportedType, v)
	}
	return proto.Unmarshal(data, m)
}

// RawCodec stores []byte and string messages unchanged. It interoperates
// with producers that push plain strings with RPUSH.
type RawCodec struct{}

func (RawCodec) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func (RawCodec) Unmarshal(data []byte, v any) error {
	switch t := v.(type) {
	case *[]byte:
		*t = append((*t)[:0], data...)
	case *string:
		*t = string(data)
	default:
		return fmt.Errorf("%w: cannot decode into %T", ErrUnsupportedType, v)
	}
	return nil
}
