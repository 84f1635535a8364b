// Package document models corpus records as an order-preserving JSON value
// tree and flattens them into the text blob fed to the tokenizer.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Value is one node of a parsed record. The set of variants is closed:
// Null, String, Number, Bool, Array and *Object.
type Value interface {
	isValue()
}

type (
	// Null is the JSON null literal.
	Null struct{}
	// String is a JSON string.
	String string
	// Number keeps the literal text from the source. Text gives the form
	// used for indexing.
	Number string
	// Bool is a JSON boolean.
	Bool bool
	// Array is an ordered sequence of values.
	Array []Value
)

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is a mapping whose members keep their source order. Get returns the
// last value for a repeated key, matching how JSON decoders resolve duplicates.
type Object struct {
	Members []Member
}

func (Null) isValue()    {}
func (String) isValue()  {}
func (Number) isValue()  {}
func (Bool) isValue()    {}
func (Array) isValue()   {}
func (*Object) isValue() {}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	for i := len(o.Members) - 1; i >= 0; i-- {
		if o.Members[i].Key == key {
			return o.Members[i].Value, true
		}
	}
	return nil, false
}

var errNotObject = errors.New("record is not a JSON object")

// ParseRecord decodes exactly one JSON object from data.
func ParseRecord(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after record")
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := &Object{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Members = append(obj.Members, Member{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) (Array, error) {
	arr := Array{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
