package ast

import (
	"encoding/json"
	"fmt"

	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

// ToJSON converts n to its JSON shape: leaves become strings, lists arrays.
func ToJSON(n Node) interface{} {
	switch x := n.(type) {
	case Leaf:
		return string(x)
	case List:
		out := make([]interface{}, len(x))
		for i, child := range x {
			out[i] = ToJSON(child)
		}
		return out
	}
	return nil
}

// FromValue converts a decoded JSON value back to a Node. Only strings and
// arrays of them are accepted.
func FromValue(v interface{}) (Node, error) {
	switch x := v.(type) {
	case string:
		return Leaf(x), nil
	case []interface{}:
		out := make(List, len(x))
		for i, item := range x {
			child, err := FromValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	}
	return nil, common.Wrap(common.ErrMalformedTree, "tree must be strings or arrays only, got %s", describe(v))
}

// FromJSON decodes raw JSON into a Node. Empty input or JSON null yields a nil Node.
func FromJSON(data []byte) (Node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, common.Wrap(common.ErrMalformedTree, "invalid JSON tree: %v", err)
	}
	if v == nil {
		return nil, nil
	}
	return FromValue(v)
}

// MarshalJSON encodes n as JSON.
func MarshalJSON(n Node) ([]byte, error) {
	return json.Marshal(ToJSON(n))
}

func describe(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
