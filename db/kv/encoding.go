package kv

import (
	"reflect"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encode marshals a document to snappy-compressed JSON for storage.
func encode(v interface{}) ([]byte, error) {
	if v == nil || reflect.ValueOf(v).IsNil() {
		return nil, errors.New("cannot encode nil document")
	}
	enc, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, enc), nil
}

// decode unmarshals stored bytes into dst, reversing encode.
func decode(data []byte, dst interface{}) error {
	data, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
