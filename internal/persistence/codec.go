package persistence

import "encoding/json"

// Codec converts documents to and from JSON bytes.
type Codec[T any] interface {
	Marshal(doc T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSONCodec encodes documents with encoding/json.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Marshal(doc T) ([]byte, error) {
	return json.Marshal(doc)
}

func (JSONCodec[T]) Unmarshal(data []byte) (T, error) {
	var doc T
	err := json.Unmarshal(data, &doc)
	return doc, err
}
