package util

import "github.com/vmihailenco/msgpack"

func ToBytes[T any](obj T) ([]byte, error) {
	return msgpack.Marshal(obj)
}

func FromBytes[T any](data []byte) (T, error) {
	var res T

	if err := msgpack.Unmarshal(data, &res); err != nil {
		return res, err
	}

	return res, nil
}
