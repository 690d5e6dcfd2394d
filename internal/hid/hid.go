// Package hid turns internal numeric ids into short public ids and back.
package hid

import (
	"errors"

	"github.com/sqids/sqids-go"
)

// Namespace keeps ids of different tables from decoding as each other.
type Namespace uint64

const (
	Graph  Namespace = 10
	Entity Namespace = 20
)

var ErrInvalid = errors.New("invalid id")

type Encoder struct {
	s *sqids.Sqids
}

func New(alphabet string, minLength uint8) (*Encoder, error) {
	s, err := sqids.New(sqids.Options{
		Alphabet:  alphabet,
		MinLength: minLength,
	})
	if err != nil {
		return nil, err
	}
	return &Encoder{s: s}, nil
}

func (e *Encoder) Encode(ns Namespace, id int64) (string, error) {
	if id < 0 {
		return "", ErrInvalid
	}
	return e.s.Encode([]uint64{uint64(ns), uint64(id)})
}

// Decode returns the id encoded in hid. It fails for ids of another
// namespace and for non-canonical encodings.
func (e *Encoder) Decode(ns Namespace, hid string) (int64, error) {
	nums := e.s.Decode(hid)
	if len(nums) != 2 || Namespace(nums[0]) != ns || nums[1] > 1<<62 {
		return 0, ErrInvalid
	}
	canonical, err := e.s.Encode(nums)
	if err != nil || canonical != hid {
		return 0, ErrInvalid
	}
	return int64(nums[1]), nil
}
