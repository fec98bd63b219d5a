package service

import (
	"fmt"

	"affinet/pkg/domain"
)

// uinSequence issues UINs deterministically: digit prefix, letter A-Z,
// sequence 1-9999. Sequence overflow advances the letter; letter overflow
// past Z advances the prefix and resets the letter. Each registry shard owns
// its own prefix, so issuance never needs a lock shared across shards; the
// sequence itself is guarded by the registry transaction boundary.
type uinSequence struct {
	prefix int
	letter byte
	seq    int
}

const maxSeqPerLetter = 9999

func newUINSequence(prefix int) *uinSequence {
	if prefix < 1 {
		prefix = 1
	}
	return &uinSequence{prefix: prefix, letter: 'A'}
}

// newUINSequenceAt starts mid-range; used by tests to exercise overflow
// without issuing thousands of UINs.
func newUINSequenceAt(prefix int, letter byte, seq int) *uinSequence {
	return &uinSequence{prefix: prefix, letter: letter, seq: seq}
}

// next issues the following UIN in the scheme. Not safe for concurrent use;
// callers hold the registry transaction lock.
func (s *uinSequence) next() domain.UIN {
	s.seq++
	if s.seq > maxSeqPerLetter {
		s.seq = 1
		if s.letter == 'Z' {
			s.letter = 'A'
			s.prefix++
		} else {
			s.letter++
		}
	}
	return domain.UIN(fmt.Sprintf("%d%c%d", s.prefix, s.letter, s.seq))
}
