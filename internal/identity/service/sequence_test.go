package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"affinet/pkg/domain"
)

func TestUINSequence_IssuesInOrder(t *testing.T) {
	seq := newUINSequence(1)
	assert.Equal(t, domain.UIN("1A1"), seq.next())
	assert.Equal(t, domain.UIN("1A2"), seq.next())
	assert.Equal(t, domain.UIN("1A3"), seq.next())
}

func TestUINSequence_SequenceOverflowAdvancesLetter(t *testing.T) {
	seq := newUINSequenceAt(1, 'A', 9998)
	assert.Equal(t, domain.UIN("1A9999"), seq.next())
	assert.Equal(t, domain.UIN("1B1"), seq.next())
	assert.Equal(t, domain.UIN("1B2"), seq.next())
}

func TestUINSequence_LetterOverflowAdvancesPrefix(t *testing.T) {
	seq := newUINSequenceAt(1, 'Z', 9999)
	assert.Equal(t, domain.UIN("2A1"), seq.next())
	assert.Equal(t, domain.UIN("2A2"), seq.next())
}

func TestUINSequence_NeverRepeats(t *testing.T) {
	// Walk across two letter boundaries and assert global uniqueness.
	seq := newUINSequenceAt(3, 'Y', 9990)
	seen := make(map[domain.UIN]bool)
	for i := 0; i < 25000; i++ {
		uin := seq.next()
		if seen[uin] {
			t.Fatalf("uin %s issued twice", uin)
		}
		seen[uin] = true
	}
}

func TestUINSequence_EveryIssuedUINParses(t *testing.T) {
	seq := newUINSequenceAt(1, 'Z', 9995)
	for i := 0; i < 10; i++ {
		uin := seq.next()
		parsed, err := domain.ParseUIN(uin.String())
		assert.NoError(t, err, "issued uin %s must parse", uin)
		assert.Equal(t, uin, parsed)
	}
}

func TestUINSequence_PrefixFloorsAtOne(t *testing.T) {
	seq := newUINSequence(0)
	assert.Equal(t, domain.UIN("1A1"), seq.next())
}
