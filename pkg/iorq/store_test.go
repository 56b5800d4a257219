package iorq

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xcapture/xcapture/pkg/types"
)

func TestCreateThenLookupReturnsSameRecord(t *testing.T) {
	s := NewStore()
	rq := types.IORequest(100)

	rec := s.Create(rq)
	rec.Lock()
	rec.SeqNum = 9
	rec.Unlock()

	got := s.Lookup(rq)
	got.Lock()
	defer got.Unlock()
	assert.EqualValues(t, 9, got.SeqNum)
	assert.Equal(t, 1, s.Len())
}

func TestCreateOverwritesStaleEntry(t *testing.T) {
	s := NewStore()
	rq := types.IORequest(5)

	first := s.Create(rq)
	first.Lock()
	first.SeqNum = 1
	first.Unlock()

	second := s.Create(rq)
	assert.NotSame(t, first, second)
	got := s.Lookup(rq)
	got.Lock()
	defer got.Unlock()
	assert.EqualValues(t, 0, got.SeqNum)
}

func TestLookupMissReturnsNil(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Lookup(types.IORequest(1)))
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := NewStore()
	rq := types.IORequest(7)
	s.Create(rq)
	assert.Equal(t, 1, s.Len())
	s.Delete(rq)
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Lookup(rq))
}

func TestStoreShardsDistinctRequestsIndependently(t *testing.T) {
	s := NewStore()
	for i := uint64(0); i < 200; i++ {
		rq := types.IORequest(i)
		rec := s.Create(rq)
		rec.Lock()
		rec.SeqNum = i
		rec.Unlock()
	}
	assert.Equal(t, 200, s.Len())
	for i := uint64(0); i < 200; i++ {
		rec := s.Lookup(types.IORequest(i))
		rec.Lock()
		assert.Equal(t, i, rec.SeqNum)
		rec.Unlock()
	}
}
