package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-imaging/volstitch/storage"
)

func TestFakeStoreReadSlab(t *testing.T) {
	dims := storage.Dims{Height: 4, Width: 4, Depth: 2}
	s := storage.NewFakeStore(dims)
	data := make([]float64, 4*4*2)
	for i := range data {
		data[i] = float64(i)
	}
	s.Put(0, 0, data)

	got, err := s.ReadSlab(0, 0, 1, 3, 1, 3, 0, 2)
	require.NoError(t, err)
	// plane 0 rows 1,2 cols 1,2: indices 5,6,9,10; plane 1 offset +16
	want := []float64{5, 6, 9, 10, 21, 22, 25, 26}
	assert.Equal(t, want, got)
}

func TestFakeStoreMissingTile(t *testing.T) {
	s := storage.NewFakeStore(storage.Dims{Height: 2, Width: 2, Depth: 1})
	_, err := s.ReadSlab(0, 0, 0, 1, 0, 1, 0, 1)
	assert.Error(t, err)
}

func TestFakeStoreOutOfBounds(t *testing.T) {
	s := storage.NewFakeStore(storage.Dims{Height: 2, Width: 2, Depth: 1})
	s.Put(0, 0, make([]float64, 4))
	_, err := s.ReadSlab(0, 0, 0, 3, 0, 1, 0, 1)
	assert.Error(t, err)
}
