package records

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"throughput-tester/pkg/models"
)

func record(i int) models.Record {
	return models.Record{TargetURL: fmt.Sprintf("http://test.local/%d", i), TotalBytes: int64(i)}
}

func TestMemoryStore(t *testing.T) {
	tests := []struct {
		name      string
		retention int
		appends   int
		wantFirst int64
		wantLen   int
	}{
		{name: "unbounded", retention: 0, appends: 5, wantFirst: 0, wantLen: 5},
		{name: "retention drops oldest", retention: 3, appends: 5, wantFirst: 2, wantLen: 3},
		{name: "negative retention is unbounded", retention: -1, appends: 2, wantFirst: 0, wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore(tt.retention)
			for i := 0; i < tt.appends; i++ {
				s.Append(record(i))
			}
			got := s.List()
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantLen, s.Len())
			assert.Equal(t, tt.wantFirst, got[0].TotalBytes)
			for i := 1; i < len(got); i++ {
				assert.Less(t, got[i-1].TotalBytes, got[i].TotalBytes, "insertion order")
			}
		})
	}
}

func TestMemoryStoreListIsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	s.Append(record(1))

	got := s.List()
	got[0].TotalBytes = 99

	assert.Equal(t, int64(1), s.List()[0].TotalBytes)
}

func TestMemoryStoreConcurrentAppend(t *testing.T) {
	s := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(record(i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
