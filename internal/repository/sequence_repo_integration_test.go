//go:build integration

package repository

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavendermoon/villa-pms/internal/testutil"
)

func TestIntegration_SequenceNextConcurrent(t *testing.T) {
	db := testutil.StartPostgres(t)
	repo := NewSequenceRepository(db)

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.Next(context.Background(), "260105")
			assert.NoError(t, err)
			mu.Lock()
			seqs = append(seqs, seq)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seqs, n)
	sort.Ints(seqs)
	for i, seq := range seqs {
		assert.Equal(t, i+1, seq)
	}
}
