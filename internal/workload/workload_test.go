package workload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryKnowsTheFullCatalog(t *testing.T) {
	t.Parallel()

	ids := IDs()
	require.Len(t, ids, 9)
	assert.Equal(t, IntegerALUID, ids[0])
	assert.Equal(t, FaultInjectID, ids[len(ids)-1])

	for _, id := range ids {
		name, err := NameOf(id)
		require.NoError(t, err)
		assert.NotEmpty(t, name)

		w, err := New(id)
		require.NoError(t, err)
		assert.Equal(t, name, w.Name())
	}
}

func TestUnknownIDIsRejected(t *testing.T) {
	t.Parallel()

	_, err := New(42)
	require.Error(t, err)
	_, err = NameOf(42)
	require.Error(t, err)
}

func TestNewReturnsIndependentInstances(t *testing.T) {
	t.Parallel()

	a, err := New(FaultInjectID)
	require.NoError(t, err)
	b, err := New(FaultInjectID)
	require.NoError(t, err)
	require.NotSame(t, a, b)

	// Advancing one instance must not advance the other.
	for i := 0; i < faultInjectAfter+1; i++ {
		require.NoError(t, a.Run())
	}
	require.Error(t, a.Verify())
	require.NoError(t, b.Run())
	require.NoError(t, b.Verify())
}

func TestRealKernelsVerifyCleanlyAcrossCycles(t *testing.T) {
	if testing.Short() {
		t.Skip("compute kernels")
	}
	t.Parallel()

	for _, id := range IDs() {
		if id == FaultInjectID {
			continue
		}
		id := id
		name, _ := NameOf(id)
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			w, err := New(id)
			require.NoError(t, err)
			for cycle := 0; cycle < 2; cycle++ {
				require.NoError(t, w.Run(), "cycle %d", cycle)
				require.NoError(t, w.Verify(), "cycle %d", cycle)
			}
		})
	}
}

func TestFaultInjectFailsAfterItsGracePeriod(t *testing.T) {
	t.Parallel()

	w, err := New(FaultInjectID)
	require.NoError(t, err)

	for cycle := 1; cycle <= faultInjectAfter; cycle++ {
		require.NoError(t, w.Run())
		require.NoError(t, w.Verify(), "cycle %d should still pass", cycle)
	}

	require.NoError(t, w.Run())
	err = w.Verify()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation), "fault must be a validation failure, got %v", err)

	// Once failing, it keeps failing.
	require.NoError(t, w.Run())
	assert.ErrorIs(t, w.Verify(), ErrValidation)
}

func TestValidationErrorsAreDistinguishable(t *testing.T) {
	t.Parallel()

	w := &primeSieve{}
	require.NoError(t, w.Run())
	w.count-- // simulate a corrupted count
	err := w.Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, errors.Is(errors.New("io failure"), ErrValidation))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		Register(IntegerALUID, "dup", func() Workload { return &integerALU{} })
	})
}
