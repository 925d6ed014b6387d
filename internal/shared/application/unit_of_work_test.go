package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUnitOfWork struct {
	beginErr  error
	commits   int
	rollbacks int
	commitErr error
}

func (f *fakeUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return ctx, nil
}

func (f *fakeUnitOfWork) Commit(ctx context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeUnitOfWork) Rollback(ctx context.Context) error {
	f.rollbacks++
	return nil
}

func TestWithUnitOfWork(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		uow := &fakeUnitOfWork{}
		err := WithUnitOfWork(context.Background(), uow, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, uow.commits)
		assert.Equal(t, 0, uow.rollbacks)
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		uow := &fakeUnitOfWork{}
		boom := errors.New("boom")
		err := WithUnitOfWork(context.Background(), uow, func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, uow.commits)
		assert.Equal(t, 1, uow.rollbacks)
	})

	t.Run("propagates begin error", func(t *testing.T) {
		uow := &fakeUnitOfWork{beginErr: errors.New("no connection")}
		err := WithUnitOfWork(context.Background(), uow, func(ctx context.Context) error {
			t.Fatal("must not be called")
			return nil
		})
		assert.Error(t, err)
	})
}
