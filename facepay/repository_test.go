package facepay_test

import (
	"context"
	"testing"
	"time"

	"github.com/parsec/wechat-face-payment/facepay"
	"github.com/parsec/wechat-face-payment/facepay/models"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := facepay.NewRepository()

	base := time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2", "s3"} {
		err := repo.SaveOutcome(ctx, models.Outcome{
			SessionID:   id,
			Status:      models.OutcomePaymentSuccess,
			Stage:       models.StageFaceCode,
			Payload:     map[string]string{"face_code": id},
			CompletedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	t.Run("get", func(t *testing.T) {
		o, err := repo.GetOutcome(ctx, "s2")
		require.NoError(t, err)
		require.Equal(t, "s2", o.Payload["face_code"])
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetOutcome(ctx, "missing")
		require.ErrorIs(t, err, facepay.ErrNotFound)
	})

	t.Run("conflict", func(t *testing.T) {
		err := repo.SaveOutcome(ctx, models.Outcome{SessionID: "s1", Status: models.OutcomeFailed})
		require.ErrorIs(t, err, facepay.ErrConflict)

		o, err := repo.GetOutcome(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, models.OutcomePaymentSuccess, o.Status)
	})

	t.Run("session id required", func(t *testing.T) {
		require.Error(t, repo.SaveOutcome(ctx, models.Outcome{Status: models.OutcomeFailed}))
	})

	t.Run("list newest first", func(t *testing.T) {
		all, err := repo.ListOutcomes(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "s3", all[0].SessionID)
		require.Equal(t, "s1", all[2].SessionID)

		two, err := repo.ListOutcomes(ctx, 2)
		require.NoError(t, err)
		require.Len(t, two, 2)
		require.Equal(t, "s2", two[1].SessionID)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, repo.Ping(ctx))
	})
}
