package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"casework/pkg/domain"
	"casework/pkg/testutil"
)

func TestPublisherTimestamps(t *testing.T) {
	testutil.Given(t, "an event without a timestamp", func(t *testing.T) {
		store := NewInMemoryStore()
		publisher := NewPublisher(store)

		testutil.When(t, "it is emitted", func(t *testing.T) {
			before := time.Now()
			err := publisher.Emit(context.Background(), Event{
				Kind:          KindReferralSubmitted,
				ApplicationID: domain.NewApplicationID(),
				CRN:           "X320741",
			})
			require.NoError(t, err)

			testutil.Then(t, "the publisher stamps the wall clock", func(t *testing.T) {
				all := store.All()
				require.Len(t, all, 1)
				require.False(t, all[0].Timestamp.Before(before))
			})
		})
	})

	testutil.Given(t, "an event carrying its own timestamp", func(t *testing.T) {
		store := NewInMemoryStore()
		publisher := NewPublisher(store)
		fixed := time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC)

		err := publisher.Emit(context.Background(), Event{
			Kind:      KindAssessmentRejected,
			Timestamp: fixed,
			CRN:       "X320741",
		})
		require.NoError(t, err)

		testutil.Then(t, "the timestamp is preserved", func(t *testing.T) {
			require.Equal(t, fixed, store.All()[0].Timestamp)
		})
	})
}

func TestInMemoryStoreFiltersByKind(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)

	for _, kind := range []Kind{KindReferralSubmitted, KindAssessmentRejected, KindReferralSubmitted} {
		require.NoError(t, publisher.Emit(context.Background(), Event{Kind: kind, CRN: "X320741"}))
	}

	require.Len(t, store.OfKind(KindReferralSubmitted), 2)
	require.Len(t, store.OfKind(KindAssessmentRejected), 1)
	require.Len(t, store.All(), 3)
}
