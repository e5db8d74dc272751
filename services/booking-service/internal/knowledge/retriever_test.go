package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/apptchat/services/booking-service/internal/model"
)

func TestStaticRetrieveRanksBySharedTerms(t *testing.T) {
	s := NewStatic()
	s.Set("biz", []model.FAQ{
		{Title: "Parking", Body: "Free parking is available behind the building."},
		{Title: "Payment", Body: "We accept M-Pesa, cash and cards."},
		{Title: "Walk-ins", Body: "Walk-ins are welcome when a stylist is free, but booking is recommended."},
	})

	got, err := s.Retrieve(context.Background(), "biz", "Do you accept M-Pesa payment?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Payment", got[0].Title)

	got, err = s.Retrieve(context.Background(), "biz", "is there parking", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Parking", got[0].Title)
}

func TestStaticRetrieveNoMatch(t *testing.T) {
	s := NewStatic()
	s.Set("biz", []model.FAQ{{Title: "Parking", Body: "Free parking."}})

	got, err := s.Retrieve(context.Background(), "biz", "what is the meaning of life", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Retrieve(context.Background(), "other", "parking", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Retrieve(context.Background(), "biz", "parking", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
