package persistence

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itayakad/juno-master/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &domain.Cursor{CreatedAt: time.Date(2024, 6, 1, 8, 30, 0, 123, time.UTC), ID: "log-1"}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	require.Equal(t, "log-1", decoded.ID)
}

func TestDecodeCursorEmptyMeansFirstPage(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)
	require.Equal(t, "", EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("no-separator")))
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor(base64.RawURLEncoding.EncodeToString([]byte("yesterday|log-1")))
	require.ErrorIs(t, err, ErrInvalidCursor)
}
