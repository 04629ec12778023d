package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19room/internal/infra/store/storetest"
)

func TestStore(t *testing.T) {
	dsn := os.Getenv("ROOM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ROOM_TEST_POSTGRES_DSN not set")
	}

	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s, "test-"+uuid.New().String()+"-")
}
