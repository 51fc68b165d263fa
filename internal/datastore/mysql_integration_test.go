//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/MLAB-project/pysdr/internal/conf"
)

func TestMySQLStoreIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("pysdr"),
		tcmysql.WithUsername("pysdr"),
		tcmysql.WithPassword("pysdr"),
	)
	defer func() { _ = testcontainers.TerminateContainer(container) }()
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4")
	require.NoError(t, err)

	settings := &conf.DatastoreSettings{Type: "mysql"}
	settings.MySQL.DSN = dsn
	ds, err := New(settings, nil)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	defer func() { _ = ds.Close() }()

	rec := testRecord("it", "mlab.aabb_event.meteor_echo", 42)
	require.NoError(t, ds.SaveEvent(ctx, rec))
	rec2 := testRecord("it", "mlab.aabb_event.meteor_echo", 42)
	rec2.EndRow, rec2.Final = 99, true
	require.NoError(t, ds.SaveEvent(ctx, rec2))

	got, err := ds.ListEvents(ctx, Filter{Session: "it"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(99), got[0].EndRow)
	assert.True(t, got[0].Final)
}
