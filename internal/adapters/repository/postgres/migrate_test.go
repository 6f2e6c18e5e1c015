package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationContent(t *testing.T) {
	name, content, err := MigrationContent(ServiceAuth, "create_users.up")
	require.NoError(t, err)
	assert.Equal(t, "0001_create_users.up.sql", name)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS users")

	_, _, err = MigrationContent(ServiceProduct, "create_users.up")
	assert.Error(t, err)

	_, _, err = MigrationContent("billing", "anything")
	assert.Error(t, err)
}

func TestMigrate_AppliesOnce(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	applied, err := Migrate(ctx, db, ServiceProduct)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_products.up.sql"}, applied)

	applied, err = Migrate(ctx, db, ServiceProduct)
	require.NoError(t, err)
	assert.Empty(t, applied)

	var exists bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT to_regclass('public.products') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)
}
