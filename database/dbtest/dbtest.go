// Package dbtest поднимает изолированную базу SQLite в памяти для тестов.
package dbtest

import (
	"fmt"
	"testing"

	"fabrikaProject/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open создает новую базу в памяти со схемой приложения.
// У каждого теста своя база. Соединение одно, поэтому транзакции идут по очереди.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Repository создает хранилище поверх новой базы в памяти
func Repository(t testing.TB) database.Repository {
	t.Helper()
	return database.NewRepository(Open(t))
}
