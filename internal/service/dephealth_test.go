package service

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // драйвер pgx для database/sql
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewDephealthService проверяет конструирование без подключения к БД:
// sql.Open не устанавливает соединение.
func TestNewDephealthService(t *testing.T) {
	db, err := sql.Open("pgx", "postgres://cloudstorage@localhost:5432/cloudstorage?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()

	svc, err := NewDephealthServiceWithRegisterer(
		"cloud-storage", "cloud-storage", db,
		"postgres://cloudstorage@localhost:5432/cloudstorage?sslmode=disable",
		15*time.Second, testLogger(), prometheus.NewRegistry(),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)

	// До первой проверки состояние неизвестно и в Health не попадает
	assert.Empty(t, svc.Health())
}
