package material

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresMaterialRepo, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewPostgresMaterialRepo(sqlx.NewDb(mockDB, "postgres")), mock
}

var materialCols = []string{"id", "qr_code_id", "material_name", "material_type", "color", "manufacturer",
	"production_date", "features", "care_instructions", "image_url"}

func TestPostgresMaterialRepo_GetByQRCodeID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM materials")).
		WithArgs("FAB-001").
		WillReturnRows(sqlmock.NewRows(materialCols).AddRow(
			"5b9c", "FAB-001", "Organic Cotton", "cotton", "white", "Acme",
			"2024-01-10", "{breathable,soft}", "Cold wash", "https://img/1.png"))

	got, err := repo.GetByQRCodeID(context.Background(), "FAB-001")
	require.NoError(t, err)
	assert.Equal(t, "5b9c", got.ID)
	assert.Equal(t, []string{"breathable", "soft"}, got.Features)
	assert.Equal(t, "https://img/1.png", got.ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterialRepo_GetByQRCodeID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM materials")).
		WithArgs("FAB-404").
		WillReturnRows(sqlmock.NewRows(materialCols))

	_, err := repo.GetByQRCodeID(context.Background(), "FAB-404")
	assert.ErrorIs(t, err, ErrMaterialNotFound)
}

func TestPostgresMaterialRepo_GetByQRCodeID_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("FROM materials")).WillReturnError(boom)

	_, err := repo.GetByQRCodeID(context.Background(), "FAB-001")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMaterialNotFound)
}

func TestPostgresMaterialRepo_Upsert(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (qr_code_id) DO UPDATE")).
		WithArgs("FAB-001", "Organic Cotton", "cotton", "white", "", "", sqlmock.AnyArg(), "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("5b9c"))

	m := sampleMaterial()
	m.ID = ""
	require.NoError(t, repo.Upsert(context.Background(), m))
	assert.Equal(t, "5b9c", m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaterialRepo_UpsertRejectsInvalid(t *testing.T) {
	repo, mock := newMockRepo(t)

	err := repo.Upsert(context.Background(), &Material{MaterialName: "No id"})
	assert.ErrorIs(t, err, ErrMissingQRCodeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
