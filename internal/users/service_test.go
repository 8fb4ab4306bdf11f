package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lokabekas/lokabekas-backend/pkg/config"
	"github.com/lokabekas/lokabekas-backend/pkg/enums"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/security"
)

var userSchemas = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'buyer',
  created_at DATETIME,
  updated_at DATETIME
);`,
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newUserService(t *testing.T) Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, schema := range userSchemas {
		require.NoError(t, db.Exec(schema).Error)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "lokabekas", ExpirationMinutes: 30}
	pwCfg := config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db), nil, jwtCfg, pwCfg)
	require.NoError(t, err)
	return svc
}

func registerInput() RegisterInput {
	return RegisterInput{
		Name:     "Budi Santoso",
		Email:    "budi@example.com",
		Password: "kata-sandi-kuat",
		Role:     enums.RoleSeller,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t)

	user, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.Equal(t, enums.RoleSeller, user.Role)
	require.NotEqual(t, "kata-sandi-kuat", user.PasswordHash)

	result, err := svc.Login(ctx, "budi@example.com", "kata-sandi-kuat")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, user.ID, result.User.ID)

	claims, err := security.ParseToken(config.JWTConfig{Secret: "test-secret", Issuer: "lokabekas", ExpirationMinutes: 30}, result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, enums.RoleSeller, claims.Role)
}

func TestRegisterNormalizesEmailAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t)

	user, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	require.Equal(t, "budi@example.com", user.Email)

	dup := registerInput()
	dup.Email = "  BUDI@example.com "
	_, err = svc.Register(ctx, dup)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t)

	short := registerInput()
	short.Password = "pendek"
	_, err := svc.Register(ctx, short)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	badEmail := registerInput()
	badEmail.Email = "not-an-email"
	_, err = svc.Register(ctx, badEmail)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	admin := registerInput()
	admin.Role = enums.RoleAdmin
	_, err = svc.Register(ctx, admin)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestLoginInvalidCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t)

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = svc.Login(ctx, "budi@example.com", "salah-total")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Login(ctx, "tidak-ada@example.com", "kata-sandi-kuat")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestGetUnknownUser(t *testing.T) {
	svc := newUserService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
