package devices

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *database.Repositories) {
	t.Helper()

	db, err := database.Initialize(config.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "devices.db"),
		MaxConnections: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db.DB))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repos := database.NewRepositories(db)
	return NewService(repos.Device, repos.Sample, logger), repos
}

func TestRegister(t *testing.T) {
	svc, repos := setupService(t)
	ctx := context.Background()

	owner := &models.User{Login: "owner", PasswordHash: "x"}
	require.NoError(t, repos.User.Create(ctx, owner))

	dev, err := svc.Register(ctx, 5, &owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), dev.ID)

	_, err = svc.Register(ctx, 5, nil)
	assert.ErrorIs(t, err, ErrDeviceExists)

	_, err = svc.Register(ctx, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidDeviceID)

	_, err = svc.Register(ctx, 6, nil)
	require.NoError(t, err)

	ids, err := svc.ListIDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, ids)

	ids, err = svc.ListIDs(ctx, &owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
}

func TestIngest(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, 1, nil)
	require.NoError(t, err)

	var seen []*models.Sample
	svc.AddObserver(ObserverFunc(func(s *models.Sample) { seen = append(seen, s) }))

	sample, err := svc.Ingest(ctx, 1, &Reading{X: 1.5, Y: -2, Z: 3}, models.SourceAPI)
	require.NoError(t, err)
	assert.NotZero(t, sample.ID)
	assert.Equal(t, 1.5, sample.X)
	assert.False(t, sample.RecordedAt.IsZero())

	svc.simulate = func() Reading { return Reading{X: 7, Y: 8, Z: 9} }
	simulated, err := svc.Ingest(ctx, 1, nil, models.SourceSimulator)
	require.NoError(t, err)
	assert.Equal(t, 7.0, simulated.X)

	require.Len(t, seen, 2)
	assert.Equal(t, models.SourceSimulator, seen[1].Source)

	recent, err := svc.Recent(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestIngest_UnknownDevice(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Ingest(context.Background(), 42, nil, models.SourceAPI)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSimulate(t *testing.T) {
	for i := 0; i < 100; i++ {
		r := Simulate()
		for _, v := range []float64{r.X, r.Y, r.Z} {
			assert.GreaterOrEqual(t, v, -100.0)
			assert.Less(t, v, 100.0)
		}
	}
}
