package rank_test

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	mapdb "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/infrastructure/repositories"
	rankdomain "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/domain"
	rankqueue "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/queue"
	rankdb "github.com/Black-And-White-Club/parkour-bot/app/modules/rank/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability"
	"github.com/Black-And-White-Club/parkour-bot/integration_tests/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var env *testutils.Environment

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		log.Println("skipping rank integration tests in short mode")
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	var err error
	env, err = testutils.NewEnvironment(ctx)
	cancel()
	if err != nil {
		log.Fatalf("failed to set up test environment: %v", err)
	}

	code := m.Run()
	env.Close(context.Background())
	os.Exit(code)
}

func reset(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.Reset(ctx))
	return ctx
}

func insertMap(t *testing.T, ctx context.Context, code string, difficulty float64, official bool) {
	t.Helper()
	maps := mapdb.NewRepository(env.DB)
	require.NoError(t, maps.InsertPlaytestMap(ctx, nil, &mapdb.Map{Code: code, Name: code, AuthorID: "author", Difficulty: difficulty}))
	if official {
		require.NoError(t, maps.MarkOfficial(ctx, nil, code, difficulty))
	}
}

func TestListCompletionsReflectsCurrentMapState(t *testing.T) {
	ctx := reset(t)
	insertMap(t, ctx, "OFF01", 6.5, true)
	insertMap(t, ctx, "PLAY1", 4.0, false)

	repo := rankdb.NewRepository(env.DB)
	require.NoError(t, repo.InsertCompletion(ctx, nil, &rankdb.Completion{UserID: "u1", MapCode: "OFF01", Verified: true, Medal: "Gold"}))
	require.NoError(t, repo.InsertCompletion(ctx, nil, &rankdb.Completion{UserID: "u1", MapCode: "PLAY1", Verified: true, Medal: "none"}))

	// Moderator edits land in the next read.
	_, err := mapdb.NewRepository(env.DB).SetArchived(ctx, nil, "OFF01", true)
	require.NoError(t, err)

	records, err := repo.ListCompletions(ctx, nil, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, rankdomain.CompletionRecord{
		UserID: "u1", MapCode: "OFF01", MapValue: 6.5, Verified: true, Official: true, Archived: true, Medal: rankdomain.MedalGold,
	}, records[0])
	assert.False(t, records[1].Official)
	assert.Equal(t, rankdomain.MedalNone, records[1].Medal)
}

func TestListCompletersIsDistinct(t *testing.T) {
	ctx := reset(t)
	insertMap(t, ctx, "DIST1", 5, true)
	repo := rankdb.NewRepository(env.DB)
	for _, u := range []string{"b", "a", "b", "c"} {
		require.NoError(t, repo.InsertCompletion(ctx, nil, &rankdb.Completion{UserID: u, MapCode: "DIST1"}))
	}

	ids, err := repo.ListCompleters(ctx, nil, "DIST1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestLockUserSerializesTransactions(t *testing.T) {
	ctx := reset(t)
	repo := rankdb.NewRepository(env.DB)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	held := make(chan struct{})
	release := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := env.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := repo.LockUser(ctx, tx, "u1"); err != nil {
				return err
			}
			close(held)
			<-release
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}()

	<-held
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := env.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := repo.LockUser(ctx, tx, "u1"); err != nil {
				return err
			}
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}()

	time.Sleep(200 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEnqueueReconcileInsertsJobs(t *testing.T) {
	ctx := reset(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue, err := rankqueue.NewService(ctx, env.DB, logger, env.DSN, rankqueue.Config{MaxAttempts: 2}, observability.NoOpOperationMetrics{})
	require.NoError(t, err)

	n, err := queue.EnqueueReconcile(ctx, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var count int
	err = env.DB.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Where("kind = ?", rankqueue.ReconcileRanksArgs{}.Kind()).
		Scan(ctx, &count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, queue.HealthCheck(ctx))
}

func TestPendingMapMarkers(t *testing.T) {
	ctx := reset(t)
	repo := rankdb.NewRepository(env.DB)

	require.NoError(t, repo.MarkMapPending(ctx, nil, "OLD01"))
	require.NoError(t, repo.MarkMapPending(ctx, nil, "NEW01"))
	require.NoError(t, repo.MarkMapPending(ctx, nil, "OLD01"), "marking twice refreshes the marker")

	codes, err := repo.ListPendingMaps(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW01", "OLD01"}, codes)

	codes, err = repo.ListPendingMaps(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW01"}, codes)

	require.NoError(t, repo.ClearMapPending(ctx, nil, "NEW01"))
	require.NoError(t, repo.ClearMapPending(ctx, nil, "NEW01"))
	codes, err = repo.ListPendingMaps(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD01"}, codes)
}
