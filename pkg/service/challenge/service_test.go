package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/credential"
	"github.com/spendgate/spendgate/pkg/service/common"
	"github.com/spendgate/spendgate/pkg/storage"
)

func getTestStorages(t *testing.T) map[string]storage.ServiceStorage {
	boltDB, err := storage.NewBoltDB(t.TempDir() + "/challenge-test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = boltDB.Close() })

	server := miniredis.RunT(t)
	redisDB := storage.NewRedisDBWithClient(goredislib.NewClient(&goredislib.Options{Addr: server.Addr()}))
	t.Cleanup(func() { _ = redisDB.Close() })

	return map[string]storage.ServiceStorage{
		"memory": storage.NewMemoryDB(),
		"bolt":   boltDB,
		"redis":  redisDB,
	}
}

func newTestService(t *testing.T, db storage.ServiceStorage, clk clock.Clock) *Service {
	service, err := NewChallengeService(config.ChallengeServiceConfig{
		NonceTTL:     300 * time.Second,
		ReapInterval: 60 * time.Second,
	}, db, clk)
	require.NoError(t, err)
	return service
}

func TestIssueAndConsumeChallenge(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionApprove)
			require.NoError(t, err)
			assert.NotEmpty(t, issued.Nonce)
			assert.Equal(t, "spendgate.example", issued.Domain)
			assert.Equal(t, []credential.Kind{credential.KindEmployment, credential.KindApprovalAuthority}, issued.RequiredCredentialTypes)

			entry, err := service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			require.NoError(t, err)
			assert.Equal(t, issued.Nonce, entry.Nonce)
			assert.Equal(t, common.ActionApprove, entry.Intent)
		})
	}
}

func TestConsumeChallengeTwiceRejectsReplay(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionSubmit)
			require.NoError(t, err)

			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			require.NoError(t, err)

			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			require.Error(t, err)
			var replay *ReplayError
			require.ErrorAs(t, err, &replay)
			assert.Equal(t, ReasonUsed, replay.Reason)
		})
	}
}

func TestConsumeUnknownChallenge(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			service := newTestService(t, db, clock.NewMock())

			_, err := service.ConsumeChallenge(context.Background(), "never-issued", "spendgate.example")
			require.Error(t, err)
			var replay *ReplayError
			require.ErrorAs(t, err, &replay)
			assert.Equal(t, ReasonUnknown, replay.Reason)
		})
	}
}

func TestConsumeExpiredChallenge(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionView)
			require.NoError(t, err)

			mockClock.Add(300 * time.Second)

			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			require.Error(t, err)
			var replay *ReplayError
			require.ErrorAs(t, err, &replay)
			assert.Equal(t, ReasonExpired, replay.Reason)
		})
	}
}

func TestConsumeChallengeDomainMismatch(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionView)
			require.NoError(t, err)

			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "elsewhere.example")
			require.Error(t, err)
			var replay *ReplayError
			require.ErrorAs(t, err, &replay)
			assert.Equal(t, ReasonDomainMismatch, replay.Reason)

			// rejection must not retire the nonce
			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			assert.NoError(t, err)
		})
	}
}

// A used nonce keeps reporting used, not expired, after its window lapses.
func TestUsedTakesPrecedenceOverExpired(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionView)
			require.NoError(t, err)

			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			require.NoError(t, err)

			mockClock.Add(300 * time.Second)

			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			var replay *ReplayError
			require.ErrorAs(t, err, &replay)
			assert.Equal(t, ReasonUsed, replay.Reason)
		})
	}
}

func TestConcurrentConsumersElectSingleWinner(t *testing.T) {
	const consumers = 32

	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionApprove)
			require.NoError(t, err)

			var wg sync.WaitGroup
			results := make(chan error, consumers)
			start := make(chan struct{})
			for i := 0; i < consumers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, consumeErr := service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
					results <- consumeErr
				}()
			}
			close(start)
			wg.Wait()
			close(results)

			winners := 0
			for consumeErr := range results {
				if consumeErr == nil {
					winners++
					continue
				}
				var replay *ReplayError
				require.ErrorAs(t, consumeErr, &replay)
				assert.Equal(t, ReasonUsed, replay.Reason)
			}
			assert.Equal(t, 1, winners)
		})
	}
}

func TestIssueChallengeValidation(t *testing.T) {
	service := newTestService(t, storage.NewMemoryDB(), clock.NewMock())

	_, err := service.IssueChallenge(context.Background(), "", common.ActionView)
	assert.Error(t, err)

	_, err = service.IssueChallenge(context.Background(), "spendgate.example", common.Action("destroy"))
	assert.Error(t, err)
}

func TestIssuedNoncesAreUnique(t *testing.T) {
	service := newTestService(t, storage.NewMemoryDB(), clock.NewMock())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionView)
		require.NoError(t, err)
		require.False(t, seen[issued.Nonce])
		seen[issued.Nonce] = true
	}
}

func TestReaperPurgesExpiredEntries(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			issued, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionView)
			require.NoError(t, err)

			mockClock.Add(301 * time.Second)
			purged, err := service.storage.PurgeExpired(context.Background(), mockClock.Now())
			require.NoError(t, err)
			assert.Equal(t, 1, purged)

			// once purged, the nonce is simply unknown
			_, err = service.ConsumeChallenge(context.Background(), issued.Nonce, "spendgate.example")
			var replay *ReplayError
			require.ErrorAs(t, err, &replay)
			assert.Equal(t, ReasonUnknown, replay.Reason)
		})
	}
}

func TestListChallenges(t *testing.T) {
	for name, db := range getTestStorages(t) {
		t.Run(name, func(t *testing.T) {
			mockClock := clock.NewMock()
			service := newTestService(t, db, mockClock)

			first, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionView)
			require.NoError(t, err)
			second, err := service.IssueChallenge(context.Background(), "spendgate.example", common.ActionApprove)
			require.NoError(t, err)

			entries, err := service.storage.ListChallenges(context.Background())
			require.NoError(t, err)
			require.Len(t, entries, 2)
			nonces := map[string]bool{entries[0].Nonce: true, entries[1].Nonce: true}
			assert.True(t, nonces[first.Nonce])
			assert.True(t, nonces[second.Nonce])
		})
	}
}
