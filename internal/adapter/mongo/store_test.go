package mongo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecords() []domain.NormalizedRecord {
	at := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	return []domain.NormalizedRecord{
		{ID: "news-1", Title: "住宅火災", Body: "本文", SourceURL: "https://newsdig.example.jp/a/1", PublishedAt: at, IngestedAt: at, SourceName: "RKB毎日放送"},
		{ID: "news-2", Title: "冠水", Body: "本文", SourceURL: "https://newsdig.example.jp/a/2", PublishedAt: at, IngestedAt: at, SourceName: "RKB毎日放送"},
	}
}

func sampleReport() domain.DisasterReport {
	return domain.DisasterReport{
		ID:           "mail-1",
		Sender:       "fukushosaigai@m119.city.fukuoka.lg.jp",
		Subject:      "出動情報",
		FirstLine:    "火災出動 中央区天神2丁目3番付近",
		DisasterType: domain.DisasterFire,
		RawAddress:   "中央区天神2丁目3番付近",
		ReceivedAt:   time.Date(2024, 5, 10, 0, 15, 0, 0, time.UTC),
		Location:     &domain.Coordinates{Latitude: 33.59, Longitude: 130.4},
	}
}

func duplicateKey(index int) mtest.WriteError {
	return mtest.WriteError{Index: index, Code: 11000, Message: "E11000 duplicate key error"}
}

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load records", func(mt *mtest.T) {
		s := newStore(mt.Coll, mt.Coll, discardLogger())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(t, s.LoadRecords(context.Background(), sampleRecords()))

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "insert", started.CommandName)
		docs, err := started.Command.LookupErr("documents")
		require.NoError(t, err)
		values, err := docs.Array().Values()
		require.NoError(t, err)
		assert.Len(t, values, 2)
		assert.Equal(t, "news-1", values[0].Document().Lookup("_id").StringValue())
	})

	mt.Run("load records skips duplicates", func(mt *mtest.T) {
		s := newStore(mt.Coll, mt.Coll, discardLogger())
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(0)))

		assert.NoError(t, s.LoadRecords(context.Background(), sampleRecords()))
	})

	mt.Run("load records error", func(mt *mtest.T) {
		s := newStore(mt.Coll, mt.Coll, discardLogger())
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))

		err := s.LoadRecords(context.Background(), sampleRecords())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert news records")
	})

	mt.Run("save report", func(mt *mtest.T) {
		s := newStore(mt.Coll, mt.Coll, discardLogger())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(t, s.SaveReport(context.Background(), sampleReport()))

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		doc := started.Command.Lookup("documents").Array().Index(0).Value().Document()
		assert.Equal(t, "FIRE", doc.Lookup("disaster_type").StringValue())
		assert.InDelta(t, 33.59, doc.Lookup("location", "latitude").Double(), 1e-9)
	})

	mt.Run("save report duplicate", func(mt *mtest.T) {
		s := newStore(mt.Coll, mt.Coll, discardLogger())
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicateKey(0)))

		assert.NoError(t, s.SaveReport(context.Background(), sampleReport()))
	})
}

func TestStore_EmptyBatch(t *testing.T) {
	s := newStore(nil, nil, discardLogger())
	assert.NoError(t, s.LoadRecords(context.Background(), nil))
}
