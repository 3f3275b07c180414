package store

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ethpandaops/backupoor/pkg/config"
	"github.com/ethpandaops/backupoor/pkg/record"
)

func TestReplaceRollsBackOnInsertFailure(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}, nil).(*store)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.ReplaceOutages(ctx, []record.Outage{
		{MOName: "NODEB NAME=OLD", Name: "NODEB UNAVAILABLE", SiteID: "OLD"},
	}))

	require.NoError(t, s.db.Callback().Create().Before("gorm:create").
		Register("test:fail_insert", func(db *gorm.DB) {
			_ = db.AddError(errors.New("disk full"))
		}))

	err := s.ReplaceOutages(ctx, []record.Outage{
		{MOName: "NODEB NAME=NEW", Name: "NODEB UNAVAILABLE", SiteID: "NEW"},
	})
	require.ErrorContains(t, err, "disk full")

	out, err := s.ListOutages(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "OLD", out[0].SiteID)
}
