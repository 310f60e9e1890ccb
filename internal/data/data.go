package data

import (
	"context"
	"fmt"

	accountdata "github.com/astronomyk/CrowdSky/internal/account/data"
	"github.com/astronomyk/CrowdSky/internal/conf"
	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/redis"
	"github.com/astronomyk/CrowdSky/internal/pkg/webdav"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	stackingdata "github.com/astronomyk/CrowdSky/internal/stacking/data"
	"github.com/astronomyk/CrowdSky/internal/stacking/models"

	"go.uber.org/zap"
)

// Data bundles the process-wide infrastructure handles
type Data struct {
	DB         *database.DB
	Redis      *redis.Client
	Archive    biz.ArchiveStore
	FrameStore *stackingdata.LocalFrameStore
	Cache      biz.StackCache
}

// NewData initializes the database, cache, archive backend and local
// staging store. The returned cleanup closes everything it opened.
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}
	if config.Database.AutoMigrate {
		migrations := append(accountdata.Models(), models.All()...)
		if err := db.AutoMigrate(migrations...); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	frameStore, err := stackingdata.NewLocalFrameStore(config.Upload.Dir)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	archive, err := newArchive(config, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	d := &Data{
		DB:         db,
		Archive:    archive,
		FrameStore: frameStore,
		Cache:      stackingdata.NoopStackCache{},
	}

	if config.Redis.Addr != "" {
		redisClient, err := redis.New(&config.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, stack listings are uncached", zap.Error(err))
		} else {
			d.Redis = redisClient
			d.Cache = stackingdata.NewStackCache(redisClient, log)
		}
	}

	cleanup := func() {
		if d.Redis != nil {
			d.Redis.Close()
		}
		db.Close()
	}
	return d, cleanup, nil
}

func newArchive(config *conf.Config, log *logger.Logger) (biz.ArchiveStore, error) {
	switch config.Archive.Backend {
	case "webdav", "":
		client, err := webdav.NewClient(&config.Archive.WebDAV, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init webdav archive: %w", err)
		}
		return stackingdata.NewWebDAVArchive(client), nil
	case "s3":
		archive, err := stackingdata.NewS3Archive(context.Background(), &config.Archive.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 archive: %w", err)
		}
		return archive, nil
	}
	return nil, fmt.Errorf("unknown archive backend %q", config.Archive.Backend)
}
