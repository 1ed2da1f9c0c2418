package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/pkg/migrations"
)

// Connections holds the process-wide clients. Each is nil when its
// section is not configured.
type Connections struct {
	Postgres *sql.DB
	Redis    *redis.Client
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
}

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// Open connects everything that is configured. On failure the clients
// opened so far are closed again.
func (dc *DatabaseConnector) Open(ctx context.Context) (*Connections, error) {
	conns := &Connections{}

	db, err := dc.InitPostgreSQL(ctx)
	if err != nil {
		return nil, err
	}
	conns.Postgres = db

	rdb, err := dc.InitRedis(ctx)
	if err != nil {
		dc.Close(ctx, conns)
		return nil, err
	}
	conns.Redis = rdb

	mc, err := dc.InitMongoDB(ctx)
	if err != nil {
		dc.Close(ctx, conns)
		return nil, err
	}
	if mc != nil {
		conns.Mongo = mc
		name := dc.Config.Database.MongoDB.Database
		if name == "" {
			name = constants.DefaultMongoDBName
		}
		conns.MongoDB = mc.Database(name)
	}

	return conns, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pg := dc.Config.Database.Postgres
	if !pg.Configured() {
		return nil, nil
	}

	db, err := sql.Open("postgres", pg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if pg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pg.MaxOpenConns)
	}
	if pg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pg.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := migrations.MigratePostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.Logger.Infow("PostgreSQL schema is up to date")
	}

	dc.Logger.Infow("PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rc := dc.Config.Database.Redis
	if !rc.Configured() {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr(),
		Password: rc.Password,
		DB:       rc.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Infow("Redis connected successfully", "addr", rc.Addr())
	return rdb, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mc := dc.Config.Database.MongoDB
	if !mc.Configured() {
		return nil, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Infow("MongoDB connected successfully")
	return client, nil
}

// Close releases every open client and reports all failures.
func (dc *DatabaseConnector) Close(ctx context.Context, conns *Connections) []error {
	if conns == nil {
		return nil
	}

	var errs []error
	if conns.Redis != nil {
		if err := conns.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if conns.Postgres != nil {
		if err := conns.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}
	if conns.Mongo != nil {
		if err := conns.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}
	return errs
}
