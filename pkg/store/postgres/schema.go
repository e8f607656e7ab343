package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/telerag/telerag/internal"
	"github.com/telerag/telerag/pkg/models"
)

var log = internal.GetLogger()

type SessionSchema struct {
	bun.BaseModel `bun:"table:session,alias:s"`

	UUID      uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`
	ID        int64     `bun:",autoincrement"` // used as a cursor for pagination
	SessionID string    `bun:",unique,notnull"`
	CreatedAt time.Time `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp"`
	DeletedAt time.Time `bun:"type:timestamptz,soft_delete,nullzero"`
	// History is the rolling window of conversational turns, capped on save
	History      []models.Message       `bun:"type:jsonb,nullzero"`
	Metadata     map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number"`
	MessageCount int                    `bun:",notnull,default:0"`
}

var _ bun.BeforeAppendModelHook = (*SessionSchema)(nil)

func (s *SessionSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeCreateTable is a marker method to ensure uniform interface across all table models - used in table creation iterator
func (s *SessionSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// MessageLogSchema is the append-only log of user/assistant exchanges.
type MessageLogSchema struct {
	bun.BaseModel `bun:"table:message_log,alias:ml"`

	UUID      uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`
	ID        int64     `bun:",autoincrement"`
	CreatedAt time.Time `bun:"type:timestamptz,notnull,default:current_timestamp"`
	SessionID string    `bun:",notnull"`
	Message   string    `bun:",notnull"`
	Response  string    `bun:",notnull"`
}

func (s *MessageLogSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// ChunkEmbeddingSchema stores one indexed record of the vector index,
// partitioned by namespace. The embedding column width is kept in sync with
// the configured dimensions by checkChunkEmbeddingDims.
type ChunkEmbeddingSchema struct {
	bun.BaseModel `bun:"table:chunk_embedding,alias:ce"`

	UUID      uuid.UUID              `bun:",pk,type:uuid,default:gen_random_uuid()"`
	CreatedAt time.Time              `bun:"type:timestamptz,notnull,default:current_timestamp"`
	UpdatedAt time.Time              `bun:"type:timestamptz,nullzero,default:current_timestamp"`
	Namespace string                 `bun:",notnull"`
	ChunkID   string                 `bun:",notnull"`
	Embedding pgvector.Vector        `bun:"type:vector(1024)"`
	Metadata  map[string]interface{} `bun:"type:jsonb,nullzero,json_use_number"`
}

var _ bun.BeforeAppendModelHook = (*ChunkEmbeddingSchema)(nil)

func (s *ChunkEmbeddingSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (s *ChunkEmbeddingSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// IngestStateSchema persists the last committed batch index per (namespace,
// source), making a multi-batch ingestion pass resumable after an abort.
type IngestStateSchema struct {
	bun.BaseModel `bun:"table:ingest_state,alias:is"`

	UUID      uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`
	CreatedAt time.Time `bun:"type:timestamptz,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"type:timestamptz,nullzero,default:current_timestamp"`
	Namespace string    `bun:",notnull"`
	Source    string    `bun:",notnull"`
	LastBatch int       `bun:",notnull"`
}

var _ bun.BeforeAppendModelHook = (*IngestStateSchema)(nil)

func (s *IngestStateSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (s *IngestStateSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// Create indexes after table creation
var _ bun.AfterCreateTableHook = (*SessionSchema)(nil)
var _ bun.AfterCreateTableHook = (*MessageLogSchema)(nil)
var _ bun.AfterCreateTableHook = (*ChunkEmbeddingSchema)(nil)
var _ bun.AfterCreateTableHook = (*IngestStateSchema)(nil)

func (*SessionSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*SessionSchema)(nil)).
		Index("session_session_id_idx").
		Column("session_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func (*MessageLogSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*MessageLogSchema)(nil)).
		Index("message_log_session_id_idx").
		Column("session_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func (*ChunkEmbeddingSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	// the unique pair index backs the upsert ON CONFLICT target
	_, err := query.DB().NewCreateIndex().
		Model((*ChunkEmbeddingSchema)(nil)).
		Index("chunk_embedding_namespace_chunk_id_idx").
		Column("namespace", "chunk_id").
		Unique().
		IfNotExists().
		Exec(ctx)
	return err
}

func (*IngestStateSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*IngestStateSchema)(nil)).
		Index("ingest_state_namespace_source_idx").
		Column("namespace", "source").
		Unique().
		IfNotExists().
		Exec(ctx)
	return err
}

var tableList = []bun.BeforeCreateTableHook{
	&IngestStateSchema{},
	&ChunkEmbeddingSchema{},
	&MessageLogSchema{},
	&SessionSchema{},
}

// CreateSchema creates the db schema if it does not exist.
func CreateSchema(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
) error {
	// iterate through tableList in reverse order to create tables with
	// foreign keys first
	for i := len(tableList) - 1; i >= 0; i-- {
		schema := tableList[i]
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	// check that the chunk embedding dimensions match the configured model
	if err := checkChunkEmbeddingDims(ctx, appState, db); err != nil {
		return fmt.Errorf("error checking chunk embedding dimensions: %w", err)
	}

	// Create an HNSW index on chunk_embedding if available
	if isHNSWAvailable(ctx, db) {
		if err := createHNSWIndex(ctx, db, "chunk_embedding", "embedding"); err != nil {
			return fmt.Errorf("error creating hnsw index: %w", err)
		}
	}

	return nil
}

// checkChunkEmbeddingDims compares the width of the embedding column with the
// configured dimensions and recreates the column on mismatch. Changing the
// width invalidates any previously ingested vectors.
func checkChunkEmbeddingDims(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
) error {
	width, err := getEmbeddingColumnWidth(ctx, db)
	if err != nil {
		return err
	}

	dimensions := appState.Config.Embeddings.Dimensions
	if width == dimensions {
		return nil
	}

	log.Warnf(
		"embedding column width %d does not match configured dimensions %d. "+
			"recreating column; previously ingested vectors are lost",
		width,
		dimensions,
	)

	_, err = db.NewDropColumn().
		Model((*ChunkEmbeddingSchema)(nil)).
		Column("embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error dropping embedding column: %w", err)
	}

	_, err = db.NewAddColumn().
		Model((*ChunkEmbeddingSchema)(nil)).
		ColumnExpr(fmt.Sprintf("embedding vector(%d)", dimensions)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error adding embedding column: %w", err)
	}

	return nil
}

// getEmbeddingColumnWidth returns the vector width of the embedding column.
// For the pgvector type, atttypmod carries the declared dimension.
func getEmbeddingColumnWidth(ctx context.Context, db *bun.DB) (int, error) {
	var width int
	err := db.NewSelect().
		Column("atttypmod").
		TableExpr("pg_attribute").
		Where("attrelid = 'chunk_embedding'::regclass").
		Where("attname = 'embedding'").
		Scan(ctx, &width)
	if err != nil {
		return 0, fmt.Errorf("error getting embedding column width: %w", err)
	}
	return width, nil
}

// createHNSWIndex creates an HNSW index on the given table and column if it
// does not exist. Only vector_cosine_ops is supported.
func createHNSWIndex(ctx context.Context, db *bun.DB, table, column string) error {
	const (
		m              = 16
		efConstruction = 64
	)

	idx := table + "_" + column + "_hnsw_idx"

	_, err := db.ExecContext(
		ctx,
		"CREATE INDEX IF NOT EXISTS ? ON ? USING hnsw (? vector_cosine_ops) WITH (m = ?, ef_construction = ?)",
		bun.Ident(idx),
		bun.Ident(table),
		bun.Ident(column),
		m,
		efConstruction,
	)
	return err
}

// isHNSWAvailable checks if the vector extension version is 0.5.0+.
func isHNSWAvailable(ctx context.Context, db *bun.DB) bool {
	const minVersion = "0.5.0"
	requiredVersion, err := semver.NewVersion(minVersion)
	if err != nil {
		log.Error("error parsing required vector extension version: ", err)
		return false
	}

	var version string
	err = db.NewSelect().
		Column("extversion").
		TableExpr("pg_extension").
		Where("extname = 'vector'").
		Scan(ctx, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug("vector extension not installed")
			return false
		}
		log.Error("error checking vector extension version: ", err)
		return false
	}

	thisVersion, err := semver.NewVersion(version)
	if err != nil {
		log.Error("error parsing vector extension version: ", err)
		return false
	}

	if requiredVersion.GreaterThan(thisVersion) {
		log.Infof("vector extension version is < %s. hnsw indexing not available", minVersion)
		return false
	}

	return true
}

// enablePgVectorExtension creates the pgvector extension if it does not exist
// and updates it if it is out of date.
func enablePgVectorExtension(_ context.Context, db *bun.DB) error {
	_, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("error creating pgvector extension: %w", err)
	}

	// if this is an upgrade, we may need to update the pgvector extension
	// this is a no-op if the extension is already up to date
	_, err = db.Exec("ALTER EXTENSION vector UPDATE")
	if err != nil {
		return fmt.Errorf("error updating pgvector extension: %w", err)
	}

	return nil
}

// NewPostgresConn creates a new bun.DB connection to a postgres database
// using the provided DSN. The connection is configured to pool connections
// based on the number of PROCs available.
func NewPostgresConn(dsn string) (*bun.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	maxOpenConns := 4 * runtime.GOMAXPROCS(0)

	// WithReadTimeout is generous to avoid timeouts when creating indexes
	sqldb := sql.OpenDB(
		pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithReadTimeout(10*time.Minute),
		),
	)
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	// Enable pgvector extension
	err := enablePgVectorExtension(ctx, db)
	if err != nil {
		log.Error("error enabling pgvector extension: ", err)
		return nil, err
	}

	return db, nil
}
