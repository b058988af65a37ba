package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
)

//go:embed schema.sql
var schema string

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (r *Repo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *Repo) Record(ctx context.Context, recordID string) (model.Record, error) {
	query, args, err := psql.
		Select("id", "model_id", "comment_log").
		From("records").
		Where(sq.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return model.Record{}, err
	}

	var (
		rec model.Record
		log sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.ModelID, &log)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, storage.ErrRecordNotFound
	}
	if err != nil {
		return model.Record{}, err
	}
	if log.Valid {
		rec.CommentLog = &log.String
	}
	return rec, nil
}

func (r *Repo) Fields(ctx context.Context, modelID string) ([]model.Field, error) {
	query, args, err := psql.
		Select("id", "model_id", "api_key", "field_type").
		From("model_fields").
		Where(sq.Eq{"model_id": modelID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := make([]model.Field, 0, 8)
	for rows.Next() {
		var f model.Field
		if err := rows.Scan(&f.ID, &f.ModelID, &f.APIKey, &f.Type); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *Repo) WriteCommentLog(ctx context.Context, recordID string, value *string) error {
	var v sql.NullString
	if value != nil {
		v = sql.NullString{String: *value, Valid: true}
	}

	query, args, err := psql.
		Update("records").
		Set("comment_log", v).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}
