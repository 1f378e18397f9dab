package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

const defaultTableName = "conversations"

const selectColumns = `id, user_id, title, model, messages, created_at, updated_at, version`

// Querier abstracts the pgx methods PostgresStore needs. *pgxpool.Pool and
// pgxmock pools both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store on a single conversations table.
type PostgresStore struct {
	db        Querier
	tableName string
	baseName  string
	ttl       time.Duration
	now       func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures optional PostgresStore behavior.
type PostgresOption func(*PostgresStore)

// WithTableName overrides the default table name. The name is sanitized
// because it is interpolated into queries.
func WithTableName(name string) PostgresOption {
	return func(s *PostgresStore) {
		s.tableName = pgx.Identifier{name}.Sanitize()
		s.baseName = name
	}
}

// WithPostgresClock overrides the time source.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		s.now = now
	}
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(db Querier, ttl time.Duration, opts ...PostgresOption) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &PostgresStore{
		db:        db,
		tableName: defaultTableName,
		baseName:  defaultTableName,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new conversation.
func (s *PostgresStore) Create(ctx context.Context, conv *model.Conversation) error {
	messages, err := encodeMessages(conv.Messages)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, user_id, title, model, messages, created_at, updated_at, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)`, s.tableName)

	_, err = s.db.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.Model,
		messages,
		conv.CreatedAt,
		conv.UpdatedAt,
		s.now().Add(s.ttl),
	)
	if err != nil {
		return wrapErr("create", err)
	}
	return nil
}

// Get returns a live conversation.
func (s *PostgresStore) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, _, err := s.load(ctx, userID, id)
	return conv, err
}

// Append adds msgs to the end of the conversation in one conditional write.
func (s *PostgresStore) Append(ctx context.Context, userID, id string, msgs ...model.Message) (*model.Conversation, error) {
	return update(ctx,
		func() (*model.Conversation, int64, error) { return s.load(ctx, userID, id) },
		func(conv *model.Conversation, version int64) (bool, error) { return s.save(ctx, conv, version) },
		func(conv *model.Conversation) {
			conv.Messages = append(conv.Messages, msgs...)
			conv.UpdatedAt = s.now().UTC()
		},
	)
}

// Replace overwrites the title and/or the message list.
func (s *PostgresStore) Replace(ctx context.Context, userID, id string, title *string, messages *[]model.Message) (*model.Conversation, error) {
	return update(ctx,
		func() (*model.Conversation, int64, error) { return s.load(ctx, userID, id) },
		func(conv *model.Conversation, version int64) (bool, error) { return s.save(ctx, conv, version) },
		func(conv *model.Conversation) {
			if title != nil {
				conv.Title = *title
			}
			if messages != nil {
				conv.Messages = append([]model.Message{}, (*messages)...)
			}
			conv.UpdatedAt = s.now().UTC()
		},
	)
}

// Delete removes a conversation, reporting whether a live one existed.
func (s *PostgresStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND id = $2 AND expires_at > $3`, s.tableName)

	tag, err := s.db.Exec(ctx, query, userID, id, s.now())
	if err != nil {
		return false, wrapErr("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns a page of the user's conversations ordered by recency.
func (s *PostgresStore) List(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	now := s.now()

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND expires_at > $2`, s.tableName)
	var total int
	if err := s.db.QueryRow(ctx, countQuery, userID, now).Scan(&total); err != nil {
		return nil, wrapErr("count", err)
	}

	page := &Page{Items: []model.Conversation{}, Total: total}
	if offset >= total {
		return page, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY updated_at DESC, id DESC
		LIMIT $3 OFFSET $4`, selectColumns, s.tableName)

	rows, err := s.db.Query(ctx, query, userID, now, limit, offset)
	if err != nil {
		return nil, wrapErr("list", err)
	}
	defer rows.Close()

	for rows.Next() {
		conv, _, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list", err)
	}
	return page, nil
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("store: ping: %w: %w", model.ErrStoreUnavailable, err)
	}
	return nil
}

// PurgeExpired deletes conversations whose TTL has elapsed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.tableName)

	tag, err := s.db.Exec(ctx, query, s.now())
	if err != nil {
		return 0, wrapErr("purge", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) load(ctx context.Context, userID, id string) (*model.Conversation, int64, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE user_id = $1 AND id = $2 AND expires_at > $3`, selectColumns, s.tableName)

	conv, version, err := scanConversation(s.db.QueryRow(ctx, query, userID, id, s.now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, model.ErrNotFound
		}
		return nil, 0, err
	}
	return conv, version, nil
}

func (s *PostgresStore) save(ctx context.Context, conv *model.Conversation, version int64) (bool, error) {
	messages, err := encodeMessages(conv.Messages)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %s
		SET title = $1, messages = $2, updated_at = $3, expires_at = $4, version = version + 1
		WHERE user_id = $5 AND id = $6 AND version = $7`, s.tableName)

	tag, err := s.db.Exec(ctx, query,
		conv.Title,
		messages,
		conv.UpdatedAt,
		s.now().Add(s.ttl),
		conv.UserID,
		conv.ID,
		version,
	)
	if err != nil {
		return false, wrapErr("update", err)
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, int64, error) {
	var (
		conv     model.Conversation
		messages []byte
		version  int64
	)
	err := row.Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.Model, &messages,
		&conv.CreatedAt, &conv.UpdatedAt, &version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, err
		}
		return nil, 0, wrapErr("scan", err)
	}

	conv.Messages, err = decodeMessages(messages)
	if err != nil {
		return nil, 0, err
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return &conv, version, nil
}

// wrapErr tags connectivity failures with model.ErrStoreUnavailable so the
// service layer can degrade instead of failing the request.
func wrapErr(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("store: %s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

func isUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.Timeout(err)
}
