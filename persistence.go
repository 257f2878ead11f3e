package auth

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// Store is the persistence contract shared by every entity repository.
// Lookups of absent rows return a nil record and a nil error. The Tx
// variants run against the given transaction.
type Store[T Model] interface {
	Table() string
	ForeignKey() string
	Insert(ctx context.Context, record T) (T, error)
	InsertTx(ctx context.Context, tx bun.IDB, record T) (T, error)
	Get(ctx context.Context, id ID) (T, error)
	GetTx(ctx context.Context, tx bun.IDB, id ID) (T, error)
	GetAll(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, id ID) (T, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id ID) (T, error)
	DeleteAll(ctx context.Context) ([]T, error)
}

// bunStore layers the Store contract on a go-repository-bun repository.
// Inserts and id lookups go through the repository, the entity specific
// queries run on db.
type bunStore[T Model] struct {
	repository.Repository[T]
	db        *bun.DB
	newRecord func() T
	table     string
	fk        string
}

func newBunStore[T Model](db *bun.DB, handlers repository.ModelHandlers[T]) *bunStore[T] {
	if handlers.GetIdentifier == nil {
		handlers.GetIdentifier = func() string { return "id" }
	}
	sample := handlers.NewRecord()
	return &bunStore[T]{
		Repository: repository.NewRepository[T](db, handlers),
		db:         db,
		newRecord:  handlers.NewRecord,
		table:      sample.TableName(),
		fk:         sample.ForeignKeyName(),
	}
}

func (s *bunStore[T]) Table() string      { return s.table }
func (s *bunStore[T]) ForeignKey() string { return s.fk }

func (s *bunStore[T]) Insert(ctx context.Context, record T) (T, error) {
	return s.InsertTx(ctx, s.db, record)
}

func (s *bunStore[T]) InsertTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	created, err := s.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		var zero T
		return zero, NewDBError(rootCause(err), "insert "+s.table)
	}
	return created, nil
}

func (s *bunStore[T]) Get(ctx context.Context, id ID) (T, error) {
	return s.GetTx(ctx, s.db, id)
}

func (s *bunStore[T]) GetTx(ctx context.Context, tx bun.IDB, id ID) (T, error) {
	record, _, err := s.getTx(ctx, tx, id)
	return record, err
}

func (s *bunStore[T]) getTx(ctx context.Context, tx bun.IDB, id ID) (T, bool, error) {
	var zero T
	record, err := s.Repository.GetByIdentifierTx(ctx, tx, id.String())
	if err != nil {
		if isNotFound(err) {
			return zero, false, nil
		}
		return zero, false, NewDBError(rootCause(err), "get "+s.table)
	}
	return record, true, nil
}

func (s *bunStore[T]) GetAll(ctx context.Context) ([]T, error) {
	return s.getAll(ctx, s.db)
}

func (s *bunStore[T]) getAll(ctx context.Context, tx bun.IDB) ([]T, error) {
	records := []T{}
	if err := tx.NewSelect().Model(&records).Scan(ctx); err != nil {
		if isNotFound(err) {
			return records, nil
		}
		return nil, NewDBError(err, "get all "+s.table)
	}
	return records, nil
}

func (s *bunStore[T]) Delete(ctx context.Context, id ID) (T, error) {
	return s.DeleteTx(ctx, s.db, id)
}

// DeleteTx returns the removed row, or nil when nothing matched.
func (s *bunStore[T]) DeleteTx(ctx context.Context, tx bun.IDB, id ID) (T, error) {
	var zero T
	record, found, err := s.getTx(ctx, tx, id)
	if err != nil || !found {
		return zero, err
	}

	if _, err := tx.NewDelete().Model(s.newRecord()).Where("id = ?", id).Exec(ctx); err != nil {
		return zero, NewDBError(err, "delete "+s.table)
	}
	return record, nil
}

func (s *bunStore[T]) DeleteAll(ctx context.Context) ([]T, error) {
	var removed []T
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		records, err := s.getAll(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(s.newRecord()).Where("1 = 1").Exec(ctx); err != nil {
			return NewDBError(err, "delete all "+s.table)
		}
		removed = records
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *bunStore[T]) findOne(ctx context.Context, tx bun.IDB, op, where string, args ...any) (T, error) {
	var zero T
	record := s.newRecord()
	err := tx.NewSelect().Model(record).Where(where, args...).Limit(1).Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return zero, nil
		}
		return zero, NewDBError(err, op)
	}
	return record, nil
}

func (s *bunStore[T]) findMany(ctx context.Context, tx bun.IDB, op, where string, args ...any) ([]T, error) {
	records := []T{}
	err := tx.NewSelect().Model(&records).Where(where, args...).Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, NewDBError(err, op)
	}
	return records, nil
}

// deleteByUserTx removes every row owned by userID and returns how many.
func (s *bunStore[T]) deleteByUserTx(ctx context.Context, tx bun.IDB, userID ID) (int, error) {
	res, err := tx.NewDelete().Model(s.newRecord()).Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return 0, NewDBError(err, "delete "+s.table+" by user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewDBError(err, "delete "+s.table+" by user")
	}
	return int(n), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || stderrors.Is(err, sql.ErrNoRows)
}

// rootCause unwraps to the driver error so NewDBError classifies what
// the database reported.
func rootCause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
