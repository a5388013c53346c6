package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/catalogsvc/internal/telemetry/tracing"
	"github.com/2beens/catalogsvc/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultNumberBase = 1026

	counterName                = "catalog_entry"
	sequentialNumberConstraint = "catalog_entry_sequential_number_key"
	createMaxAttempts          = 3
)

var _ entriesRepo = (*Repo)(nil)

type Repo struct {
	db         *pgxpool.Pool
	numberBase int

	// ability to inject id generator and clock (for unit and integration testing)
	NewIDFunc func() uuid.UUID
	NowFunc   func() time.Time
}

func NewRepo(db *pgxpool.Pool, numberBase int) *Repo {
	if numberBase <= 0 {
		numberBase = DefaultNumberBase
	}
	return &Repo{
		db:         db,
		numberBase: numberBase,
		NewIDFunc:  uuid.New,
		NowFunc:    time.Now,
	}
}

// Create stores the entry under the next sequential number.
// The number comes from the counter row, incremented in the same transaction as the insert,
// and a collision on the unique sequential number is retried a few times.
func (r *Repo) Create(ctx context.Context, newEntry NewEntry) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for attempt := 1; attempt <= createMaxAttempts; attempt++ {
		span.SetAttributes(attribute.Int("attempt", attempt))

		summary, err := r.create(ctx, newEntry)
		if err == nil {
			return summary, nil
		}
		if !pkg.IsUniqueViolationOn(err, sequentialNumberConstraint) {
			return nil, err
		}

		log.Warnf("catalog repo, sequential number conflict, attempt %d/%d: %s", attempt, createMaxAttempts, err)
	}

	return nil, fmt.Errorf("create entry: sequential number still taken after %d attempts", createMaxAttempts)
}

func (r *Repo) create(ctx context.Context, newEntry NewEntry) (*Summary, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	// the counter never falls behind rows that are already stored
	var offset int
	if err := tx.QueryRow(
		ctx,
		`
			INSERT INTO catalog_counter AS c (name, value)
			VALUES ($1, 1)
			ON CONFLICT (name) DO UPDATE
			SET value = GREATEST(
			    c.value,
			    (SELECT COALESCE(MAX(sequential_number) + 1 - $2, 0) FROM catalog_entry)
			) + 1
			RETURNING value - 1
		`,
		counterName,
		r.numberBase,
	).Scan(&offset); err != nil {
		return nil, fmt.Errorf("next sequential number: %w", err)
	}

	entry := Entry{
		ID:               r.NewIDFunc(),
		SequentialNumber: r.numberBase + offset,
		Name:             newEntry.Name,
		TypeCode:         newEntry.TypeCode,
		Image:            newEntry.Image,
		CreatedAt:        r.NowFunc(),
	}

	if _, err := tx.Exec(
		ctx,
		`
			INSERT INTO catalog_entry (id, sequential_number, name, type_code, image, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
		entry.ID,
		entry.SequentialNumber,
		entry.Name,
		entry.TypeCode,
		entry.Image,
		entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	summary := entry.Summary()
	return &summary, nil
}

func (r *Repo) List(ctx context.Context) (_ []Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, name, sequential_number, type_code
			FROM catalog_entry
			ORDER BY sequential_number
		`,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries [query]: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.SequentialNumber, &s.TypeCode); err != nil {
			return nil, fmt.Errorf("list entries [rows scan]: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries [rows error]: %w", err)
	}

	span.SetAttributes(attribute.Int("entries", len(summaries)))
	return summaries, nil
}

func (r *Repo) GetImage(ctx context.Context, id uuid.UUID) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.get_image")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("entry.id", id.String()))

	var image []byte
	if err := r.db.QueryRow(
		ctx,
		`SELECT image FROM catalog_entry WHERE id = $1`,
		id,
	).Scan(&image); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("get image [query row]: %w", err)
	}

	return image, nil
}
