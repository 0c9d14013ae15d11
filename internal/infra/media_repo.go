package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// stateFromFields rebuilds the state variant from flat storage columns.
// Only the presence of payload bytes makes an entry Stored; the stored
// isDownloaded flag is not trusted on its own.
func stateFromFields(hasPayload bool, ext string, size int64, localPath string) models.State {
	switch {
	case hasPayload:
		return models.Stored{Extension: ext, Size: size}
	case localPath != "":
		return models.OnDisk{LocalPath: localPath}
	default:
		return models.Pending{}
	}
}

type PostgresMediaRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMediaRepo(pool *pgxpool.Pool) *PostgresMediaRepo {
	return &PostgresMediaRepo{pool: pool}
}

const mediaColumns = `id::text, url, title, hashtags, payload IS NOT NULL,
	COALESCE(file_extension, ''), COALESCE(octet_length(payload), 0)::bigint, COALESCE(local_path, ''), created_at`

func scanMedia(row pgx.Row) (*models.Media, error) {
	var (
		m          models.Media
		hasPayload bool
		ext        string
		size       int64
		localPath  string
	)
	err := row.Scan(&m.ID, &m.URL, &m.Title, &m.Hashtags, &hasPayload, &ext, &size, &localPath, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.State = stateFromFields(hasPayload, ext, size, localPath)
	return &m, nil
}

func (r *PostgresMediaRepo) queryOne(ctx context.Context, where string, args ...any) (*models.Media, error) {
	m, err := scanMedia(r.pool.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

func (r *PostgresMediaRepo) Get(ctx context.Context, id string) (*models.Media, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, `id = $1`, uid)
}

func (r *PostgresMediaRepo) FindByURL(ctx context.Context, url string) (*models.Media, error) {
	return r.queryOne(ctx, `url = $1`, url)
}

func (r *PostgresMediaRepo) FindByLegacyPath(ctx context.Context, paths ...string) (*models.Media, error) {
	return r.queryOne(ctx, `local_path = ANY($1) LIMIT 1`, paths)
}

func (r *PostgresMediaRepo) Insert(ctx context.Context, media *models.Media, payload *models.Payload) (*models.Media, error) {
	var (
		data      []byte
		ext       *string
		size      *int64
		localPath *string
	)
	if payload != nil {
		data = payload.Data
		if data == nil {
			data = []byte{}
		}
		e, s := payload.Extension, payload.Size()
		ext, size = &e, &s
	} else if p, ok := media.LegacyPath(); ok {
		localPath = &p
	}

	hashtags := media.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	query := `
		INSERT INTO media (id, url, title, hashtags, is_downloaded, payload, file_extension, file_size, local_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + mediaColumns

	row := r.pool.QueryRow(ctx, query,
		uuid.New(), media.URL, media.Title, hashtags, payload != nil,
		data, ext, size, localPath, time.Now().UTC(),
	)
	m, err := scanMedia(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: url %s", ports.ErrDuplicateKey, media.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// UpdateMetadata locks the row so concurrent hashtag additions cannot
// lose each other's tags.
func (r *PostgresMediaRepo) UpdateMetadata(ctx context.Context, id string, upd ports.MetadataUpdate) error {
	uid, err := parseUUID(id)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			title    string
			hashtags []string
		)
		err := tx.QueryRow(ctx, `SELECT title, hashtags FROM media WHERE id = $1 FOR UPDATE`, uid).
			Scan(&title, &hashtags)
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock media: %w", err)
		}

		if upd.Title != nil {
			title = *upd.Title
		}
		for _, tag := range upd.AddHashtags {
			hashtags = models.AddHashtag(hashtags, tag)
		}

		if _, err := tx.Exec(ctx, `UPDATE media SET title = $2, hashtags = $3 WHERE id = $1`, uid, title, hashtags); err != nil {
			return fmt.Errorf("update media: %w", err)
		}
		return nil
	})
}

func (r *PostgresMediaRepo) AttachPayload(ctx context.Context, id string, payload *models.Payload, tag string) error {
	uid, err := parseUUID(id)
	if err != nil {
		return err
	}

	data := payload.Data
	if data == nil {
		data = []byte{}
	}

	query := `
		UPDATE media
		SET is_downloaded = TRUE,
		    payload = $2,
		    file_extension = $3,
		    file_size = $4,
		    local_path = NULL,
		    hashtags = CASE
		        WHEN $5::text = '' OR $5::text = ANY(hashtags) THEN hashtags
		        ELSE array_append(hashtags, $5::text)
		    END
		WHERE id = $1
	`
	res, err := r.pool.Exec(ctx, query, uid, data, payload.Extension, payload.Size(), tag)
	if err != nil {
		return fmt.Errorf("attach payload: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *PostgresMediaRepo) Payload(ctx context.Context, id string) (*models.Payload, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}

	var (
		p    models.Payload
		data []byte
	)
	err = r.pool.QueryRow(ctx,
		`SELECT payload, COALESCE(file_extension, '') FROM media WHERE id = $1`, uid,
	).Scan(&data, &p.Extension)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	// NULL scans to nil, an empty bytea to a non-nil empty slice
	if data == nil {
		return nil, ports.ErrNotFound
	}
	p.Data = data
	return &p, nil
}

func (r *PostgresMediaRepo) Delete(ctx context.Context, id string) error {
	uid, err := parseUUID(id)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *PostgresMediaRepo) List(ctx context.Context) ([]*models.Media, error) {
	return r.queryMany(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY created_at DESC`)
}

// Search matches entries where any query word hits the title or a hashtag.
func (r *PostgresMediaRepo) Search(ctx context.Context, query string) ([]*models.Media, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return r.List(ctx)
	}

	q := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE EXISTS (
			SELECT 1 FROM unnest($1::text[]) AS term
			WHERE to_tsvector('simple', title || ' ' || array_to_string(hashtags, ' '))
			      @@ plainto_tsquery('simple', term)
		)
		ORDER BY created_at DESC
	`
	return r.queryMany(ctx, q, terms)
}

func (r *PostgresMediaRepo) queryMany(ctx context.Context, query string, args ...any) ([]*models.Media, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	out := []*models.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMediaRepo) ClearLegacyPaths(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE media SET local_path = NULL WHERE local_path IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clear local_path: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresMediaRepo) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}
