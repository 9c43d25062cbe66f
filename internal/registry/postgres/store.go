package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-signin/internal/facematch"
	"github.com/kozaktomas/face-signin/internal/registry"
)

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const (
	clientColumns = `id, first_name, last_name, email, role, unit_number, building_name, status, created_at`
	taskColumns   = `id, client_id, type, description, date, repeat_days, disabled, created_at`
)

// Store is the PostgreSQL-backed registry.
type Store struct {
	pool *Pool
}

var _ registry.Store = (*Store)(nil)

// NewStore creates a registry store on top of a migrated pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Gallery returns encodings of the given kind ordered by client registration time, then id.
func (s *Store) Gallery(ctx context.Context, kind facematch.Kind) ([]facematch.GalleryEntry, error) {
	var query string
	switch kind {
	case facematch.KindVector:
		query = `
			SELECT e.client_id, e.vec
			FROM face_encodings e
			JOIN clients c ON c.id = e.client_id
			WHERE e.kind = 'vector'
			ORDER BY c.created_at, c.id
		`
	case facematch.KindGeometry:
		query = `
			SELECT e.client_id, e.points
			FROM face_encodings e
			JOIN clients c ON c.id = e.client_id
			WHERE e.kind = 'geometry'
			ORDER BY c.created_at, c.id
		`
	default:
		return nil, fmt.Errorf("unknown encoding kind %d", int(kind))
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var gallery []facematch.GalleryEntry
	for rows.Next() {
		var id string
		var enc facematch.Encoding
		if kind == facematch.KindVector {
			var vec pgvector.Vector
			if err := rows.Scan(&id, &vec); err != nil {
				return nil, fmt.Errorf("scan gallery row: %w", err)
			}
			enc = facematch.Encoding{Kind: facematch.KindVector, Values: float64s(vec.Slice())}
		} else {
			var points pq.Float64Array
			if err := rows.Scan(&id, &points); err != nil {
				return nil, fmt.Errorf("scan gallery row: %w", err)
			}
			enc = facematch.Encoding{Kind: facematch.KindGeometry, Values: []float64(points)}
		}
		gallery = append(gallery, facematch.GalleryEntry{Identity: facematch.Identity(id), Encoding: enc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return gallery, nil
}

// SaveEncoding upserts the client's encoding.
func (s *Store) SaveEncoding(ctx context.Context, id facematch.Identity, enc facematch.Encoding) error {
	if err := enc.Validate(); err != nil {
		return fmt.Errorf("invalid encoding for %s: %w", id, err)
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return registry.ErrClientNotFound
	}

	var vec, points any
	if enc.Kind == facematch.KindVector {
		vec = pgvector.NewVector(enc.Float32s())
	} else {
		points = pq.Array(enc.Values)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO face_encodings (client_id, kind, dim, vec, points, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (client_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			dim = EXCLUDED.dim,
			vec = EXCLUDED.vec,
			points = EXCLUDED.points,
			updated_at = NOW()
	`, string(id), enc.Kind.String(), enc.Len(), vec, points)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return registry.ErrClientNotFound
		}
		return fmt.Errorf("save encoding: %w", err)
	}
	return nil
}

// CreateClient inserts a new client.
func (s *Store) CreateClient(ctx context.Context, c *registry.Client) error {
	if c.ID == "" {
		c.ID = facematch.Identity(uuid.NewString())
	}
	if c.CreatedAt.IsZero() {
		// Postgres keeps microseconds.
		c.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if c.Status == nil {
		c.Status = registry.DefaultStatus()
	}

	status, err := json.Marshal(c.Status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, string(c.ID), c.FirstName, c.LastName, c.Email, c.Role, c.UnitNumber, c.BuildingName, string(status), c.CreatedAt)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return registry.ErrEmailTaken
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by id.
func (s *Store) GetClient(ctx context.Context, id facematch.Identity) (*registry.Client, error) {
	if _, err := uuid.Parse(string(id)); err != nil {
		return nil, registry.ErrClientNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, string(id))
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// ListClients returns all clients in registration order.
func (s *Store) ListClients(ctx context.Context) ([]registry.Client, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()
	return scanClients(rows)
}

// SearchClients matches first, last or full name, ignoring case and diacritics.
// The SQL normalization mirrors registry.NormalizePersonName.
func (s *Store) SearchClients(ctx context.Context, name string) ([]registry.Client, error) {
	pattern := "%" + escapeLike(registry.NormalizePersonName(name)) + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE LOWER(REPLACE(unaccent(first_name), '-', ' ')) LIKE $1
		   OR LOWER(REPLACE(unaccent(last_name), '-', ' ')) LIKE $1
		   OR LOWER(REPLACE(unaccent(first_name || ' ' || last_name), '-', ' ')) LIKE $1
		ORDER BY created_at, id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	defer rows.Close()
	return scanClients(rows)
}

// UpdateStatus merges flags into the client's status.
func (s *Store) UpdateStatus(ctx context.Context, id facematch.Identity, status map[string]bool) error {
	if err := registry.ValidateStatus(status); err != nil {
		return err
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return registry.ErrClientNotFound
	}
	patch, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	result, err := s.pool.Exec(ctx,
		`UPDATE clients SET status = status || $2::jsonb WHERE id = $1`, string(id), string(patch))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(result)
}

// DeleteClient removes a client; its encoding and tasks go with it.
func (s *Store) DeleteClient(ctx context.Context, id facematch.Identity) error {
	if _, err := uuid.Parse(string(id)); err != nil {
		return registry.ErrClientNotFound
	}
	result, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return requireRow(result)
}

// AddTask validates and inserts a task for an existing client.
func (s *Store) AddTask(ctx context.Context, t *registry.Task) error {
	if err := t.Normalize(); err != nil {
		return err
	}
	if _, err := uuid.Parse(string(t.ClientID)); err != nil {
		return registry.ErrClientNotFound
	}
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	t.Date = t.Date.UTC().Truncate(time.Microsecond)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, string(t.ClientID), t.Type, t.Description, t.Date, pq.Array(t.RepeatDays), t.Disabled, t.CreatedAt)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return registry.ErrClientNotFound
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ListTasks returns the client's tasks ordered by date.
func (s *Store) ListTasks(ctx context.Context, clientID facematch.Identity) ([]registry.Task, error) {
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE client_id = $1
		ORDER BY date, created_at, id
	`, string(clientID))
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []registry.Task{}
	for rows.Next() {
		var t registry.Task
		var id, client string
		var days pq.StringArray
		if err := rows.Scan(&id, &client, &t.Type, &t.Description, &t.Date, &days, &t.Disabled, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.ID = id
		t.ClientID = facematch.Identity(client)
		t.RepeatDays = []string(days)
		t.Date = t.Date.UTC()
		t.CreatedAt = t.CreatedAt.UTC()
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes one of the client's tasks.
func (s *Store) DeleteTask(ctx context.Context, clientID facematch.Identity, taskID string) error {
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return err
	}
	if _, err := uuid.Parse(taskID); err != nil {
		return registry.ErrTaskNotFound
	}
	result, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND client_id = $2`, taskID, string(clientID))
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return registry.ErrTaskNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (*registry.Client, error) {
	var c registry.Client
	var id string
	var status []byte
	if err := row.Scan(&id, &c.FirstName, &c.LastName, &c.Email, &c.Role,
		&c.UnitNumber, &c.BuildingName, &status, &c.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap and check sql.ErrNoRows
	}
	c.ID = facematch.Identity(id)
	c.CreatedAt = c.CreatedAt.UTC()
	if err := json.Unmarshal(status, &c.Status); err != nil {
		return nil, fmt.Errorf("unmarshal status of %s: %w", id, err)
	}
	return &c, nil
}

func scanClients(rows *sql.Rows) ([]registry.Client, error) {
	var clients []registry.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return registry.ErrClientNotFound
	}
	return nil
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func float64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
