package pairing

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMirror is a Mirror backed by PostgreSQL.
//
// Ownership model:
//   - PostgresMirror does NOT own the pgx pool. The caller must close it.
//
// Write model:
//   - Append-only audit rows; session close and request resolution update
//     the existing row in place.
//   - Every write is best-effort from the Service's perspective; errors
//     returned here are logged and swallowed by the caller.
type PostgresMirror struct {
	pool   *pgxpool.Pool
	schema string
}

// MirrorOption configures PostgresMirror behavior.
type MirrorOption func(*PostgresMirror) error

// WithMirrorSchema sets the DB schema used by the mirror (default: "tether").
// The schema name is validated and safely quoted in queries.
func WithMirrorSchema(schema string) MirrorOption {
	return func(m *PostgresMirror) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("pairing: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("pairing: invalid schema identifier")
		}
		m.schema = schema
		return nil
	}
}

// NewPostgresMirror constructs a Postgres-backed Mirror.
func NewPostgresMirror(pool *pgxpool.Pool, opts ...MirrorOption) (*PostgresMirror, error) {
	m := &PostgresMirror{
		pool:   pool,
		schema: "tether",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.pool == nil {
		return nil, errors.New("pairing: nil pool")
	}
	return m, nil
}

// SessionCreated records a new session. Only the code hash is stored.
func (m *PostgresMirror) SessionCreated(ctx context.Context, sessionID, codeHash, signerIdentity string, createdAt, expiresAt time.Time) error {
	sessions := pgIdent(m.schema, "pairing_sessions")
	_, err := m.pool.Exec(ctx,
		`INSERT INTO `+sessions+` (id, code_hash, signer_identity, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		sessionID, codeHash, signerIdentity, createdAt, expiresAt,
	)
	return err
}

// SessionPaired stamps the requester connection time.
func (m *PostgresMirror) SessionPaired(ctx context.Context, sessionID string, at time.Time) error {
	sessions := pgIdent(m.schema, "pairing_sessions")
	_, err := m.pool.Exec(ctx,
		`UPDATE `+sessions+` SET paired_at = $2 WHERE id = $1`,
		sessionID, at,
	)
	return err
}

// SessionClosed stamps session teardown with its reason.
func (m *PostgresMirror) SessionClosed(ctx context.Context, sessionID, reason string, at time.Time) error {
	sessions := pgIdent(m.schema, "pairing_sessions")
	_, err := m.pool.Exec(ctx,
		`UPDATE `+sessions+` SET closed_at = $2, close_reason = $3 WHERE id = $1`,
		sessionID, at, reason,
	)
	return err
}

// RequestCreated records a new signing request.
func (m *PostgresMirror) RequestCreated(ctx context.Context, req RequestView) error {
	requests := pgIdent(m.schema, "signing_requests")
	_, err := m.pool.Exec(ctx,
		`INSERT INTO `+requests+` (id, session_id, type, payload, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		req.RequestID, req.SessionID, req.Type, []byte(req.Payload), string(req.Status), req.CreatedAt, req.ExpiresAt,
	)
	return err
}

// RequestResolved records the terminal outcome of a request.
func (m *PostgresMirror) RequestResolved(ctx context.Context, req RequestView) error {
	requests := pgIdent(m.schema, "signing_requests")
	_, err := m.pool.Exec(ctx,
		`UPDATE `+requests+`
		 SET status = $2, response = $3, error = $4, completed_at = $5
		 WHERE id = $1 AND status = 'pending'`,
		req.RequestID, string(req.Status), []byte(req.Response), req.Error, req.CompletedAt,
	)
	return err
}

// ---- identifier safety ----

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent joins a validated schema with a literal table name.
func pgIdent(schema, table string) string {
	return `"` + schema + `"."` + table + `"`
}
