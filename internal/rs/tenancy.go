package rs

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fenwick-labs/graphrag/internal/apierr"
	"github.com/fenwick-labs/graphrag/internal/domain"
)

// CreateWorkspace inserts a workspace row and its auto-created default
// vault, matching the "default vault is auto-created with the workspace"
// lifecycle rule (spec §3).
func (s *Store) CreateWorkspace(ctx context.Context, name string) (domain.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Workspace{}, apierr.Invalid("workspace name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Workspace{}, err
	}
	defer tx.Rollback(ctx)

	ws := domain.Workspace{ID: uuid.NewString(), Name: name}
	if _, err := tx.Exec(ctx, `INSERT INTO workspaces (id, name) VALUES ($1, $2)`, ws.ID, ws.Name); err != nil {
		return domain.Workspace{}, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO vaults (id, workspace_id, name, is_default, description) VALUES ($1, $2, 'default', TRUE, '')`,
		uuid.NewString(), ws.ID,
	); err != nil {
		return domain.Workspace{}, err
	}
	return ws, tx.Commit(ctx)
}

// GetWorkspace loads a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	var ws domain.Workspace
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM workspaces WHERE id = $1`, id).Scan(&ws.ID, &ws.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Workspace{}, apierr.NotFound("workspace not found")
	}
	return ws, err
}

// CreateVault inserts a non-default vault for a workspace.
func (s *Store) CreateVault(ctx context.Context, workspaceID, name, description string) (domain.Vault, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Vault{}, apierr.Invalid("vault name is required")
	}
	v := domain.Vault{ID: uuid.NewString(), WorkspaceID: workspaceID, Name: name, Description: description}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vaults (id, workspace_id, name, is_default, description) VALUES ($1, $2, $3, FALSE, $4)`,
		v.ID, v.WorkspaceID, v.Name, v.Description,
	)
	if isUniqueViolation(err) {
		return domain.Vault{}, apierr.Conflict("a vault with this name already exists in the workspace")
	}
	return v, err
}

// GetVault loads a vault by id.
func (s *Store) GetVault(ctx context.Context, id string) (domain.Vault, error) {
	var v domain.Vault
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, is_default, description FROM vaults WHERE id = $1`, id,
	).Scan(&v.ID, &v.WorkspaceID, &v.Name, &v.IsDefault, &v.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vault{}, apierr.NotFound("vault not found")
	}
	return v, err
}

// DeleteVault refuses to delete the default vault or a vault whose linked
// connections still have documents, per the §3 lifecycle rule.
func (s *Store) DeleteVault(ctx context.Context, id string) error {
	v, err := s.GetVault(ctx, id)
	if err != nil {
		return err
	}
	if v.IsDefault {
		return apierr.Conflict("the default vault cannot be deleted")
	}

	var docCount int
	err = s.pool.QueryRow(ctx, `
SELECT count(*)
FROM documents d
JOIN vault_connection_links l ON l.connection_id = d.connection_id
WHERE l.vault_id = $1`, id).Scan(&docCount)
	if err != nil {
		return err
	}
	if docCount > 0 {
		return apierr.Conflict("vault has documents reachable through its linked connections")
	}

	_, err = s.pool.Exec(ctx, `DELETE FROM vaults WHERE id = $1`, id)
	return err
}

// CreateConnection inserts a workspace-scoped bound external identity.
func (s *Store) CreateConnection(ctx context.Context, workspaceID, sourceType, externalAuthID string) (domain.Connection, error) {
	c := domain.Connection{
		ID:             uuid.NewString(),
		WorkspaceID:    workspaceID,
		SourceType:     sourceType,
		ExternalAuthID: externalAuthID,
		Status:         domain.ConnectionActive,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO connections (id, workspace_id, source_type, external_auth_id, status) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.WorkspaceID, c.SourceType, c.ExternalAuthID, c.Status,
	)
	return c, err
}

// GetConnection loads a connection by id.
func (s *Store) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	var c domain.Connection
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, source_type, external_auth_id, status FROM connections WHERE id = $1`, id,
	).Scan(&c.ID, &c.WorkspaceID, &c.SourceType, &c.ExternalAuthID, &c.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Connection{}, apierr.NotFound("connection not found")
	}
	return c, err
}

// SetConnectionStatus updates the connection lifecycle status.
func (s *Store) SetConnectionStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE connections SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apierr.NotFound("connection not found")
	}
	return nil
}

// LinkVaultConnection adds a (vault_id, connection_id) pair to the
// many-to-many set; idempotent.
func (s *Store) LinkVaultConnection(ctx context.Context, vaultID, connectionID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vault_connection_links (vault_id, connection_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		vaultID, connectionID,
	)
	return err
}

// UnlinkVaultConnection removes a (vault_id, connection_id) pair.
func (s *Store) UnlinkVaultConnection(ctx context.Context, vaultID, connectionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM vault_connection_links WHERE vault_id = $1 AND connection_id = $2`, vaultID, connectionID,
	)
	return err
}

// ConnectionIDsForVaults resolves the union of connection_id over all
// VaultConnectionLink rows for the given vault set (spec §4.9 stage 2).
func (s *Store) ConnectionIDsForVaults(ctx context.Context, vaultIDs []string) ([]string, error) {
	if len(vaultIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT connection_id FROM vault_connection_links WHERE vault_id = ANY($1)`, vaultIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
