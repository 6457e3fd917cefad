package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/server/models"
)

// PostgresRepository keeps user records in a users table. The owned-file list
// and the share map are stored as jsonb, which matches the update-field
// granularity of the Repository contract.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT username, pass_hash, files, shared_files FROM users
		 WHERE username = $1
		 `

	var filesRaw, sharedRaw []byte
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.Name, &user.PassHash, &filesRaw, &sharedRaw)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := unmarshalFields(user, filesRaw, sharedRaw); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresRepository) All(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT username, pass_hash, files, shared_files FROM users
		 ORDER BY username
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		var filesRaw, sharedRaw []byte
		user := &models.User{}
		if err := rows.Scan(&user.Name, &user.PassHash, &filesRaw, &sharedRaw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := unmarshalFields(user, filesRaw, sharedRaw); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	filesRaw, sharedRaw, err := marshalFields(user)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO users (username, pass_hash, files, shared_files)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, user.Name, user.PassHash, filesRaw, sharedRaw)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) UpdateFiles(ctx context.Context, username string, files []string) error {
	raw, err := json.Marshal(normalizeFiles(files))
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}
	return r.updateField(ctx, username, "files", raw)
}

func (r *PostgresRepository) UpdateSharedFiles(ctx context.Context, username string, shared map[string][]string) error {
	raw, err := json.Marshal(normalizeShared(shared))
	if err != nil {
		return fmt.Errorf("marshal shared_files: %w", err)
	}
	return r.updateField(ctx, username, "shared_files", raw)
}

func (r *PostgresRepository) updateField(ctx context.Context, username, field string, raw []byte) error {
	// field is one of two compile-time constants, never user input
	query := fmt.Sprintf(
		`UPDATE users SET %s = $2
		 WHERE username = $1
		 `, field)

	res, err := r.db.ExecContext(ctx, query, username, raw)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func marshalFields(user *models.User) ([]byte, []byte, error) {
	filesRaw, err := json.Marshal(normalizeFiles(user.Files))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal files: %w", err)
	}
	sharedRaw, err := json.Marshal(normalizeShared(user.SharedFiles))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal shared_files: %w", err)
	}
	return filesRaw, sharedRaw, nil
}

func unmarshalFields(user *models.User, filesRaw, sharedRaw []byte) error {
	if err := json.Unmarshal(filesRaw, &user.Files); err != nil {
		return fmt.Errorf("unmarshal files: %w", err)
	}
	if err := json.Unmarshal(sharedRaw, &user.SharedFiles); err != nil {
		return fmt.Errorf("unmarshal shared_files: %w", err)
	}
	return nil
}

func normalizeFiles(files []string) []string {
	if files == nil {
		return []string{}
	}
	return files
}

func normalizeShared(shared map[string][]string) map[string][]string {
	if shared == nil {
		return map[string][]string{}
	}
	return shared
}
