package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/secureform/internal/model"
	"github.com/lib/pq"
)

// PostgresSubmissionRepo はPostgreSQLを使用したフォーム送信リポジトリ。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

const submissionColumns = `id, full_name, email, phone, message, security_preferences, submitted_at, ip_address, user_agent`

// Create は送信を保存する。IDはserial、送信時刻はDBのnow()で採番される。
func (r *PostgresSubmissionRepo) Create(ctx context.Context, input *model.SubmissionInput, client model.ClientInfo) (*model.FormSubmission, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO form_submissions (full_name, email, phone, message, security_preferences, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+submissionColumns,
		input.FullName,
		input.Email,
		input.Phone,
		input.Message,
		pq.Array(preferencesToStrings(input.SecurityPreferences)),
		model.StringPtr(client.IPAddress),
		model.StringPtr(client.UserAgent),
	)

	sub, err := scanSubmission(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert form submission: %w", err)
	}
	return sub, nil
}

// FindByID は指定IDの送信を取得する。見つからない場合はnilを返す。
func (r *PostgresSubmissionRepo) FindByID(ctx context.Context, id int64) (*model.FormSubmission, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM form_submissions WHERE id = $1`,
		id,
	)

	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find form submission by ID: %w", err)
	}
	return sub, nil
}

// List はすべての送信を送信時刻の降順で返す。
func (r *PostgresSubmissionRepo) List(ctx context.Context) ([]*model.FormSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM form_submissions ORDER BY submitted_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list form submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*model.FormSubmission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan form submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate form submissions: %w", err)
	}

	return subs, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*model.FormSubmission, error) {
	var (
		sub       model.FormSubmission
		phone     sql.NullString
		prefs     pq.StringArray
		ipAddress sql.NullString
		userAgent sql.NullString
	)

	err := row.Scan(
		&sub.ID, &sub.FullName, &sub.Email, &phone, &sub.Message,
		&prefs, &sub.SubmittedAt, &ipAddress, &userAgent,
	)
	if err != nil {
		return nil, err
	}

	sub.Phone = nullStringPtr(phone)
	sub.IPAddress = nullStringPtr(ipAddress)
	sub.UserAgent = nullStringPtr(userAgent)
	if prefs != nil {
		sub.SecurityPreferences = make([]model.SecurityPreference, 0, len(prefs))
		for _, p := range prefs {
			sub.SecurityPreferences = append(sub.SecurityPreferences, model.SecurityPreference(p))
		}
	}

	return &sub, nil
}

// preferencesToStrings はpq.Arrayに渡すため[]stringに変換する。nilはNULLとして保存される。
func preferencesToStrings(prefs []model.SecurityPreference) []string {
	if prefs == nil {
		return nil
	}
	out := make([]string, len(prefs))
	for i, p := range prefs {
		out[i] = string(p)
	}
	return out
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// compile-time interface check
var _ SubmissionRepository = (*PostgresSubmissionRepo)(nil)
