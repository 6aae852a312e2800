package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RecordStore = (*RecordStore)(nil)

const recordColumns = `id, oj_type, submission_id, problem_id, problem_title, problem_slug,
	language, execution_result, code, runtime_ms, memory_kb, submit_time,
	oj_sync_status, github_sync_status, ai_sync_status, notion_sync_status,
	git_file_path, ai_analysis, notion_url, created_at, updated_at`

// channelColumns maps a channel onto its status column and result column.
// The OJ channel has no result column.
var channelColumns = map[domain.Channel][2]string{
	domain.ChannelOJ:     {"oj_sync_status", ""},
	domain.ChannelGitHub: {"github_sync_status", "git_file_path"},
	domain.ChannelAI:     {"ai_sync_status", "ai_analysis"},
	domain.ChannelNotion: {"notion_sync_status", "notion_url"},
}

// RecordStore implements driven.RecordStore using PostgreSQL
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new RecordStore
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Create inserts a record with its submission fields and channel statuses
func (s *RecordStore) Create(ctx context.Context, record *domain.Record) error {
	analysis, err := marshalAnalysis(record.AIAnalysis)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO records (
			oj_type, submission_id, problem_id, problem_title, problem_slug,
			language, execution_result, code, runtime_ms, memory_kb, submit_time,
			oj_sync_status, github_sync_status, ai_sync_status, notion_sync_status,
			git_file_path, ai_analysis, notion_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id
	`

	err = s.db.QueryRowContext(ctx, query,
		record.OJType,
		record.SubmissionID,
		record.ProblemID,
		record.ProblemTitle,
		record.ProblemSlug,
		record.Language,
		record.ExecutionResult,
		record.Code,
		record.RuntimeMs,
		record.MemoryKB,
		record.SubmitTime,
		record.OJSyncStatus,
		record.GitHubSyncStatus,
		record.AISyncStatus,
		record.NotionSyncStatus,
		NullString(record.GitFilePath),
		analysis,
		NullString(record.NotionURL),
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: submission %s/%s exists", domain.ErrConflict, record.OJType, record.SubmissionID)
	}
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID
func (s *RecordStore) Get(ctx context.Context, id int64) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE id = $1", id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// GetMany retrieves the records that exist among ids
func (s *RecordStore) GetMany(ctx context.Context, ids []int64) (map[int64]*domain.Record, error) {
	out := make(map[int64]*domain.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = ANY($1)", pq.Int64Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out[record.ID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// GetBySubmission retrieves a record by (oj_type, submission_id)
func (s *RecordStore) GetBySubmission(ctx context.Context, ojType, submissionID string) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE oj_type = $1 AND submission_id = $2",
		ojType, submissionID)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record by submission: %w", err)
	}
	return record, nil
}

// List returns a page of matching records and the total match count
func (s *RecordStore) List(ctx context.Context, filter domain.RecordFilter) ([]*domain.Record, int, error) {
	var p placeholders
	where := recordWhere(&p, filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records"+where, p.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	query := "SELECT " + recordColumns + " FROM records" + where + recordOrder(filter.Sort)
	if filter.Limit > 0 {
		query += " LIMIT " + p.add(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + p.add(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []*domain.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate records: %w", err)
	}
	return records, total, nil
}

// ListIDs returns the IDs of every matching record in ascending submit time
func (s *RecordStore) ListIDs(ctx context.Context, filter domain.RecordFilter) ([]int64, error) {
	var p placeholders
	query := "SELECT id FROM records" + recordWhere(&p, filter) + recordOrder(domain.SortAscending)

	rows, err := s.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record ids: %w", err)
	}
	return ids, nil
}

// SaveChannel writes one channel's status and result column.
// Concurrent writers of other channels are never overwritten.
func (s *RecordStore) SaveChannel(ctx context.Context, record *domain.Record, ch domain.Channel) error {
	cols, ok := channelColumns[ch]
	if !ok {
		return fmt.Errorf("%w: unknown channel %q", domain.ErrValidation, ch)
	}

	var p placeholders
	set := cols[0] + " = " + p.add(record.ChannelStatus(ch))
	switch ch {
	case domain.ChannelGitHub:
		set += ", " + cols[1] + " = " + p.add(NullString(record.GitFilePath))
	case domain.ChannelNotion:
		set += ", " + cols[1] + " = " + p.add(NullString(record.NotionURL))
	case domain.ChannelAI:
		analysis, err := marshalAnalysis(record.AIAnalysis)
		if err != nil {
			return err
		}
		set += ", " + cols[1] + " = " + p.add(analysis)
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	set += ", updated_at = " + p.add(updatedAt)

	query := "UPDATE records SET " + set + " WHERE id = " + p.add(record.ID)
	result, err := s.db.ExecContext(ctx, query, p.args...)
	if err != nil {
		return fmt.Errorf("save %s channel: %w", ch, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a record
func (s *RecordStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func recordWhere(p *placeholders, filter domain.RecordFilter) string {
	var conds []string
	for _, ch := range domain.AllChannels() {
		statuses := filter.StatusesFor(ch)
		if len(statuses) == 0 {
			continue
		}
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		conds = append(conds, channelColumns[ch][0]+" = ANY("+p.add(pq.StringArray(values))+")")
	}
	if filter.ProblemID != 0 {
		conds = append(conds, "problem_id = "+p.add(filter.ProblemID))
	}
	if filter.Language != "" {
		conds = append(conds, "LOWER(language) = LOWER("+p.add(filter.Language)+")")
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func recordOrder(sort domain.RecordSort) string {
	if sort == domain.SortDescending {
		return " ORDER BY submit_time DESC, id DESC"
	}
	return " ORDER BY submit_time ASC, id ASC"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var r domain.Record
	var gitFilePath, notionURL sql.NullString
	var analysis []byte

	err := row.Scan(
		&r.ID,
		&r.OJType,
		&r.SubmissionID,
		&r.ProblemID,
		&r.ProblemTitle,
		&r.ProblemSlug,
		&r.Language,
		&r.ExecutionResult,
		&r.Code,
		&r.RuntimeMs,
		&r.MemoryKB,
		&r.SubmitTime,
		&r.OJSyncStatus,
		&r.GitHubSyncStatus,
		&r.AISyncStatus,
		&r.NotionSyncStatus,
		&gitFilePath,
		&analysis,
		&notionURL,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.GitFilePath = StringPtr(gitFilePath)
	r.NotionURL = StringPtr(notionURL)
	if len(analysis) > 0 {
		r.AIAnalysis = &domain.AIAnalysis{}
		if err := json.Unmarshal(analysis, r.AIAnalysis); err != nil {
			return nil, fmt.Errorf("unmarshal ai analysis: %w", err)
		}
	}
	return &r, nil
}

// marshalAnalysis encodes the analysis for the JSONB column; nil stays NULL
func marshalAnalysis(a *domain.AIAnalysis) (any, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal ai analysis: %w", err)
	}
	return b, nil
}
