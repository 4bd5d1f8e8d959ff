package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/o1-screener/internal/profile"
)

// Order selects the sort order of Query.
type Order int

const (
	OrderCreated Order = iota
	OrderRank
	OrderScore
)

var orderClauses = map[Order]string{
	OrderCreated: "created_at ASC, id ASC",
	OrderRank:    "rank IS NULL, rank ASC, created_at ASC",
	OrderScore:   "final_score IS NULL, final_score DESC, completed_seq ASC, id ASC",
}

type Filter struct {
	Statuses   []profile.Status
	RankedOnly bool
	OrderBy    Order
	Limit      int
}

// Profiles is the profile store. Rank writes are serialised by an in-process mutex.
type Profiles struct {
	DB  *sql.DB
	Now func() time.Time

	rankMu sync.Mutex
}

func NewProfiles(db *sql.DB) *Profiles {
	return &Profiles{DB: db, Now: time.Now}
}

const profileColumns = `id,api_id,name,email,COALESCE(reference,''),COALESCE(additional_info,''),
document_json,assessment_json,evidence_json,final_score,rank,status,suitability_score,
COALESCE(suitability_reason,''),review_status,COALESCE(review_notes,''),completed_seq,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*profile.Profile, error) {
	var (
		p                              profile.Profile
		document, assessment, evidence sql.NullString
		finalScore, suitability        sql.NullFloat64
		rank                           sql.NullInt64
		status, reviewStatus           string
		createdAt, updatedAt           string
	)
	err := row.Scan(&p.ID, &p.APIID, &p.Name, &p.Email, &p.Reference, &p.AdditionalInfo,
		&document, &assessment, &evidence, &finalScore, &rank, &status, &suitability,
		&p.SuitabilityReason, &reviewStatus, &p.ReviewNotes, &p.CompletedSeq, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Status = profile.Status(status)
	p.ReviewStatus = profile.ReviewStatus(reviewStatus)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	if finalScore.Valid {
		p.FinalScore = &finalScore.Float64
	}
	if suitability.Valid {
		p.SuitabilityScore = &suitability.Float64
	}
	if rank.Valid {
		r := int(rank.Int64)
		p.Rank = &r
	}
	if document.Valid && document.String != "" {
		p.Document = &profile.Document{}
		if err := json.Unmarshal([]byte(document.String), p.Document); err != nil {
			return nil, fmt.Errorf("decode document of %s: %w", p.ID, err)
		}
	}
	if err := unmarshalNullable(assessment, &p.Assessment); err != nil {
		return nil, fmt.Errorf("decode assessment of %s: %w", p.ID, err)
	}
	if err := unmarshalNullable(evidence, &p.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence of %s: %w", p.ID, err)
	}

	return &p, nil
}

// Insert stores a new profile. ID, timestamps and default statuses are filled when empty.
func (s *Profiles) Insert(ctx context.Context, p *profile.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = profile.StatusPending
	}
	if p.ReviewStatus == "" {
		p.ReviewStatus = profile.ReviewUnknown
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.DB.ExecContext(ctx, `INSERT INTO profiles(id,api_id,name,email,reference,additional_info,status,review_status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.APIID, p.Name, p.Email, nullable(p.Reference), nullable(p.AdditionalInfo),
		string(p.Status), string(p.ReviewStatus), formatTime(now), formatTime(now))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("profile %s: %w", p.APIID, ErrDuplicate)
	}
	return err
}

// Upsert registers a profile by its external id. An existing row keeps its
// id, email and processing state; name, reference and additional info are refreshed.
func (s *Profiles) Upsert(ctx context.Context, p *profile.Profile) (*profile.Profile, error) {
	now := formatTime(s.now())
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO profiles(id,api_id,name,email,reference,additional_info,status,review_status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(api_id) DO UPDATE SET
  name=excluded.name,
  reference=COALESCE(excluded.reference, profiles.reference),
  additional_info=COALESCE(excluded.additional_info, profiles.additional_info),
  updated_at=excluded.updated_at`,
		id, p.APIID, p.Name, p.Email, nullable(p.Reference), nullable(p.AdditionalInfo),
		string(profile.StatusPending), string(profile.ReviewUnknown), now, now)
	if err != nil {
		return nil, err
	}

	return s.GetByAPIID(ctx, p.APIID)
}

func (s *Profiles) Get(ctx context.Context, id string) (*profile.Profile, error) {
	return scanProfile(s.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id=?`, id))
}

func (s *Profiles) GetByAPIID(ctx context.Context, apiID string) (*profile.Profile, error) {
	return scanProfile(s.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE api_id=?`, apiID))
}

func (s *Profiles) Query(ctx context.Context, f Filter) ([]*profile.Profile, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ",")+")")
	}
	if f.RankedOnly {
		where = append(where, "rank IS NOT NULL")
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	order, ok := orderClauses[f.OrderBy]
	if !ok {
		order = orderClauses[OrderCreated]
	}
	query += " ORDER BY " + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// IDsByStatus lists profile ids with one of the given statuses, oldest first.
func (s *Profiles) IDsByStatus(ctx context.Context, statuses ...profile.Status) ([]string, error) {
	profiles, err := s.Query(ctx, Filter{Statuses: statuses, OrderBy: OrderCreated})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (s *Profiles) CountByStatus(ctx context.Context) (map[profile.Status]int, error) {
	counts := map[profile.Status]int{}
	err := s.count(ctx, "status", func(key string, n int) { counts[profile.Status(key)] = n })
	return counts, err
}

func (s *Profiles) CountByReview(ctx context.Context) (map[profile.ReviewStatus]int, error) {
	counts := map[profile.ReviewStatus]int{}
	err := s.count(ctx, "review_status", func(key string, n int) { counts[profile.ReviewStatus(key)] = n })
	return counts, err
}

func (s *Profiles) count(ctx context.Context, column string, add func(string, int)) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM profiles GROUP BY %s`, column, column))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}

// MarkProcessing sets status processing and clears the rank. It reports
// whether the profile held a rank before.
func (s *Profiles) MarkProcessing(ctx context.Context, id string) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var rank sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT rank FROM profiles WHERE id=?`, id).Scan(&rank)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET status=?, rank=NULL, updated_at=? WHERE id=?`,
		string(profile.StatusProcessing), formatTime(s.now()), id); err != nil {
		return false, err
	}

	return rank.Valid, tx.Commit()
}

func (s *Profiles) MarkFailed(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE profiles SET status=?, rank=NULL, updated_at=? WHERE id=?`,
		string(profile.StatusFailed), formatTime(s.now()), id)
}

// SaveResults persists the outcome of a successful run and assigns the next
// completion sequence. The profile is updated in place.
func (s *Profiles) SaveResults(ctx context.Context, p *profile.Profile) error {
	document, err := marshalNullable(p.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	assessment, err := marshalNullable(p.Assessment)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	evidence, err := marshalNullable(p.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq, err := nextCompletionSeq(ctx, tx)
	if err != nil {
		return err
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET document_json=?, assessment_json=?, evidence_json=?, final_score=?,
suitability_score=?, suitability_reason=?, review_status=?, completed_seq=?, status=?, updated_at=? WHERE id=?`,
		document, assessment, evidence, floatOrNil(p.FinalScore), floatOrNil(p.SuitabilityScore),
		nullable(p.SuitabilityReason), string(p.ReviewStatus), seq, string(profile.StatusCompleted), formatTime(now), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	p.CompletedSeq = seq
	p.Status = profile.StatusCompleted
	p.UpdatedAt = now
	return nil
}

// RestoreFailed writes back the derived fields of p, as loaded before a run,
// and marks the profile failed. It undoes SaveResults when a later step fails.
func (s *Profiles) RestoreFailed(ctx context.Context, p *profile.Profile) error {
	document, err := marshalNullable(p.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	assessment, err := marshalNullable(p.Assessment)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	evidence, err := marshalNullable(p.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}

	return s.exec(ctx, `UPDATE profiles SET document_json=?, assessment_json=?, evidence_json=?, final_score=?,
suitability_score=?, suitability_reason=?, review_status=?, completed_seq=?, status=?, rank=NULL, updated_at=? WHERE id=?`,
		document, assessment, evidence, floatOrNil(p.FinalScore), floatOrNil(p.SuitabilityScore),
		nullable(p.SuitabilityReason), string(p.ReviewStatus), p.CompletedSeq, string(profile.StatusFailed),
		formatTime(s.now()), p.ID)
}

func nextCompletionSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(completed_seq),0)+1 FROM profiles`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next completion sequence: %w", err)
	}
	return seq, nil
}

func (s *Profiles) UpdateSuitability(ctx context.Context, id string, score *float64, reason string, review profile.ReviewStatus) error {
	return s.exec(ctx, `UPDATE profiles SET suitability_score=?, suitability_reason=?, review_status=?, updated_at=? WHERE id=?`,
		floatOrNil(score), nullable(reason), string(review), formatTime(s.now()), id)
}

func (s *Profiles) UpdateReview(ctx context.Context, id string, review profile.ReviewStatus, notes string) error {
	return s.exec(ctx, `UPDATE profiles SET review_status=?, review_notes=?, updated_at=? WHERE id=?`,
		string(review), nullable(notes), formatTime(s.now()), id)
}

// Rerank assigns dense ranks 1..N to completed, scored profiles ordered by
// score desc, completion sequence asc, id asc, and clears every other rank.
func (s *Profiles) Rerank(ctx context.Context) (int, error) {
	s.rankMu.Lock()
	defer s.rankMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM profiles WHERE status=? AND final_score IS NOT NULL
ORDER BY final_score DESC, completed_seq ASC, id ASC`, string(profile.StatusCompleted))
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET rank=NULL WHERE rank IS NOT NULL`); err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET rank=? WHERE id=?`, i+1, id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *Profiles) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Profiles) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case *profile.Document:
		if val == nil {
			return nil, nil
		}
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	case map[string][]string:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalNullable[T any](s sql.NullString, target *T) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), target)
}
