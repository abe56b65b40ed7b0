package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"votecore/internal/domain"
	"votecore/pkg/database"
)

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresPollRepository stores polls, the vote ledger and counters in PostgreSQL.
// Duplicate votes are excluded by the vote_claims primary key, so two concurrent
// transactions for the same (poll, claim) can never both commit.
type PostgresPollRepository struct {
	db *database.PostgresDB
}

func NewPostgresPollRepository(db *database.PostgresDB) *PostgresPollRepository {
	return &PostgresPollRepository{db: db}
}

var readOnlySnapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

func (r *PostgresPollRepository) CreatePoll(ctx context.Context, poll *domain.Poll) error {
	if err := poll.Validate(); err != nil {
		return err
	}
	if poll.ID == "" {
		poll.ID = uuid.NewString()
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now().UTC()
	}
	for i := range poll.Options {
		if poll.Options[i].ID == "" {
			poll.Options[i].ID = uuid.NewString()
		}
		poll.Options[i].PollID = poll.ID
		poll.Options[i].VoteCount = 0
	}
	poll.TotalVotes = 0

	err := r.db.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO polls (id, title, description, creator_id, created_at, expires_at,
				is_active, allow_multiple_votes, total_votes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)`,
			poll.ID, poll.Title, poll.Description, nullString(poll.CreatorID), poll.CreatedAt,
			poll.ExpiresAt, poll.IsActive, poll.AllowMultipleVotes)
		if err != nil {
			return fmt.Errorf("failed to insert poll: %w", err)
		}

		for _, opt := range poll.Options {
			_, err := tx.Exec(ctx, `
				INSERT INTO options (id, poll_id, text, display_order, vote_count)
				VALUES ($1, $2, $3, $4, 0)`,
				opt.ID, poll.ID, opt.Text, opt.Order)
			if err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
		return nil
	})
	if database.IsUniqueViolation(err) {
		return &domain.ValidationError{Field: "options", Message: "Option texts must be unique within a poll."}
	}
	return err
}

func (r *PostgresPollRepository) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	if !isUUID(pollID) {
		return nil, domain.ErrPollNotFound
	}
	return loadPoll(ctx, r.db.Pool, pollID, "")
}

func (r *PostgresPollRepository) SnapshotCounts(ctx context.Context, pollID string) (*domain.Poll, error) {
	if !isUUID(pollID) {
		return nil, domain.ErrPollNotFound
	}

	var poll *domain.Poll
	err := r.db.InTx(ctx, readOnlySnapshot, func(tx pgx.Tx) error {
		var err error
		poll, err = loadPoll(ctx, tx, pollID, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

func (r *PostgresPollRepository) ListActivePollIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id::text FROM polls WHERE is_active ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active polls: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan poll id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate polls: %w", err)
	}
	return ids, nil
}

func (r *PostgresPollRepository) ListPolls(ctx context.Context, filter domain.PollFilter) ([]*domain.Poll, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if filter.CreatorID != "" {
		conds = append(conds, "creator_id = "+arg(filter.CreatorID))
	}
	if filter.Search != "" {
		p := arg("%" + escapeLike(filter.Search) + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "created_at >= "+arg(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "created_at <= "+arg(*filter.CreatedTo))
	}

	query := `SELECT id::text, title, description, COALESCE(creator_id, ''), created_at, expires_at,
			is_active, allow_multiple_votes, total_votes
		FROM polls`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	var polls []*domain.Poll
	err := r.db.InTx(ctx, readOnlySnapshot, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to list polls: %w", err)
		}
		defer rows.Close()

		byID := make(map[string]*domain.Poll)
		ids := make([]string, 0)
		for rows.Next() {
			p := &domain.Poll{}
			if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.CreatorID, &p.CreatedAt, &p.ExpiresAt,
				&p.IsActive, &p.AllowMultipleVotes, &p.TotalVotes); err != nil {
				return fmt.Errorf("failed to scan poll: %w", err)
			}
			p.Options = []domain.Option{}
			polls = append(polls, p)
			byID[p.ID] = p
			ids = append(ids, p.ID)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate polls: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		optRows, err := tx.Query(ctx, `
			SELECT poll_id::text, id::text, text, display_order, vote_count
			FROM options WHERE poll_id = ANY($1::uuid[])
			ORDER BY display_order, text`, ids)
		if err != nil {
			return fmt.Errorf("failed to list options: %w", err)
		}
		defer optRows.Close()

		for optRows.Next() {
			var opt domain.Option
			if err := optRows.Scan(&opt.PollID, &opt.ID, &opt.Text, &opt.Order, &opt.VoteCount); err != nil {
				return fmt.Errorf("failed to scan option: %w", err)
			}
			if p, ok := byID[opt.PollID]; ok {
				p.Options = append(p.Options, opt)
			}
		}
		return optRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return polls, nil
}

func (r *PostgresPollRepository) CastVote(ctx context.Context, params CastVoteParams) (*domain.Vote, error) {
	if !isUUID(params.PollID) {
		return nil, domain.ErrPollNotFound
	}
	if !isUUID(params.OptionID) {
		return nil, domain.ErrOptionNotFound
	}

	vote := &domain.Vote{
		ID:        uuid.NewString(),
		PollID:    params.PollID,
		OptionID:  params.OptionID,
		CreatedAt: params.Now.UTC(),
	}
	params.Voter.Bind(vote)

	err := r.db.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		poll, err := loadPollRow(ctx, tx, params.PollID, "")
		if err != nil {
			return err
		}

		var optionPollID string
		err = tx.QueryRow(ctx, `SELECT poll_id::text FROM options WHERE id = $1`, params.OptionID).Scan(&optionPollID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && optionPollID != params.PollID) {
			return domain.ErrOptionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load option: %w", err)
		}

		if err := domain.Admit(ctx, poll, params.Voter, params.Now, claimRegistry{tx: tx}); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO votes (id, poll_id, option_id, user_id, voter_address, voter_session, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			vote.ID, vote.PollID, vote.OptionID,
			nullString(vote.UserID), nullString(vote.Address), nullString(vote.Session), vote.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert vote: %w", err)
		}

		// Poll row first, then option row: Reconcile takes the same order.
		if _, err := tx.Exec(ctx, `UPDATE polls SET total_votes = total_votes + 1 WHERE id = $1`, params.PollID); err != nil {
			return fmt.Errorf("failed to increment poll total: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE options SET vote_count = vote_count + 1 WHERE id = $1`, params.OptionID); err != nil {
			return fmt.Errorf("failed to increment option count: %w", err)
		}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.NewEligibilityError(domain.ReasonAlreadyVoted)
		}
		return nil, err
	}
	return vote, nil
}

// claimRegistry registers voter claims inside the vote transaction.
// A claim already held by a committed vote is skipped by ON CONFLICT; one held
// by an in-flight transaction blocks until that transaction finishes.
type claimRegistry struct {
	tx pgx.Tx
}

func (c claimRegistry) Register(ctx context.Context, pollID string, key domain.VoterKey) (bool, error) {
	claims := key.Claims()
	if len(claims) == 0 {
		return false, domain.ErrUnidentifiableVoter
	}

	rows, err := c.tx.Query(ctx, `
		INSERT INTO vote_claims (poll_id, claim)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
		RETURNING claim`, pollID, claims)
	if err != nil {
		return false, fmt.Errorf("failed to register voter claims: %w", err)
	}
	defer rows.Close()

	inserted := 0
	for rows.Next() {
		inserted++
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to register voter claims: %w", err)
	}
	return inserted < len(claims), nil
}

func (r *PostgresPollRepository) Reconcile(ctx context.Context, pollID string) (*domain.Poll, error) {
	if !isUUID(pollID) {
		return nil, domain.ErrPollNotFound
	}

	var poll *domain.Poll
	err := r.db.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := loadPollRow(ctx, tx, pollID, "FOR NO KEY UPDATE"); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			UPDATE options o
			SET vote_count = (SELECT COUNT(*) FROM votes v WHERE v.option_id = o.id)
			WHERE o.poll_id = $1`, pollID)
		if err != nil {
			return fmt.Errorf("failed to recount options: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE polls
			SET total_votes = (SELECT COUNT(*) FROM votes WHERE poll_id = $1)
			WHERE id = $1`, pollID)
		if err != nil {
			return fmt.Errorf("failed to recount poll total: %w", err)
		}

		poll, err = loadPoll(ctx, tx, pollID, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return poll, nil
}

func (r *PostgresPollRepository) CheckConsistency(ctx context.Context, pollID string) (*domain.ConsistencyReport, error) {
	if !isUUID(pollID) {
		return nil, domain.ErrPollNotFound
	}

	report := &domain.ConsistencyReport{PollID: pollID}
	err := r.db.InTx(ctx, readOnlySnapshot, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT p.total_votes,
				COALESCE((SELECT SUM(vote_count) FROM options WHERE poll_id = p.id), 0)::bigint,
				(SELECT COUNT(*) FROM votes WHERE poll_id = p.id)
			FROM polls p WHERE p.id = $1`, pollID).
			Scan(&report.TotalVotes, &report.OptionSum, &report.LedgerCount)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPollNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read counters: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT o.id::text, o.vote_count, COUNT(v.id)
			FROM options o
			LEFT JOIN votes v ON v.option_id = o.id
			WHERE o.poll_id = $1
			GROUP BY o.id, o.vote_count
			HAVING o.vote_count <> COUNT(v.id)`, pollID)
		if err != nil {
			return fmt.Errorf("failed to compare option counts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var d domain.OptionDrift
			if err := rows.Scan(&d.OptionID, &d.Cached, &d.Counted); err != nil {
				return fmt.Errorf("failed to scan option drift: %w", err)
			}
			report.DriftedOptions = append(report.DriftedOptions, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *PostgresPollRepository) HasUserVoted(ctx context.Context, pollID, userID string) (bool, error) {
	if !isUUID(pollID) {
		return false, domain.ErrPollNotFound
	}

	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM votes WHERE poll_id = $1 AND user_id = $2)`,
		pollID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user vote: %w", err)
	}
	return exists, nil
}

func (r *PostgresPollRepository) ListVotesByUser(ctx context.Context, userID string) ([]*domain.UserVote, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT v.id::text, p.id::text, p.title, o.text, v.created_at
		FROM votes v
		JOIN polls p ON p.id = v.poll_id
		JOIN options o ON o.id = v.option_id
		WHERE v.user_id = $1
		ORDER BY v.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user votes: %w", err)
	}
	defer rows.Close()

	var votes []*domain.UserVote
	for rows.Next() {
		v := &domain.UserVote{}
		if err := rows.Scan(&v.ID, &v.PollID, &v.PollTitle, &v.OptionText, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user votes: %w", err)
	}
	return votes, nil
}

func (r *PostgresPollRepository) SaveResult(ctx context.Context, result *domain.StoredResult) error {
	data, err := json.Marshal(result.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO poll_results (poll_id, total_votes, results_data, last_updated)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (poll_id) DO UPDATE
		SET total_votes = EXCLUDED.total_votes,
			results_data = EXCLUDED.results_data,
			last_updated = EXCLUDED.last_updated`,
		result.PollID, result.TotalVotes, string(data), result.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save poll result: %w", err)
	}
	return nil
}

func (r *PostgresPollRepository) GetStoredResult(ctx context.Context, pollID string) (*domain.StoredResult, error) {
	if !isUUID(pollID) {
		return nil, nil
	}

	res := &domain.StoredResult{PollID: pollID}
	var data []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT total_votes, results_data, last_updated
		FROM poll_results WHERE poll_id = $1`, pollID).
		Scan(&res.TotalVotes, &data, &res.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll result: %w", err)
	}

	if len(data) > 0 {
		var snap domain.ResultSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to decode stored snapshot: %w", err)
		}
		res.Snapshot = &snap
	}
	return res, nil
}

// loadPollRow reads only the poll row; lock is an optional row-locking clause
func loadPollRow(ctx context.Context, q querier, pollID, lock string) (*domain.Poll, error) {
	p := &domain.Poll{}
	err := q.QueryRow(ctx, `
		SELECT id::text, title, description, COALESCE(creator_id, ''), created_at, expires_at,
			is_active, allow_multiple_votes, total_votes
		FROM polls WHERE id = $1 `+lock, pollID).
		Scan(&p.ID, &p.Title, &p.Description, &p.CreatorID, &p.CreatedAt, &p.ExpiresAt,
			&p.IsActive, &p.AllowMultipleVotes, &p.TotalVotes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return p, nil
}

// loadPoll reads the poll row and its options in display order
func loadPoll(ctx context.Context, q querier, pollID, lock string) (*domain.Poll, error) {
	p, err := loadPollRow(ctx, q, pollID, lock)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id::text, text, display_order, vote_count
		FROM options WHERE poll_id = $1
		ORDER BY display_order, text`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		opt := domain.Option{PollID: p.ID}
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.Order, &opt.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		p.Options = append(p.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate options: %w", err)
	}
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUUID keeps malformed ids from reaching the uuid columns as a driver error
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
