package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap performs a connectivity check to ensure Postgres is reachable.
// Ping-only: deployment tooling owns the schema.
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.PingContext(ctx)
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Tribes() store.Tribes           { return &tribes{db: s.db} }
func (s *pgStore) Memberships() store.Memberships { return &memberships{db: s.db} }
func (s *pgStore) Messages() store.Messages       { return &messages{db: s.db} }
func (s *pgStore) Activities() store.Activities   { return &activities{db: s.db} }
func (s *pgStore) Engagements() store.Engagements { return &engagements{db: s.db} }

// Ping implements health.Pinger.
func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func marshalMeta(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalMeta(raw *string) map[string]interface{} {
	if raw == nil || *raw == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(*raw), &m); err != nil {
		return nil
	}
	return m
}

// --- Tribes ---

type tribes struct{ db *sql.DB }

func (t *tribes) Create(ctx context.Context, m *model.Tribe) (*model.Tribe, error) {
	out := *m
	if out.TribeID == "" {
		out.TribeID = uuid.New().String()
	}
	if out.Status == "" {
		out.Status = model.TribeForming
	}
	row := t.db.QueryRowContext(ctx, `
        INSERT INTO tribes (tribe_id, name, status, private, max_members, min_members, last_message_seq, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,0,now())
        RETURNING last_activity_at, creation_time
    `, out.TribeID, out.Name, string(out.Status), out.Private, out.MaxMembers, out.MinMembers)
	if err := row.Scan(&out.LastActivityAt, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tribes) Get(ctx context.Context, tribeID string) (*model.Tribe, error) {
	var out model.Tribe
	var status string
	row := t.db.QueryRowContext(ctx, `
        SELECT tribe_id, name, status, private, max_members, min_members, last_message_seq, last_activity_at, creation_time
        FROM tribes WHERE tribe_id=$1
    `, tribeID)
	err := row.Scan(&out.TribeID, &out.Name, &status, &out.Private, &out.MaxMembers, &out.MinMembers, &out.LastMessageSeq, &out.LastActivityAt, &out.CreationTime)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Status = model.TribeStatus(status)
	return &out, nil
}

func (t *tribes) List(ctx context.Context, statuses []model.TribeStatus) ([]*model.Tribe, error) {
	q := `SELECT tribe_id, name, status, private, max_members, min_members, last_message_seq, last_activity_at, creation_time FROM tribes`
	var args []interface{}
	if len(statuses) > 0 {
		ph := make([]string, len(statuses))
		for i, st := range statuses {
			ph[i] = "$" + strconv.Itoa(i+1)
			args = append(args, string(st))
		}
		q += ` WHERE status IN (` + strings.Join(ph, ",") + `)`
	}
	q += ` ORDER BY creation_time`
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Tribe
	for rows.Next() {
		var out model.Tribe
		var status string
		if err := rows.Scan(&out.TribeID, &out.Name, &status, &out.Private, &out.MaxMembers, &out.MinMembers, &out.LastMessageSeq, &out.LastActivityAt, &out.CreationTime); err != nil {
			return nil, err
		}
		out.Status = model.TribeStatus(status)
		res = append(res, &out)
	}
	return res, rows.Err()
}

func (t *tribes) UpdateStatus(ctx context.Context, tribeID string, from, to model.TribeStatus) error {
	res, err := t.db.ExecContext(ctx, `
        UPDATE tribes SET status=$1 WHERE tribe_id=$2 AND status=$3
    `, string(to), tribeID, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := t.Get(ctx, tribeID); err != nil {
			return err
		}
		return model.ErrConflict
	}
	return nil
}

func (t *tribes) TouchActivity(ctx context.Context, tribeID string, at time.Time) error {
	_, err := t.db.ExecContext(ctx, `
        UPDATE tribes SET last_activity_at=$1 WHERE tribe_id=$2 AND last_activity_at < $1
    `, at.UTC(), tribeID)
	return err
}

func (t *tribes) Delete(ctx context.Context, tribeID string) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM message_reads WHERE message_id IN (SELECT message_id FROM messages WHERE tribe_id=$1)`,
		`DELETE FROM messages WHERE tribe_id=$1`,
		`DELETE FROM activities WHERE tribe_id=$1`,
		`DELETE FROM engagements WHERE tribe_id=$1`,
		`DELETE FROM memberships WHERE tribe_id=$1`,
	} {
		if _, err := tx.ExecContext(ctx, q, tribeID); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tribes WHERE tribe_id=$1`, tribeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return tx.Commit()
}

// --- Memberships ---

type memberships struct{ db *sql.DB }

func (ms *memberships) Create(ctx context.Context, m *model.Membership) (*model.Membership, error) {
	tx, err := ms.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Row lock on the tribe serializes concurrent joins against capacity.
	var maxMembers int
	err = tx.QueryRowContext(ctx, `SELECT max_members FROM tribes WHERE tribe_id=$1 FOR UPDATE`, m.TribeID).Scan(&maxMembers)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var active int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE tribe_id=$1 AND status=$2`, m.TribeID, string(model.MembershipActive)).Scan(&active); err != nil {
		return nil, err
	}
	if m.Status == model.MembershipActive && active >= maxMembers {
		return nil, fmt.Errorf("tribe at capacity: %w", model.ErrConflict)
	}

	out := *m
	if out.Role == "" {
		out.Role = model.RoleMember
	}
	if out.Status == "" {
		out.Status = model.MembershipPending
	}
	res, err := tx.ExecContext(ctx, `
        INSERT INTO memberships (tribe_id, member_id, role, status, joined_at)
        VALUES ($1,$2,$3,$4,now())
        ON CONFLICT (tribe_id, member_id) DO NOTHING
    `, out.TribeID, out.MemberID, string(out.Role), string(out.Status))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrConflict
	}
	if err := tx.QueryRowContext(ctx, `SELECT joined_at FROM memberships WHERE tribe_id=$1 AND member_id=$2`, out.TribeID, out.MemberID).Scan(&out.JoinedAt); err != nil {
		return nil, err
	}
	return &out, tx.Commit()
}

func (ms *memberships) Get(ctx context.Context, tribeID, memberID string) (*model.Membership, error) {
	var out model.Membership
	var role, status string
	var last sql.NullTime
	row := ms.db.QueryRowContext(ctx, `
        SELECT tribe_id, member_id, role, status, joined_at, last_active_at
        FROM memberships WHERE tribe_id=$1 AND member_id=$2
    `, tribeID, memberID)
	err := row.Scan(&out.TribeID, &out.MemberID, &role, &status, &out.JoinedAt, &last)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.Role = model.MembershipRole(role)
	out.Status = model.MembershipStatus(status)
	if last.Valid {
		t := last.Time
		out.LastActiveAt = &t
	}
	return &out, nil
}

func (ms *memberships) ListActive(ctx context.Context, tribeID string) ([]*model.Membership, error) {
	rows, err := ms.db.QueryContext(ctx, `
        SELECT tribe_id, member_id, role, status, joined_at, last_active_at
        FROM memberships WHERE tribe_id=$1 AND status=$2 ORDER BY joined_at
    `, tribeID, string(model.MembershipActive))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Membership
	for rows.Next() {
		var out model.Membership
		var role, status string
		var last sql.NullTime
		if err := rows.Scan(&out.TribeID, &out.MemberID, &role, &status, &out.JoinedAt, &last); err != nil {
			return nil, err
		}
		out.Role = model.MembershipRole(role)
		out.Status = model.MembershipStatus(status)
		if last.Valid {
			t := last.Time
			out.LastActiveAt = &t
		}
		res = append(res, &out)
	}
	return res, rows.Err()
}

func (ms *memberships) CountActive(ctx context.Context, tribeID string) (int, error) {
	var n int
	err := ms.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM memberships WHERE tribe_id=$1 AND status=$2
    `, tribeID, string(model.MembershipActive)).Scan(&n)
	return n, err
}

func (ms *memberships) UpdateStatus(ctx context.Context, tribeID, memberID string, status model.MembershipStatus) error {
	res, err := ms.db.ExecContext(ctx, `
        UPDATE memberships SET status=$1 WHERE tribe_id=$2 AND member_id=$3
    `, string(status), tribeID, memberID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (ms *memberships) TouchLastActive(ctx context.Context, tribeID, memberID string, at time.Time) error {
	_, err := ms.db.ExecContext(ctx, `
        UPDATE memberships SET last_active_at=$1 WHERE tribe_id=$2 AND member_id=$3
    `, at.UTC(), tribeID, memberID)
	return err
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Per-tribe counter hands out a strictly increasing sequence even under
	// concurrent senders; the row lock is held only for this transaction.
	var seq int64
	err = tx.QueryRowContext(ctx, `
        UPDATE tribes SET last_message_seq = last_message_seq + 1, last_activity_at = now()
        WHERE tribe_id = $1
        RETURNING last_message_seq
    `, msg.TribeID).Scan(&seq)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out := *msg
	if out.MessageID == "" {
		out.MessageID = uuid.New().String()
	}
	out.Seq = seq
	meta, err := marshalMeta(out.Metadata)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, tribe_id, member_id, content, message_type, seq, sent_at, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,now(),$7)
        RETURNING sent_at
    `, out.MessageID, out.TribeID, out.MemberID, out.Content, string(out.Type), out.Seq, meta)
	if err := row.Scan(&out.SentAt); err != nil {
		return nil, err
	}
	return &out, tx.Commit()
}

func (m *messages) Get(ctx context.Context, messageID string) (*model.Message, error) {
	row := m.db.QueryRowContext(ctx, `
        SELECT message_id, tribe_id, member_id, content, message_type, seq, sent_at, metadata
        FROM messages WHERE message_id=$1
    `, messageID)
	return scanMessage(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var out model.Message
	var member sql.NullString
	var typ string
	var meta *string
	err := row.Scan(&out.MessageID, &out.TribeID, &member, &out.Content, &typ, &out.Seq, &out.SentAt, &meta)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if member.Valid {
		s := member.String
		out.MemberID = &s
	}
	out.Type = model.MessageType(typ)
	out.Metadata = unmarshalMeta(meta)
	return &out, nil
}

func (m *messages) seqOf(ctx context.Context, tribeID, messageID string) (int64, error) {
	var seq int64
	err := m.db.QueryRowContext(ctx, `SELECT seq FROM messages WHERE message_id=$1 AND tribe_id=$2`, messageID, tribeID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, model.ErrNotFound
	}
	return seq, err
}

func (m *messages) list(ctx context.Context, req model.ListMessagesRequest, query string) ([]*model.Message, error) {
	where := []string{"tribe_id=$1"}
	args := []interface{}{req.TribeID}
	next := func() string { return "$" + strconv.Itoa(len(args)+1) }

	if req.Type != nil {
		where = append(where, "message_type="+next())
		args = append(args, string(*req.Type))
	}
	if req.SenderID != nil {
		where = append(where, "member_id="+next())
		args = append(args, *req.SenderID)
	}
	if query != "" {
		where = append(where, "content ILIKE "+next()+` ESCAPE '\'`)
		args = append(args, "%"+escapeLike(query)+"%")
	}

	order := "seq DESC"
	switch {
	case req.BeforeID != "":
		seq, err := m.seqOf(ctx, req.TribeID, req.BeforeID)
		if err != nil {
			return nil, err
		}
		where = append(where, "seq < "+next())
		args = append(args, seq)
	case req.AfterID != "":
		seq, err := m.seqOf(ctx, req.TribeID, req.AfterID)
		if err != nil {
			return nil, err
		}
		where = append(where, "seq > "+next())
		args = append(args, seq)
		order = "seq ASC"
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT message_id, tribe_id, member_id, content, message_type, seq, sent_at, metadata FROM messages WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + order + ` LIMIT ` + next()
	args = append(args, limit)
	if req.BeforeID == "" && req.AfterID == "" && req.Offset > 0 {
		q += ` OFFSET ` + next()
		args = append(args, req.Offset)
	}

	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, msg)
	}
	return res, rows.Err()
}

func (m *messages) List(ctx context.Context, req model.ListMessagesRequest) ([]*model.Message, error) {
	return m.list(ctx, req, "")
}

func (m *messages) Search(ctx context.Context, query string, req model.ListMessagesRequest) ([]*model.Message, error) {
	return m.list(ctx, req, query)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (m *messages) DeleteOwned(ctx context.Context, messageID, requesterID string) (bool, error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        DELETE FROM messages WHERE message_id=$1 AND member_id=$2
    `, messageID, requesterID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM message_reads WHERE message_id=$1`, messageID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (m *messages) MarkRead(ctx context.Context, tribeID, memberID string, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res, err := m.db.ExecContext(ctx, `
        INSERT INTO message_reads (message_id, member_id, read_at)
        SELECT message_id, $1, now() FROM messages
        WHERE tribe_id=$2 AND (member_id IS NULL OR member_id != $1)
          AND message_id = ANY($3)
        ON CONFLICT (message_id, member_id) DO NOTHING
    `, memberID, tribeID, messageIDs)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (m *messages) MarkAllRead(ctx context.Context, tribeID, memberID string) (int, error) {
	res, err := m.db.ExecContext(ctx, `
        INSERT INTO message_reads (message_id, member_id, read_at)
        SELECT msg.message_id, $1, now()
        FROM messages msg
        JOIN memberships mb ON mb.tribe_id = msg.tribe_id AND mb.member_id = $1
        WHERE msg.tribe_id=$2 AND (msg.member_id IS NULL OR msg.member_id != $1)
          AND msg.sent_at >= mb.joined_at
        ON CONFLICT (message_id, member_id) DO NOTHING
    `, memberID, tribeID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (m *messages) UnreadCount(ctx context.Context, tribeID, memberID string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM messages msg
        JOIN memberships mb ON mb.tribe_id = msg.tribe_id AND mb.member_id = $1
        WHERE msg.tribe_id=$2 AND (msg.member_id IS NULL OR msg.member_id != $1)
          AND msg.sent_at >= mb.joined_at
          AND NOT EXISTS (
              SELECT 1 FROM message_reads r
              WHERE r.message_id = msg.message_id AND r.member_id = $1
          )
    `, memberID, tribeID).Scan(&n)
	return n, err
}

func (m *messages) CountSince(ctx context.Context, tribeID string, since time.Time) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM messages WHERE tribe_id=$1 AND sent_at >= $2
    `, tribeID, since.UTC()).Scan(&n)
	return n, err
}

// --- Activities ---

type activities struct{ db *sql.DB }

func (a *activities) Append(ctx context.Context, act *model.Activity) (*model.Activity, error) {
	out := *act
	if out.ActivityID == "" {
		out.ActivityID = uuid.New().String()
	}
	meta, err := marshalMeta(out.Metadata)
	if err != nil {
		return nil, err
	}
	row := a.db.QueryRowContext(ctx, `
        INSERT INTO activities (activity_id, tribe_id, member_id, activity_type, description, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_time
    `, out.ActivityID, out.TribeID, out.MemberID, out.Type, out.Description, meta)
	if err := row.Scan(&out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *activities) ListRecent(ctx context.Context, tribeID string, limit int) ([]*model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
        SELECT activity_id, tribe_id, member_id, activity_type, description, metadata, creation_time
        FROM activities WHERE tribe_id=$1 ORDER BY creation_time DESC LIMIT $2
    `, tribeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Activity
	for rows.Next() {
		var out model.Activity
		var member sql.NullString
		var meta *string
		if err := rows.Scan(&out.ActivityID, &out.TribeID, &member, &out.Type, &out.Description, &meta, &out.CreationTime); err != nil {
			return nil, err
		}
		if member.Valid {
			s := member.String
			out.MemberID = &s
		}
		out.Metadata = unmarshalMeta(meta)
		res = append(res, &out)
	}
	return res, rows.Err()
}

func (a *activities) DeleteByTribe(ctx context.Context, tribeID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM activities WHERE tribe_id=$1`, tribeID)
	return err
}

// --- Engagements ---

type engagements struct{ db *sql.DB }

func (e *engagements) Create(ctx context.Context, rec *model.EngagementRecord) (*model.EngagementRecord, error) {
	out := *rec
	if out.EngagementID == "" {
		out.EngagementID = uuid.New().String()
	}
	row := e.db.QueryRowContext(ctx, `
        INSERT INTO engagements (engagement_id, tribe_id, engagement_type, delivered_at, response_count)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at
    `, out.EngagementID, out.TribeID, string(out.Type), out.DeliveredAt, out.ResponseCount)
	if err := row.Scan(&out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (e *engagements) ListRecent(ctx context.Context, tribeID string, limit int) ([]*model.EngagementRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := e.db.QueryContext(ctx, `
        SELECT engagement_id, tribe_id, engagement_type, created_at, delivered_at, response_count
        FROM engagements WHERE tribe_id=$1 ORDER BY created_at DESC LIMIT $2
    `, tribeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.EngagementRecord
	for rows.Next() {
		var out model.EngagementRecord
		var typ string
		var delivered sql.NullTime
		if err := rows.Scan(&out.EngagementID, &out.TribeID, &typ, &out.CreatedAt, &delivered, &out.ResponseCount); err != nil {
			return nil, err
		}
		out.Type = model.EngagementType(typ)
		if delivered.Valid {
			t := delivered.Time
			out.DeliveredAt = &t
		}
		res = append(res, &out)
	}
	return res, rows.Err()
}

func (e *engagements) RecordResponse(ctx context.Context, engagementID string) error {
	res, err := e.db.ExecContext(ctx, `
        UPDATE engagements SET response_count = response_count + 1 WHERE engagement_id=$1
    `, engagementID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (e *engagements) MarkDelivered(ctx context.Context, engagementID string, at time.Time) error {
	res, err := e.db.ExecContext(ctx, `
        UPDATE engagements SET delivered_at=$1 WHERE engagement_id=$2
    `, at, engagementID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (e *engagements) LastMeetupAt(ctx context.Context, tribeID string) (*time.Time, error) {
	var delivered time.Time
	err := e.db.QueryRowContext(ctx, `
        SELECT delivered_at FROM engagements
        WHERE tribe_id=$1 AND engagement_type=$2 AND delivered_at IS NOT NULL
        ORDER BY delivered_at DESC LIMIT 1
    `, tribeID, string(model.EngagementMeetupSuggestion)).Scan(&delivered)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &delivered, nil
}

func (e *engagements) HasScheduledMeetup(ctx context.Context, tribeID string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM engagements
        WHERE tribe_id=$1 AND engagement_type=$2 AND delivered_at IS NULL
    `, tribeID, string(model.EngagementMeetupSuggestion)).Scan(&n)
	return n > 0, err
}
