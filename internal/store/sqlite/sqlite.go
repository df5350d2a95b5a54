package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tribeapp/tribe-server/internal/model"
	"github.com/tribeapp/tribe-server/internal/store"
)

// Open opens (or creates) a SQLite database at the given path and enables
// WAL journal mode. An empty path opens an in-memory database, used by tests.
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == "" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)&cache=shared"
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Single connection keeps writes serialized under the sqlite driver.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates core tables if they do not exist. Sufficient for
// local dev and tests; production schema lives with the postgres deployment.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tribes (
            tribe_id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            status TEXT NOT NULL,
            private INTEGER NOT NULL DEFAULT 0,
            max_members INTEGER NOT NULL,
            min_members INTEGER NOT NULL,
            last_message_seq INTEGER NOT NULL DEFAULT 0,
            last_activity_at TIMESTAMP NOT NULL,
            creation_time TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS memberships (
            tribe_id TEXT NOT NULL,
            member_id TEXT NOT NULL,
            role TEXT NOT NULL,
            status TEXT NOT NULL,
            joined_at TIMESTAMP NOT NULL,
            last_active_at TIMESTAMP,
            PRIMARY KEY(tribe_id, member_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            message_id TEXT PRIMARY KEY,
            tribe_id TEXT NOT NULL,
            member_id TEXT,
            content TEXT NOT NULL,
            message_type TEXT NOT NULL,
            seq INTEGER NOT NULL,
            sent_at TIMESTAMP NOT NULL,
            metadata TEXT,
            UNIQUE(tribe_id, seq)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_tribe_seq ON messages(tribe_id, seq);`,
		`CREATE TABLE IF NOT EXISTS message_reads (
            message_id TEXT NOT NULL,
            member_id TEXT NOT NULL,
            read_at TIMESTAMP NOT NULL,
            PRIMARY KEY(message_id, member_id)
        );`,
		`CREATE TABLE IF NOT EXISTS activities (
            activity_id TEXT PRIMARY KEY,
            tribe_id TEXT NOT NULL,
            member_id TEXT,
            activity_type TEXT NOT NULL,
            description TEXT NOT NULL,
            metadata TEXT,
            creation_time TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS engagements (
            engagement_id TEXT PRIMARY KEY,
            tribe_id TEXT NOT NULL,
            engagement_type TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL,
            delivered_at TIMESTAMP,
            response_count INTEGER NOT NULL DEFAULT 0
        );`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// NewWithDB constructs a SQLite store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Tribes() store.Tribes           { return &tribes{db: s.db} }
func (s *sqliteStore) Memberships() store.Memberships { return &memberships{db: s.db} }
func (s *sqliteStore) Messages() store.Messages       { return &messages{db: s.db} }
func (s *sqliteStore) Activities() store.Activities   { return &activities{db: s.db} }
func (s *sqliteStore) Engagements() store.Engagements { return &engagements{db: s.db} }

// Ping implements health.Pinger.
func (s *sqliteStore) Ping(ctx context.Context) error {
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
	now := time.Now().UTC()
	out.CreationTime = now
	out.LastActivityAt = now
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO tribes (tribe_id, name, status, private, max_members, min_members, last_message_seq, last_activity_at, creation_time)
        VALUES (?,?,?,?,?,?,0,?,?)
    `, out.TribeID, out.Name, string(out.Status), out.Private, out.MaxMembers, out.MinMembers, out.LastActivityAt, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tribes) Get(ctx context.Context, tribeID string) (*model.Tribe, error) {
	var out model.Tribe
	var status string
	row := t.db.QueryRowContext(ctx, `
        SELECT tribe_id, name, status, private, max_members, min_members, last_message_seq, last_activity_at, creation_time
        FROM tribes WHERE tribe_id=?
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
			ph[i] = "?"
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
        UPDATE tribes SET status=? WHERE tribe_id=? AND status=?
    `, string(to), tribeID, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing tribe from a lost CAS race.
		if _, err := t.Get(ctx, tribeID); err != nil {
			return err
		}
		return model.ErrConflict
	}
	return nil
}

func (t *tribes) TouchActivity(ctx context.Context, tribeID string, at time.Time) error {
	res, err := t.db.ExecContext(ctx, `
        UPDATE tribes SET last_activity_at=? WHERE tribe_id=? AND last_activity_at < ?
    `, at.UTC(), tribeID, at.UTC())
	if err != nil {
		return err
	}
	_, err = res.RowsAffected()
	return err
}

func (t *tribes) Delete(ctx context.Context, tribeID string) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM message_reads WHERE message_id IN (SELECT message_id FROM messages WHERE tribe_id=?)`,
		`DELETE FROM messages WHERE tribe_id=?`,
		`DELETE FROM activities WHERE tribe_id=?`,
		`DELETE FROM engagements WHERE tribe_id=?`,
		`DELETE FROM memberships WHERE tribe_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, tribeID); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tribes WHERE tribe_id=?`, tribeID)
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
	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var maxMembers int
	if err := tx.QueryRowContext(ctx, `SELECT max_members FROM tribes WHERE tribe_id=?`, m.TribeID).Scan(&maxMembers); err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE tribe_id=? AND member_id=?`, m.TribeID, m.MemberID).Scan(&existing); err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, model.ErrConflict
	}

	var active int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships WHERE tribe_id=? AND status=?`, m.TribeID, string(model.MembershipActive)).Scan(&active); err != nil {
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
	out.JoinedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO memberships (tribe_id, member_id, role, status, joined_at, last_active_at)
        VALUES (?,?,?,?,?,NULL)
    `, out.TribeID, out.MemberID, string(out.Role), string(out.Status), out.JoinedAt)
	if err != nil {
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
        FROM memberships WHERE tribe_id=? AND member_id=?
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
        FROM memberships WHERE tribe_id=? AND status=? ORDER BY joined_at
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
        SELECT COUNT(*) FROM memberships WHERE tribe_id=? AND status=?
    `, tribeID, string(model.MembershipActive)).Scan(&n)
	return n, err
}

func (ms *memberships) UpdateStatus(ctx context.Context, tribeID, memberID string, status model.MembershipStatus) error {
	res, err := ms.db.ExecContext(ctx, `
        UPDATE memberships SET status=? WHERE tribe_id=? AND member_id=?
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
        UPDATE memberships SET last_active_at=? WHERE tribe_id=? AND member_id=?
    `, at.UTC(), tribeID, memberID)
	return err
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
        UPDATE tribes SET last_message_seq = last_message_seq + 1, last_activity_at = ?
        WHERE tribe_id = ?
    `, now, msg.TribeID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrNotFound
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT last_message_seq FROM tribes WHERE tribe_id=?`, msg.TribeID).Scan(&seq); err != nil {
		return nil, err
	}

	out := *msg
	if out.MessageID == "" {
		out.MessageID = uuid.New().String()
	}
	out.Seq = seq
	out.SentAt = now
	meta, err := marshalMeta(out.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
        INSERT INTO messages (message_id, tribe_id, member_id, content, message_type, seq, sent_at, metadata)
        VALUES (?,?,?,?,?,?,?,?)
    `, out.MessageID, out.TribeID, out.MemberID, out.Content, string(out.Type), out.Seq, out.SentAt, meta)
	if err != nil {
		return nil, err
	}
	return &out, tx.Commit()
}

func (m *messages) Get(ctx context.Context, messageID string) (*model.Message, error) {
	row := m.db.QueryRowContext(ctx, `
        SELECT message_id, tribe_id, member_id, content, message_type, seq, sent_at, metadata
        FROM messages WHERE message_id=?
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

// seqOf resolves a cursor message ID to its (tribe-scoped) sequence.
func (m *messages) seqOf(ctx context.Context, tribeID, messageID string) (int64, error) {
	var seq int64
	err := m.db.QueryRowContext(ctx, `SELECT seq FROM messages WHERE message_id=? AND tribe_id=?`, messageID, tribeID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, model.ErrNotFound
	}
	return seq, err
}

func (m *messages) list(ctx context.Context, req model.ListMessagesRequest, query string) ([]*model.Message, error) {
	where := []string{"tribe_id=?"}
	args := []interface{}{req.TribeID}

	if req.Type != nil {
		where = append(where, "message_type=?")
		args = append(args, string(*req.Type))
	}
	if req.SenderID != nil {
		where = append(where, "member_id=?")
		args = append(args, *req.SenderID)
	}
	if query != "" {
		where = append(where, "content LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(query)+"%")
	}

	order := "seq DESC"
	switch {
	case req.BeforeID != "":
		seq, err := m.seqOf(ctx, req.TribeID, req.BeforeID)
		if err != nil {
			return nil, err
		}
		where = append(where, "seq < ?")
		args = append(args, seq)
	case req.AfterID != "":
		seq, err := m.seqOf(ctx, req.TribeID, req.AfterID)
		if err != nil {
			return nil, err
		}
		where = append(where, "seq > ?")
		args = append(args, seq)
		order = "seq ASC"
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT message_id, tribe_id, member_id, content, message_type, seq, sent_at, metadata FROM messages WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + order + ` LIMIT ?`
	args = append(args, limit)
	if req.BeforeID == "" && req.AfterID == "" && req.Offset > 0 {
		q += ` OFFSET ?`
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
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        DELETE FROM messages WHERE message_id=? AND member_id=?
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM message_reads WHERE message_id=?`, messageID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (m *messages) MarkRead(ctx context.Context, tribeID, memberID string, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	ph := make([]string, len(messageIDs))
	args := []interface{}{memberID, time.Now().UTC(), tribeID, memberID}
	for i, id := range messageIDs {
		ph[i] = "?"
		args = append(args, id)
	}
	// Own messages never receive read marks.
	res, err := m.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO message_reads (message_id, member_id, read_at)
        SELECT message_id, ?, ? FROM messages
        WHERE tribe_id=? AND (member_id IS NULL OR member_id != ?)
          AND message_id IN (`+strings.Join(ph, ",")+`)
    `, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (m *messages) MarkAllRead(ctx context.Context, tribeID, memberID string) (int, error) {
	res, err := m.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO message_reads (message_id, member_id, read_at)
        SELECT msg.message_id, ?, ?
        FROM messages msg
        JOIN memberships mb ON mb.tribe_id = msg.tribe_id AND mb.member_id = ?
        WHERE msg.tribe_id=? AND (msg.member_id IS NULL OR msg.member_id != ?)
          AND msg.sent_at >= mb.joined_at
    `, memberID, time.Now().UTC(), memberID, tribeID, memberID)
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
        JOIN memberships mb ON mb.tribe_id = msg.tribe_id AND mb.member_id = ?
        WHERE msg.tribe_id=? AND (msg.member_id IS NULL OR msg.member_id != ?)
          AND msg.sent_at >= mb.joined_at
          AND NOT EXISTS (
              SELECT 1 FROM message_reads r
              WHERE r.message_id = msg.message_id AND r.member_id = ?
          )
    `, memberID, tribeID, memberID, memberID).Scan(&n)
	return n, err
}

func (m *messages) CountSince(ctx context.Context, tribeID string, since time.Time) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM messages WHERE tribe_id=? AND sent_at >= ?
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
	out.CreationTime = time.Now().UTC()
	meta, err := marshalMeta(out.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = a.db.ExecContext(ctx, `
        INSERT INTO activities (activity_id, tribe_id, member_id, activity_type, description, metadata, creation_time)
        VALUES (?,?,?,?,?,?,?)
    `, out.ActivityID, out.TribeID, out.MemberID, out.Type, out.Description, meta, out.CreationTime)
	if err != nil {
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
        FROM activities WHERE tribe_id=? ORDER BY creation_time DESC LIMIT ?
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
	_, err := a.db.ExecContext(ctx, `DELETE FROM activities WHERE tribe_id=?`, tribeID)
	return err
}

// --- Engagements ---

type engagements struct{ db *sql.DB }

func (e *engagements) Create(ctx context.Context, rec *model.EngagementRecord) (*model.EngagementRecord, error) {
	out := *rec
	if out.EngagementID == "" {
		out.EngagementID = uuid.New().String()
	}
	out.CreatedAt = time.Now().UTC()
	_, err := e.db.ExecContext(ctx, `
        INSERT INTO engagements (engagement_id, tribe_id, engagement_type, created_at, delivered_at, response_count)
        VALUES (?,?,?,?,?,?)
    `, out.EngagementID, out.TribeID, string(out.Type), out.CreatedAt, out.DeliveredAt, out.ResponseCount)
	if err != nil {
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
        FROM engagements WHERE tribe_id=? ORDER BY created_at DESC LIMIT ?
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
        UPDATE engagements SET response_count = response_count + 1 WHERE engagement_id=?
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
        UPDATE engagements SET delivered_at=? WHERE engagement_id=?
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
        WHERE tribe_id=? AND engagement_type=? AND delivered_at IS NOT NULL
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
        WHERE tribe_id=? AND engagement_type=? AND delivered_at IS NULL
    `, tribeID, string(model.EngagementMeetupSuggestion)).Scan(&n)
	return n > 0, err
}
