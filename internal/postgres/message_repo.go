package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/fanout-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"
)

// querier покрывает и пул, и транзакцию — гидрация работает внутри обоих.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const fkViolation = "23503"

// Create сохраняет новое сообщение и возвращает его гидрированным
// (автор + реакции). Для реплая сначала проверяется родитель.
func (r *MessageRepository) Create(ctx context.Context, d domain.MessageDraft) (*domain.Message, error) {
	if d.ParentID != nil {
		var exists bool
		err := r.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, *d.ParentID).Scan(&exists)
		if err != nil {
			return nil, storeErr("check parent", err)
		}
		if !exists {
			return nil, domain.ErrParentNotFound
		}
	}

	id := uuid.NewString()
	attachments := d.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, body, member_id, workspace_id, channel_id, conversation_id, parent_id, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, d.Body, d.MemberID, d.WorkspaceID, d.ChannelID, d.ConversationID, d.ParentID, attachments)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == fkViolation {
			switch pgErr.ConstraintName {
			case "messages_workspace_id_fkey":
				return nil, domain.ErrWorkspaceNotFound
			case "messages_parent_id_fkey": // родитель удалён после preflight-проверки
				return nil, domain.ErrParentNotFound
			}
		}
		return nil, storeErr("save message", err)
	}

	return r.hydrate(ctx, r.db, id, false)
}

// Edit обновляет текст и updated_at; возвращает сообщение с вложенными
// реакциями и реплаями.
func (r *MessageRepository) Edit(ctx context.Context, id, body string) (*domain.Message, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET body=$2, updated_at=now() WHERE id=$1`, id, body)
	if err != nil {
		return nil, storeErr("edit message", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrMessageNotFound
	}

	return r.hydrate(ctx, r.db, id, true)
}

// Delete удаляет сообщение вместе с прямыми реплаями в одной транзакции:
// либо родитель и все реплаи, либо ничего. Возвращает member_id автора.
func (r *MessageRepository) Delete(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE parent_id=$1`, id); err != nil {
		return 0, storeErr("delete replies", err)
	}

	var memberID int64
	err = tx.QueryRow(ctx,
		`DELETE FROM messages WHERE id=$1 RETURNING member_id`, id).Scan(&memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrMessageNotFound
		}
		return 0, storeErr("delete message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeErr("commit", err)
	}
	return memberID, nil
}

// ToggleReaction атомарно переключает тройку (message, member, value) и в той
// же транзакции перечитывает гидрированное сообщение. Конкурентные
// переключения сериализуются блокировкой строки сообщения: у отсутствующей
// тройки нет строки, на которой DELETE мог бы заблокироваться, и без FOR
// UPDATE два toggle-а подряд оба прошли бы по insert-ветке. Одиночная
// блокировка в процессе здесь недостаточна (инстансов может быть больше
// одного).
func (r *MessageRepository) ToggleReaction(ctx context.Context, messageID string, memberID int64, value string) (*domain.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	var one int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM messages WHERE id=$1 FOR UPDATE`, messageID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, storeErr("lock message", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM reactions WHERE message_id=$1 AND member_id=$2 AND value=$3`,
		messageID, memberID, value)
	if err != nil {
		return nil, storeErr("toggle reaction", err)
	}
	if tag.RowsAffected() == 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO reactions (message_id, member_id, value)
			VALUES ($1, $2, $3)`,
			messageID, memberID, value)
		if err != nil {
			return nil, storeErr("toggle reaction", err)
		}
	}

	msg, err := r.hydrate(ctx, tx, messageID, true)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit", err)
	}
	return msg, nil
}

// WorkspaceOf — воркспейс сообщения; нужен пайплайну для проверки членства
// до мутации.
func (r *MessageRepository) WorkspaceOf(ctx context.Context, messageID string) (string, error) {
	var workspaceID string
	err := r.db.QueryRow(ctx,
		`SELECT workspace_id FROM messages WHERE id=$1`, messageID).Scan(&workspaceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrMessageNotFound
		}
		return "", storeErr("load workspace", err)
	}
	return workspaceID, nil
}

// -------- hydration --------

const messageSelect = `
SELECT m.id, m.body, m.member_id, m.workspace_id, m.channel_id, m.conversation_id,
       m.parent_id, m.attachments, m.created_at, m.updated_at,
       mem.user_id, u.fullname, u.email, u.avatar_url
FROM messages m
JOIN members mem ON mem.id = m.member_id
JOIN users u ON u.id = mem.user_id`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.Body, &m.MemberID, &m.WorkspaceID, &m.ChannelID, &m.ConversationID,
		&m.ParentID, &m.Attachments, &m.CreatedAt, &m.UpdatedAt,
		&m.Author.UserID, &m.Author.User.Fullname, &m.Author.User.Email, &m.Author.User.AvatarURL,
	)
	if err != nil {
		return nil, err
	}
	m.Author.MemberID = m.MemberID
	m.Reactions = []domain.Reaction{}
	return &m, nil
}

func (r *MessageRepository) hydrate(ctx context.Context, q querier, id string, withReplies bool) (*domain.Message, error) {
	msg, err := scanMessage(q.QueryRow(ctx, messageSelect+` WHERE m.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, storeErr("load message", err)
	}

	ids := []string{msg.ID}

	if withReplies {
		rows, err := q.Query(ctx, messageSelect+` WHERE m.parent_id=$1 ORDER BY m.created_at DESC`, id)
		if err != nil {
			return nil, storeErr("load replies", err)
		}
		defer rows.Close()

		for rows.Next() {
			reply, err := scanMessage(rows)
			if err != nil {
				return nil, storeErr("scan reply", err)
			}
			msg.Replies = append(msg.Replies, *reply)
			ids = append(ids, reply.ID)
		}
		if err := rows.Err(); err != nil {
			return nil, storeErr("load replies", err)
		}
	}

	byMessage, err := r.loadReactions(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	if rs, ok := byMessage[msg.ID]; ok {
		msg.Reactions = rs
	}
	for i := range msg.Replies {
		if rs, ok := byMessage[msg.Replies[i].ID]; ok {
			msg.Replies[i].Reactions = rs
		}
	}

	return msg, nil
}

func (r *MessageRepository) loadReactions(ctx context.Context, q querier, messageIDs []string) (map[string][]domain.Reaction, error) {
	rows, err := q.Query(ctx, `
		SELECT r.message_id, r.member_id, r.value, u.fullname, u.avatar_url
		FROM reactions r
		JOIN members mem ON mem.id = r.member_id
		JOIN users u ON u.id = mem.user_id
		WHERE r.message_id = ANY($1::uuid[])
		ORDER BY r.created_at ASC`,
		messageIDs)
	if err != nil {
		return nil, storeErr("load reactions", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Reaction)
	for rows.Next() {
		var rc domain.Reaction
		if err := rows.Scan(&rc.MessageID, &rc.MemberID, &rc.Value, &rc.Member.Fullname, &rc.Member.AvatarURL); err != nil {
			return nil, storeErr("scan reaction", err)
		}
		out[rc.MessageID] = append(out[rc.MessageID], rc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load reactions", err)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, puddle.ErrClosedPool) {
		return fmt.Errorf("%s: %w", op, domain.ErrShutdown)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}
