package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"partygame/internal/models"
)

// HandleMessage 處理單一連線送來的事件，錯誤只回報給該連線
func (r *Registry) HandleMessage(ctx context.Context, connID string, msg *models.Message) {
	err := r.Dispatch(ctx, connID, msg.Event, msg.Data)
	if err == nil {
		return
	}
	level := slog.LevelDebug
	if ErrorCode(err) == "internal" {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "event rejected",
		slog.String("conn", connID), slog.String("event", msg.Event), slog.Any("error", err))
	r.bus.EmitToConnection(connID, EventError, NewErrorPayload(err))
}

// Dispatch 依事件名稱分派，主持人事件以 payload 中的 code 定位場次，
// 玩家事件使用連線目前加入的場次
func (r *Registry) Dispatch(ctx context.Context, connID, event string, data json.RawMessage) error {
	switch event {
	case EventHostJoin:
		var p joinPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return r.BindHost(ctx, p.Code, connID, p.Name)

	case EventParticipantJoin:
		var p joinPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		_, err := r.JoinParticipant(ctx, p.Code, connID, p.Name)
		return err

	case EventHostStartQuestion:
		var p startQuestionPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		_, err := r.StartQuestion(ctx, p.Code, p.Question)
		return err

	case EventHostStartPoll:
		var p startPollPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		_, err := r.StartPoll(ctx, p.Code, p.Poll)
		return err

	case EventHostEndRound:
		var p endRoundPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return r.EndRound(ctx, p.Code)

	case EventParticipantAnswer:
		var p answerPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		code, err := r.boundSession(connID, roleParticipant)
		if err != nil {
			return err
		}
		return r.Submit(ctx, code, connID, p.QuestionID, p.Answer)

	case EventParticipantVote:
		var p votePayload
		if err := decode(data, &p); err != nil {
			return err
		}
		code, err := r.boundSession(connID, roleParticipant)
		if err != nil {
			return err
		}
		return r.Vote(ctx, code, connID, p.PollID, p.Choice)

	case EventParticipantPostQna:
		var p postQnaPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		code, err := r.boundSession(connID, 0)
		if err != nil {
			return err
		}
		_, err = r.PostQna(ctx, code, p.Name, p.Text)
		return err

	case EventParticipantUpvoteQna:
		var p upvoteQnaPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		code, err := r.boundSession(connID, 0)
		if err != nil {
			return err
		}
		return r.UpvoteQna(ctx, code, p.ItemID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
}

// boundSession want 為 0 時接受任何角色
func (r *Registry) boundSession(connID string, want role) (string, error) {
	b, ok := r.binding(connID)
	if !ok || (want != 0 && b.role != want) {
		return "", ErrNotInSession
	}
	return b.code, nil
}

func decode(data json.RawMessage, v any) error {
	if isAbsent(data) {
		return malformed("payload is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return malformed("%v", err)
	}
	return nil
}
