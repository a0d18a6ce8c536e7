package service

import (
	"context"
	"strings"

	"partygame/internal/models"
	"partygame/internal/repository"
)

const maxQnaLength = 500

// QnaItem 只會新增，upvotes 只增不減
type QnaItem struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Author  string `json:"author"`
	Upvotes int    `json:"upvotes"`
}

func (s *Session) qnaList() []QnaItem {
	out := make([]QnaItem, 0, len(s.qna))
	for _, item := range s.qna {
		out = append(out, *item)
	}
	return out
}

// PostQna 與回合狀態無關，任何時候都能提問
func (r *Registry) PostQna(ctx context.Context, code, author, text string) (*QnaItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, malformed("text is required")
	}
	if len([]rune(text)) > maxQnaLength {
		return nil, malformed("text must be at most %d characters", maxQnaLength)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = "Anonymous"
	}

	s, err := r.acquire(ctx, code, false)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	item := &QnaItem{ID: s.newQnaID(), Text: text, Author: author}
	s.qna = append(s.qna, item)
	s.touch()

	doc := &models.QnaItem{SessionCode: s.code, ItemID: item.ID, Text: item.Text, Author: item.Author}
	s.persist("push_qna_item", func(ctx context.Context, st repository.Store) error {
		return st.PushQnaItem(ctx, doc.SessionCode, doc)
	})

	s.emit(EventQnaUpdate, s.qnaList())
	out := *item
	return &out, nil
}

// UpvoteQna 每次呼叫恰好加一
func (r *Registry) UpvoteQna(ctx context.Context, code, itemID string) error {
	s, err := r.acquire(ctx, code, false)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	var target *QnaItem
	for _, item := range s.qna {
		if item.ID == itemID {
			target = item
			break
		}
	}
	if target == nil {
		return ErrQnaNotFound
	}
	target.Upvotes++
	s.touch()

	code = s.code
	s.persist("increment_qna_upvote", func(ctx context.Context, st repository.Store) error {
		return st.IncrementQnaUpvote(ctx, code, itemID)
	})

	s.emit(EventQnaUpdate, s.qnaList())
	return nil
}

func (s *Session) newQnaID() string {
	for {
		id := s.reg.newRoundID()
		if !s.hasQnaItem(id) {
			return id
		}
	}
}

func (s *Session) hasQnaItem(id string) bool {
	for _, item := range s.qna {
		if item.ID == id {
			return true
		}
	}
	return false
}
