package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"partygame/internal/models"
	"partygame/internal/repository"
	"partygame/internal/utils"
	"partygame/pkg/config"
)

const (
	defaultParticipantName = "Player"
	maxNameLength          = 64
	roundIDLength          = 8
)

// Broadcaster 將事件送給房間或單一連線，實作不可阻塞呼叫者
type Broadcaster interface {
	EmitToRoom(code, event string, payload any)
	EmitToConnection(connID, event string, payload any)
	JoinRoom(connID, code string)
	LeaveRoom(connID, code string)
}

// LeaderboardMirror 保存每場次最新的排行榜，場次離開記憶體後仍可查詢
type LeaderboardMirror interface {
	Record(ctx context.Context, code string, entries []models.LeaderboardEntry) error
	Top(ctx context.Context, code string, limit int64) ([]models.LeaderboardEntry, error)
}

type Options struct {
	IdleTTL        time.Duration
	SweepInterval  time.Duration
	Defaults       RoundDefaults
	CodeLength     int
	CodeRetries    int
	PersistTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IdleTTL:       cfg.Session.IdleTTL,
		SweepInterval: cfg.Session.SweepInterval,
		Defaults: RoundDefaults{
			TimeLimit: cfg.Session.DefaultTimeLimit,
			Points:    cfg.Session.DefaultPoints,
		},
		CodeLength:     cfg.Session.CodeLength,
		CodeRetries:    cfg.Session.CodeRetries,
		PersistTimeout: cfg.Persistence.Timeout,
	}
}

type role int

const (
	roleHost role = iota + 1
	roleParticipant
)

// binding 記錄每條連線目前所屬的場次與角色
type binding struct {
	code string
	role role
}

// Registry 擁有所有進行中的場次，不同場次之間完全平行
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	connMu   sync.Mutex
	bindings map[string]binding

	store  repository.Store
	mirror *Mirror
	bus    Broadcaster
	board  LeaderboardMirror
	opts   Options
	logger *slog.Logger

	now        func() time.Time
	afterFunc  func(time.Duration, func()) Timer
	newCode    func(int) string
	newRoundID func() string
}

// NewRegistry board 可以為 nil
func NewRegistry(store repository.Store, mirror *Mirror, bus Broadcaster, board LeaderboardMirror, opts Options, logger *slog.Logger) *Registry {
	if opts.CodeRetries < 1 {
		opts.CodeRetries = 1
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	return &Registry{
		sessions: make(map[string]*Session),
		bindings: make(map[string]binding),
		store:    store,
		mirror:   mirror,
		bus:      bus,
		board:    board,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		newCode:    utils.GenerateCode,
		newRoundID: func() string { return utils.GenerateCode(roundIDLength) },
	}
}

// CreateSession 產生唯一代碼並同步寫入資料庫，寫入失敗時改由 Mirror 重試
func (r *Registry) CreateSession(ctx context.Context, hostName string) (string, error) {
	hostName = strings.TrimSpace(hostName)

	for attempt := 0; attempt < r.opts.CodeRetries; attempt++ {
		code := r.newCode(r.opts.CodeLength)

		r.mu.Lock()
		if _, exists := r.sessions[code]; exists {
			r.mu.Unlock()
			continue
		}
		s := newSession(r, code, hostName, r.now())
		r.sessions[code] = s
		r.mu.Unlock()

		doc := &models.Session{Code: code, HostName: hostName}
		doc.CreatedAt = s.createdAt

		writeCtx, cancel := context.WithTimeout(ctx, r.opts.PersistTimeout)
		err := r.store.CreateSession(writeCtx, doc)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, repository.ErrDuplicate):
			r.mu.Lock()
			delete(r.sessions, code)
			r.mu.Unlock()
			continue
		default:
			r.logger.Warn("create session write failed, retrying in background",
				slog.String("session", code), slog.Any("error", err))
			r.mirror.Enqueue(code, "create_session", func(ctx context.Context) error {
				return r.store.CreateSession(ctx, doc)
			})
		}

		r.logger.Info("session created", slog.String("session", code), slog.String("host", hostName))
		return code, nil
	}
	return "", ErrDuplicateCode
}

// BindHost 綁定或取代主持人連線，記憶體中沒有時會嘗試從資料庫恢復
func (r *Registry) BindHost(ctx context.Context, code, connID, name string) error {
	code = normalizeCode(code)
	if _, err := r.lookup(ctx, code, true); err != nil {
		return err
	}
	r.releasePrevious(ctx, connID, code, roleHost)

	s, err := r.acquire(ctx, code, true)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.hostConn = connID
	if name = strings.TrimSpace(name); name != "" {
		s.hostName = name
	}
	s.touch()
	r.bind(connID, binding{code: code, role: roleHost})

	r.bus.JoinRoom(connID, code)
	s.emitTo(connID, EventHostJoined, HostJoinedPayload{Code: code})
	s.emitTo(connID, EventParticipantsUpdate, s.participantInfos())
	if len(s.qna) > 0 {
		s.emitTo(connID, EventQnaUpdate, s.qnaList())
	}
	s.sendActiveRound(connID)

	r.logger.Info("host bound", slog.String("session", code), slog.String("conn", connID))
	return nil
}

// JoinParticipant 以連線識別碼作為玩家身分，同一連線重複加入只會更新名稱
func (r *Registry) JoinParticipant(ctx context.Context, code, connID, name string) (string, error) {
	code = normalizeCode(code)
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultParticipantName
	}
	if len([]rune(name)) > maxNameLength {
		return "", malformed("name must be at most %d characters", maxNameLength)
	}
	if _, err := r.lookup(ctx, code, true); err != nil {
		return "", err
	}
	r.releasePrevious(ctx, connID, code, roleParticipant)

	s, err := r.acquire(ctx, code, true)
	if err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	if p, ok := s.participants[connID]; ok {
		p.Name = name
		s.emit(EventParticipantsUpdate, s.participantInfos())
		return connID, nil
	}

	p := &Participant{ID: connID, Name: name, JoinedAt: r.now()}
	s.addParticipant(p)
	s.touch()
	r.bind(connID, binding{code: code, role: roleParticipant})

	doc := &models.Participant{ParticipantID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt}
	s.persist("add_participant", func(ctx context.Context, st repository.Store) error {
		return st.AddParticipant(ctx, code, doc)
	})

	r.bus.JoinRoom(connID, code)
	s.emit(EventParticipantsUpdate, s.participantInfos())
	if len(s.qna) > 0 {
		s.emitTo(connID, EventQnaUpdate, s.qnaList())
	}
	s.sendActiveRound(connID)

	r.logger.Info("participant joined",
		slog.String("session", code), slog.String("conn", connID), slog.String("name", name))
	return p.ID, nil
}

// releasePrevious 連線改加入其他場次或改變角色時，先離開原本的位置，
// 呼叫前需確認新場次存在，加入失敗時不影響原本的位置
func (r *Registry) releasePrevious(ctx context.Context, connID, code string, next role) {
	if b, ok := r.binding(connID); ok && (b.code != code || b.role != next) {
		r.RemoveConnection(ctx, connID)
	}
}

// RemoveConnection 在斷線時呼叫，重複呼叫不會出錯
func (r *Registry) RemoveConnection(ctx context.Context, connID string) {
	r.connMu.Lock()
	b, ok := r.bindings[connID]
	delete(r.bindings, connID)
	r.connMu.Unlock()
	if !ok {
		return
	}
	r.bus.LeaveRoom(connID, b.code)

	s, err := r.acquire(ctx, b.code, false)
	if err != nil {
		return
	}
	defer s.mu.Unlock()

	switch b.role {
	case roleHost:
		if s.hostConn == connID {
			s.hostConn = ""
			r.logger.Info("host left", slog.String("session", b.code), slog.String("conn", connID))
		}
	case roleParticipant:
		if !s.removeParticipant(connID) {
			return
		}
		code := b.code
		s.persist("remove_participant", func(ctx context.Context, st repository.Store) error {
			return st.RemoveParticipant(ctx, code, connID)
		})
		s.emit(EventParticipantsUpdate, s.participantInfos())
		r.logger.Info("participant left", slog.String("session", code), slog.String("conn", connID))
	}
	s.touch()
}

// StartQuestion 驗證題目後開始新回合
func (r *Registry) StartQuestion(ctx context.Context, code string, in *QuestionInput) (*Question, error) {
	q, err := in.Build(r.opts.Defaults)
	if err != nil {
		return nil, err
	}
	s, err := r.acquire(ctx, normalizeCode(code), true)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.startQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *Registry) StartPoll(ctx context.Context, code string, in *PollInput) (*Poll, error) {
	p, err := in.Build()
	if err != nil {
		return nil, err
	}
	s, err := r.acquire(ctx, normalizeCode(code), true)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.startPoll(p); err != nil {
		return nil, err
	}
	return p, nil
}

// EndRound 由主持人提前結束回合，與計時器同時觸發時只會結算一次
func (r *Registry) EndRound(ctx context.Context, code string) error {
	s, err := r.acquire(ctx, normalizeCode(code), false)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	current := s.rounds.current
	if current == nil || !s.completeRound(current.RoundID()) {
		return ErrRoundNotActive
	}
	return nil
}

// Snapshot 是場次目前狀態的唯讀副本
type Snapshot struct {
	Code         string            `json:"code"`
	HostName     string            `json:"host"`
	HostAttached bool              `json:"host_attached"`
	CreatedAt    time.Time         `json:"created_at"`
	Participants []ParticipantInfo `json:"participants"`
	Round        *RoundSnapshot    `json:"round,omitempty"`
	Qna          []QnaItem         `json:"qna"`
}

type RoundSnapshot struct {
	ID        string     `json:"id"`
	Kind      RoundKind  `json:"kind"`
	State     string     `json:"state"`
	Responses int        `json:"responses"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
}

func (r *Registry) Snapshot(ctx context.Context, code string) (*Snapshot, error) {
	s, err := r.acquire(ctx, normalizeCode(code), false)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	snap := &Snapshot{
		Code:         s.code,
		HostName:     s.hostName,
		HostAttached: s.hostConn != "",
		CreatedAt:    s.createdAt,
		Participants: s.participantInfos(),
		Qna:          s.qnaList(),
	}
	if rc := &s.rounds; rc.current != nil {
		rs := &RoundSnapshot{
			ID:        rc.current.RoundID(),
			Kind:      rc.current.Kind(),
			State:     rc.state.String(),
			Responses: rc.responses.len(),
		}
		if !rc.endsAt.IsZero() {
			endsAt := rc.endsAt
			rs.EndsAt = &endsAt
		}
		snap.Round = rs
	}
	return snap, nil
}

// Leaderboard 依序嘗試記憶體、排行榜快取與資料庫
func (r *Registry) Leaderboard(ctx context.Context, code string) ([]models.LeaderboardEntry, error) {
	code = normalizeCode(code)
	if s, err := r.acquire(ctx, code, false); err == nil {
		board := Leaderboard(s.joinOrder)
		s.mu.Unlock()
		return board, nil
	}

	if r.board != nil {
		board, err := r.board.Top(ctx, code, 0)
		if err == nil {
			return board, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("leaderboard cache read failed", slog.String("session", code), slog.Any("error", err))
		}
	}

	participants, err := r.Results(ctx, code)
	if err != nil {
		return nil, err
	}
	board := make([]models.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		board = append(board, models.LeaderboardEntry{ID: p.ParticipantID, Name: p.Name, Score: p.Score})
	}
	sortEntries(board)
	return board, nil
}

// Results 回傳資料庫中所有參加過的玩家，包含已離線者
func (r *Registry) Results(ctx context.Context, code string) ([]models.Participant, error) {
	code = normalizeCode(code)
	participants, err := r.store.ListParticipants(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if len(participants) > 0 {
		return participants, nil
	}
	if !r.exists(ctx, code) {
		return nil, ErrSessionNotFound
	}
	return participants, nil
}

func (r *Registry) exists(ctx context.Context, code string) bool {
	r.mu.RLock()
	_, live := r.sessions[code]
	r.mu.RUnlock()
	if live {
		return true
	}
	_, err := r.store.FindSession(ctx, code)
	return err == nil
}

// Sweep 清除沒有主持人、沒有玩家且閒置超過 IdleTTL 的場次
func (r *Registry) Sweep(now time.Time) int {
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	evicted := 0
	for _, s := range candidates {
		s.mu.Lock()
		if s.evicted || !s.idle(now, r.opts.IdleTTL) {
			s.mu.Unlock()
			continue
		}
		s.evict()
		s.mu.Unlock()

		r.forget(s)
		evicted++
		r.logger.Info("session evicted", slog.String("session", s.code))
	}
	return evicted
}

// Run 定期清除閒置場次，ctx 結束時停止所有計時器
func (r *Registry) Run(ctx context.Context) error {
	interval := r.opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return nil
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// Shutdown 停止所有回合計時器並清空記憶體，已持久化的紀錄不受影響
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.evict()
		s.mu.Unlock()
	}
}

// SessionCount 回傳記憶體中的場次數量
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// acquire 回傳已上鎖且尚未被清除的場次，呼叫者負責解鎖
func (r *Registry) acquire(ctx context.Context, code string, restore bool) (*Session, error) {
	for {
		s, err := r.lookup(ctx, code, restore)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.evicted {
			return s, nil
		}
		s.mu.Unlock()
		r.forget(s)
	}
}

func (r *Registry) lookup(ctx context.Context, code string, restore bool) (*Session, error) {
	if code == "" {
		return nil, malformed("code is required")
	}
	r.mu.RLock()
	s, ok := r.sessions[code]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}
	if !restore {
		return nil, ErrSessionNotFound
	}

	readCtx, cancel := context.WithTimeout(ctx, r.opts.PersistTimeout)
	doc, err := r.store.FindSession(readCtx, code)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		r.logger.Warn("session recovery failed", slog.String("session", code), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[code]; ok {
		return existing, nil
	}
	s = restoreSession(r, doc, r.now())
	r.sessions[code] = s
	r.logger.Info("session recovered", slog.String("session", code))
	return s, nil
}

// forget 只移除仍指向同一個 Session 的項目
func (r *Registry) forget(s *Session) {
	r.mu.Lock()
	if r.sessions[s.code] == s {
		delete(r.sessions, s.code)
	}
	r.mu.Unlock()
}

func (r *Registry) bind(connID string, b binding) {
	r.connMu.Lock()
	r.bindings[connID] = b
	r.connMu.Unlock()
}

func (r *Registry) binding(connID string) (binding, bool) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	b, ok := r.bindings[connID]
	return b, ok
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
