package service

import (
	"encoding/json"
)

// 客戶端送入的事件
const (
	EventHostJoin             = "host:join"
	EventParticipantJoin      = "participant:join"
	EventHostStartQuestion    = "host:start-question"
	EventHostStartPoll        = "host:start-poll"
	EventHostEndRound         = "host:end-round"
	EventParticipantAnswer    = "participant:answer"
	EventParticipantVote      = "participant:vote"
	EventParticipantPostQna   = "participant:post-qna"
	EventParticipantUpvoteQna = "participant:upvote-qna"
)

// 伺服器送出的事件
const (
	EventHostJoined         = "host:joined"
	EventQuestionPush       = "question:push"
	EventQuestionTimer      = "question:timer"
	EventQuestionResults    = "question:results"
	EventPollPush           = "poll:push"
	EventPollResults        = "poll:results"
	EventLeaderboardUpdate  = "leaderboard:update"
	EventParticipantsUpdate = "participants:update"
	EventQnaUpdate          = "qna:update"
	EventAnswerAck          = "answer:ack"
	EventError              = "error"
)

type HostJoinedPayload struct {
	Code string `json:"code"`
}

// TimerPayload 宣告回合的時間預算，0 表示不限時
type TimerPayload struct {
	RoundID string `json:"id"`
	Time    int    `json:"time"`
}

type RoundResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Awarded int    `json:"awarded"`
}

type QuestionResultsPayload struct {
	QuestionID string        `json:"question_id"`
	Results    []RoundResult `json:"results"`
}

type PollResultsPayload struct {
	PollID string         `json:"poll_id"`
	Counts map[string]int `json:"counts"`
	Final  bool           `json:"final"`
}

type AnswerAckPayload struct {
	QuestionID string `json:"qid,omitempty"`
	PollID     string `json:"poll_id,omitempty"`
}

type joinPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type startQuestionPayload struct {
	Code     string         `json:"code"`
	Question *QuestionInput `json:"question"`
}

type startPollPayload struct {
	Code string     `json:"code"`
	Poll *PollInput `json:"poll"`
}

type endRoundPayload struct {
	Code string `json:"code"`
}

type answerPayload struct {
	QuestionID string          `json:"qid"`
	Answer     json.RawMessage `json:"answer"`
}

type votePayload struct {
	PollID string `json:"poll_id"`
	Choice string `json:"choice"`
}

type postQnaPayload struct {
	Text string `json:"text"`
	Name string `json:"name"`
}

type upvoteQnaPayload struct {
	ItemID string `json:"qna_id"`
}
