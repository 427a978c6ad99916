package model

import "encoding/json"

// ReviewType は評価の種類を表す。
type ReviewType string

const (
	ReviewTypeSelf       ReviewType = "self"
	ReviewTypeManager    ReviewType = "manager"
	ReviewTypePotential  ReviewType = "potential"
	ReviewTypeRespondent ReviewType = "respondent"
)

// ParseReviewType は文字列を評価種別に変換する。未知の値はfalseを返す。
func ParseReviewType(s string) (ReviewType, bool) {
	switch ReviewType(s) {
	case ReviewTypeSelf, ReviewTypeManager, ReviewTypePotential, ReviewTypeRespondent:
		return ReviewType(s), true
	}
	return "", false
}

// Review はバックエンドの評価レコード。
type Review struct {
	ID              string     `json:"id"`
	GoalID          string     `json:"goal_id"`
	ReviewerID      string     `json:"reviewer_id"`
	ReviewType      ReviewType `json:"review_type"`
	CalculatedScore *float64   `json:"calculated_score,omitempty"`
	CreatedAt       Timestamp  `json:"created_at"`
	FinalRating     *string    `json:"final_rating,omitempty"`
	FinalFeedback   *string    `json:"final_feedback,omitempty"`
}

// IsFinalized は最終評価が確定しているかを返す。
func (r *Review) IsFinalized() bool {
	return r.FinalRating != nil && *r.FinalRating != ""
}

// ReviewWithAnswers は回答付きの評価。
// 回答の中身はバックエンドが所有する自由形式のため、生のJSONのまま保持する。
type ReviewWithAnswers struct {
	Review
	SelfEvaluationAnswers      json.RawMessage `json:"self_evaluation_answers,omitempty"`
	ManagerEvaluationAnswers   json.RawMessage `json:"manager_evaluation_answers,omitempty"`
	PotentialEvaluationAnswers json.RawMessage `json:"potential_evaluation_answers,omitempty"`
}

// Answer は質問への回答。
type Answer struct {
	QuestionID     string   `json:"question_id"`
	Answer         string   `json:"answer"`
	Score          *float64 `json:"score,omitempty"`
	SelectedOption *string  `json:"selected_option,omitempty"`
}

// ReviewCreateRequest は reviews/ に送る評価作成リクエスト。
type ReviewCreateRequest struct {
	GoalID     string     `json:"goal_id"`
	ReviewType ReviewType `json:"review_type"`
	Answers    []Answer   `json:"answers"`
}

// FinalReviewUpdate は reviews/{id}/final に送る最終評価。
type FinalReviewUpdate struct {
	FinalRating   string `json:"final_rating"`
	FinalFeedback string `json:"final_feedback"`
}

// RespondentReviewCreateRequest は reviews/respondent に送るリクエスト。
type RespondentReviewCreateRequest struct {
	GoalID   string   `json:"goal_id"`
	Answers  []Answer `json:"answers"`
	Comments *string  `json:"comments,omitempty"`
}

// RespondentReview は回答者による評価。
type RespondentReview struct {
	ID             string          `json:"id"`
	GoalID         string          `json:"goal_id"`
	RespondentID   string          `json:"respondent_id"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	Comments       *string         `json:"comments,omitempty"`
	CreatedAt      Timestamp       `json:"created_at"`
	RespondentName string          `json:"respondent_name,omitempty"`
}

// PendingScore は上長の採点待ち質問。
type PendingScore struct {
	QuestionID   string
	QuestionText string
	QuestionType string
	Section      string
	Answer       string
	CurrentScore *float64
	Weight       float64
	MaxScore     int
}

// QuestionTemplate は評価フォームの質問テンプレート。
type QuestionTemplate struct {
	ID                     string          `json:"id"`
	QuestionText           string          `json:"question_text"`
	QuestionType           string          `json:"question_type"`
	Section                string          `json:"section,omitempty"`
	Weight                 float64         `json:"weight"`
	MaxScore               int             `json:"max_score"`
	OrderIndex             int             `json:"order_index"`
	TriggerWords           json.RawMessage `json:"trigger_words,omitempty"`
	OptionsJSON            *string         `json:"options_json,omitempty"`
	RequiresManagerScoring bool            `json:"requires_manager_scoring"`
	IsActive               bool            `json:"is_active"`
	CreatedAt              Timestamp       `json:"created_at"`
}

// QuestionTemplateRequest は質問テンプレートの作成・更新リクエスト。
type QuestionTemplateRequest struct {
	QuestionText           string          `json:"question_text"`
	QuestionType           string          `json:"question_type"`
	Section                string          `json:"section,omitempty"`
	Weight                 float64         `json:"weight"`
	MaxScore               int             `json:"max_score"`
	OrderIndex             int             `json:"order_index"`
	TriggerWords           json.RawMessage `json:"trigger_words,omitempty"`
	OptionsJSON            *string         `json:"options_json,omitempty"`
	RequiresManagerScoring bool            `json:"requires_manager_scoring"`
	IsActive               bool            `json:"is_active"`
}
