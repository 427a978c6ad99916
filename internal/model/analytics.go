package model

// GoalScores はゴール単位の評価点。
type GoalScores struct {
	SelfScore       float64 `json:"self_score"`
	ManagerScore    float64 `json:"manager_score"`
	RespondentScore float64 `json:"respondent_score"`
	TotalScore      float64 `json:"total_score"`
}

// GoalAnalytics はゴール単位の分析結果。
type GoalAnalytics struct {
	GoalID          string     `json:"goal_id"`
	GoalTitle       string     `json:"goal_title"`
	Scores          GoalScores `json:"scores"`
	FinalRating     string     `json:"final_rating"`
	Recommendations []string   `json:"recommendations"`
	ReviewCount     int        `json:"review_count"`
	RespondentCount int        `json:"respondent_count"`
	FinalFeedback   string     `json:"final_feedback,omitempty"`
}

// EmployeeSummary は社員単位の分析サマリー。
type EmployeeSummary struct {
	EmployeeID     string          `json:"employee_id"`
	TotalGoals     int             `json:"total_goals"`
	CompletedGoals int             `json:"completed_goals"`
	AverageScore   float64         `json:"average_score"`
	OverallRating  string          `json:"overall_rating"`
	GoalsAnalytics []GoalAnalytics `json:"goals_analytics"`
}
