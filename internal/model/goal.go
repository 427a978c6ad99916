package model

// GoalStatus はゴールの状態を表す。
type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusCancelled GoalStatus = "cancelled"
)

// Goal はバックエンドのゴールレコード。
type Goal struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employee_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ExpectedResult  string     `json:"expected_result"`
	Deadline        Timestamp  `json:"deadline"`
	TaskLink        *string    `json:"task_link,omitempty"`
	Status          GoalStatus `json:"status"`
	CreatedAt       Timestamp  `json:"created_at"`
	EmployeeName    string     `json:"employee_name,omitempty"`
	Steps           []GoalStep `json:"steps,omitempty"`
	RespondentNames []string   `json:"respondent_names,omitempty"`
}

// CompletedSteps は完了済みステップ数を返す。
func (g *Goal) CompletedSteps() int {
	n := 0
	for _, s := range g.Steps {
		if s.IsCompleted {
			n++
		}
	}
	return n
}

// GoalCreateRequest は goals/ に送るゴール作成リクエスト。
type GoalCreateRequest struct {
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	ExpectedResult string              `json:"expected_result"`
	Deadline       string              `json:"deadline"`
	TaskLink       *string             `json:"task_link,omitempty"`
	RespondentIDs  []string            `json:"respondent_ids"`
	Steps          []GoalStepCreateReq `json:"steps,omitempty"`
}

// GoalStatusUpdate は goals/{id}/status に送るリクエスト。
type GoalStatusUpdate struct {
	Status GoalStatus `json:"status"`
}

// GoalStep はゴールを構成するステップ。
type GoalStep struct {
	ID          string    `json:"id"`
	GoalID      string    `json:"goal_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsCompleted bool      `json:"is_completed"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   Timestamp `json:"created_at"`
}

// GoalStepCreateReq はステップ作成・更新リクエスト。
type GoalStepCreateReq struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OrderIndex  int    `json:"order_index"`
}
