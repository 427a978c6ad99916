package goal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
)

const (
	// MaxTitleLength はゴールタイトルの最大文字数。
	MaxTitleLength = 200
	// MaxSteps は作成時に指定できるステップの最大数。
	MaxSteps = 3
)

// deadlineLayouts はフォームから受け付ける締め切りの書式。
var deadlineLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// StepForm はゴール作成フォームのステップ入力。
type StepForm struct {
	Title       string
	Description string
	OrderIndex  int
}

// CreateForm はゴール作成フォームの入力値。
type CreateForm struct {
	Title          string
	Description    string
	ExpectedResult string
	Deadline       string
	TaskLink       string
	RespondentIDs  string
	Steps          []StepForm
}

// FieldErrors はフィールド名ごとの検証エラー。
type FieldErrors map[string]string

// Any はエラーが1件以上あるかを返す。
func (e FieldErrors) Any() bool {
	return len(e) > 0
}

// ParseRespondentIDs はカンマ区切りの回答者IDを分割する。空要素は除く。
func ParseRespondentIDs(csv string) []string {
	var ids []string
	for _, part := range strings.Split(csv, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Validate はフォームを検証し、バックエンドへ送るリクエストを組み立てる。
// 入力のHTMLはsanで除去する。締め切りはlocで解釈し、nowより後でなければならない。
func (f CreateForm) Validate(san *security.Sanitizer, now time.Time, loc *time.Location) (model.GoalCreateRequest, FieldErrors) {
	errs := FieldErrors{}

	title := san.Text(f.Title)
	switch {
	case title == "":
		errs["title"] = "タイトルは必須です"
	case utf8.RuneCountInString(title) > MaxTitleLength:
		errs["title"] = "タイトルは200文字以内で入力してください"
	}

	description := san.Text(f.Description)
	if description == "" {
		errs["description"] = "説明は必須です"
	}
	expected := san.Text(f.ExpectedResult)
	if expected == "" {
		errs["expected_result"] = "期待する成果は必須です"
	}

	var deadline time.Time
	if strings.TrimSpace(f.Deadline) == "" {
		errs["deadline"] = "締め切りは必須です"
	} else if d, ok := parseDeadline(f.Deadline, loc); !ok {
		errs["deadline"] = "締め切りの形式が正しくありません"
	} else if !d.After(now) {
		errs["deadline"] = "締め切りは未来の日時を指定してください"
	} else {
		deadline = d
	}

	var taskLink *string
	if link := strings.TrimSpace(f.TaskLink); link != "" {
		if err := security.ValidateTaskLink(link); err != nil {
			errs["task_link"] = "正しいURLを入力してください"
		} else {
			taskLink = &link
		}
	}

	respondents := ParseRespondentIDs(f.RespondentIDs)
	if len(respondents) == 0 {
		errs["respondent_ids"] = "回答者を1人以上指定してください"
	}

	if len(f.Steps) > MaxSteps {
		errs["steps"] = "ステップは3件までです"
	}
	var steps []model.GoalStepCreateReq
	for _, st := range f.Steps {
		t := san.Text(st.Title)
		if t == "" {
			continue
		}
		steps = append(steps, model.GoalStepCreateReq{
			Title:       t,
			Description: san.Text(st.Description),
			OrderIndex:  st.OrderIndex,
		})
	}

	if errs.Any() {
		return model.GoalCreateRequest{}, errs
	}
	return model.GoalCreateRequest{
		Title:          title,
		Description:    description,
		ExpectedResult: expected,
		Deadline:       deadline.UTC().Format("2006-01-02T15:04:05.000Z"),
		TaskLink:       taskLink,
		RespondentIDs:  respondents,
		Steps:          steps,
	}, nil
}

func parseDeadline(raw string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
