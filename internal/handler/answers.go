package handler

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
)

// parseAnswers はフォームの回答欄を読み取る。
// 質問ごとに question_id を繰り返し、answer_{id}・score_{id}・option_{id} を添える。
// 数値として解釈できないスコアは未入力として扱う。
func parseAnswers(form url.Values, san *security.Sanitizer) []model.Answer {
	seen := map[string]bool{}
	var answers []model.Answer
	for _, id := range form["question_id"] {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		a := model.Answer{
			QuestionID: id,
			Answer:     san.Text(form.Get("answer_" + id)),
		}
		if v := strings.TrimSpace(form.Get("score_" + id)); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				a.Score = &f
			}
		}
		if v := san.Text(form.Get("option_" + id)); v != "" {
			a.SelectedOption = &v
		}
		answers = append(answers, a)
	}
	return answers
}
