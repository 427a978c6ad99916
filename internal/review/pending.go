package review

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/perfreview/internal/model"
)

// unknownQuestion は質問文が欠けている場合の表示名。
const unknownQuestion = "Unknown question"

// rawJSON はレスポンスを生のまま受け取るための型。
type rawJSON []byte

// UnmarshalJSON は入力をそのまま保持する。
func (r *rawJSON) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// ParsePendingScores は採点待ち質問の配列を解釈する。
// 各要素は型の揃わないキー値の集まりなので、キーごとに緩く読み取る。
// 数値は文字列で届いても受け付け、解釈できない値は未設定として扱う。
func ParsePendingScores(data []byte) []model.PendingScore {
	arr := gjson.ParseBytes(data)
	if !arr.IsArray() {
		return nil
	}

	var out []model.PendingScore
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		ps := model.PendingScore{
			QuestionID:   str(item.Get("question_id")),
			QuestionText: str(item.Get("question_text")),
			Answer:       str(item.Get("answer")),
			QuestionType: str(item.Get("question_type")),
			Section:      str(item.Get("section")),
		}
		if ps.QuestionText == "" {
			ps.QuestionText = unknownQuestion
		}
		if v, ok := num(item.Get("current_score")); ok {
			ps.CurrentScore = &v
		}
		if v, ok := num(item.Get("weight")); ok {
			ps.Weight = v
		}
		if v, ok := num(item.Get("max_score")); ok && v == float64(int(v)) {
			ps.MaxScore = int(v)
		}
		out = append(out, ps)
		return true
	})
	return out
}

func str(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return r.String()
}

func num(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		v, err := strconv.ParseFloat(r.Str, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
