package review

import "testing"

func TestParsePendingScores(t *testing.T) {
	data := []byte(`[
		{"question_id": "q1", "question_text": "成果", "answer": "達成", "current_score": 6,
		 "question_type": "manager", "weight": 1.5, "max_score": 10, "section": "業績"},
		{"question_id": "q2", "current_score": null, "weight": "abc", "max_score": "5"},
		{"question_id": 3, "question_text": null, "max_score": 4.5},
		"not an object"
	]`)

	got := ParsePendingScores(data)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	q1 := got[0]
	if q1.QuestionID != "q1" || q1.QuestionText != "成果" || q1.Answer != "達成" || q1.Section != "業績" {
		t.Errorf("q1 = %+v", q1)
	}
	if q1.CurrentScore == nil || *q1.CurrentScore != 6 || q1.Weight != 1.5 || q1.MaxScore != 10 {
		t.Errorf("q1 numbers = %v %v %v", q1.CurrentScore, q1.Weight, q1.MaxScore)
	}

	q2 := got[1]
	if q2.QuestionText != unknownQuestion {
		t.Errorf("missing question_text = %q, want %q", q2.QuestionText, unknownQuestion)
	}
	if q2.CurrentScore != nil {
		t.Errorf("null current_score = %v, want nil", *q2.CurrentScore)
	}
	if q2.Weight != 0 || q2.MaxScore != 5 {
		t.Errorf("q2 weight=%v max=%v, want 0 and 5", q2.Weight, q2.MaxScore)
	}

	q3 := got[2]
	if q3.QuestionID != "3" || q3.QuestionText != unknownQuestion || q3.MaxScore != 0 {
		t.Errorf("q3 = %+v", q3)
	}
}

func TestParsePendingScores_NotArray(t *testing.T) {
	for _, in := range []string{``, `{}`, `null`, `"x"`} {
		if got := ParsePendingScores([]byte(in)); got != nil {
			t.Errorf("ParsePendingScores(%q) = %v, want nil", in, got)
		}
	}
}
