package models

import "testing"

func TestQuizLevelValid(t *testing.T) {
	for _, level := range []QuizLevel{QuizLevelB1, QuizLevelB2} {
		if !level.Valid() {
			t.Errorf("level %q should be valid", level)
		}
	}
	for _, level := range []QuizLevel{"", "A1", "C1", "b1"} {
		if QuizLevel(level).Valid() {
			t.Errorf("level %q should be invalid", level)
		}
	}
}
