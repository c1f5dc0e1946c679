package personalization

import (
	"fmt"
	"strings"
)

// SkillType is the closed set of trainable skills a mastery record can track.
type SkillType string

const (
	SkillTypeWordLinking  SkillType = "WORD_LINKING"
	SkillTypeNamesFaces   SkillType = "NAMES_FACES"
	SkillTypeNumberPeg    SkillType = "NUMBER_PEG"
	SkillTypeMemoryPalace SkillType = "MEMORY_PALACE"
	SkillTypeQuiz         SkillType = "QUIZ"
	// SkillTypeGeneralQuiz tracks ungraded quizzes; it is not an assessment
	// and stays out of aggregate mastery stats.
	SkillTypeGeneralQuiz SkillType = "GENERAL_QUIZ"
)

// TaskKind describes how an exercise elicits the answer, which bounds how
// likely a learner is to answer correctly without knowing the material.
type TaskKind int

const (
	TaskKindDefault TaskKind = iota
	TaskKindRecall
	TaskKindRecognition
	TaskKindMultipleChoice
)

var guessRateByTaskKind = [...]float64{
	TaskKindDefault:        0.15,
	TaskKindRecall:         0.05,
	TaskKindRecognition:    0.15,
	TaskKindMultipleChoice: 0.25,
}

var taskKindBySkillType = map[SkillType]TaskKind{
	SkillTypeWordLinking:  TaskKindRecall,
	SkillTypeNumberPeg:    TaskKindRecall,
	SkillTypeMemoryPalace: TaskKindRecall,
	SkillTypeNamesFaces:   TaskKindRecognition,
	SkillTypeQuiz:         TaskKindMultipleChoice,
	SkillTypeGeneralQuiz:  TaskKindDefault,
}

// SkillTypes returns every known skill type in a stable order.
func SkillTypes() []SkillType {
	return []SkillType{
		SkillTypeWordLinking,
		SkillTypeNamesFaces,
		SkillTypeNumberPeg,
		SkillTypeMemoryPalace,
		SkillTypeQuiz,
		SkillTypeGeneralQuiz,
	}
}

func (s SkillType) Valid() bool {
	_, ok := taskKindBySkillType[s]
	return ok
}

func (s SkillType) TaskKind() TaskKind {
	if k, ok := taskKindBySkillType[s]; ok {
		return k
	}
	return TaskKindDefault
}

// GuessRate is P(correct | unknown) assigned to new records of this skill type.
func (s SkillType) GuessRate() float64 {
	return guessRateByTaskKind[s.TaskKind()]
}

// IsAssessment reports whether attempts of this type count toward mastery stats.
func (s SkillType) IsAssessment() bool {
	return s != SkillTypeGeneralQuiz
}

// ParseSkillType accepts the canonical form as well as lower-case and
// kebab-case spellings ("names-faces").
func ParseSkillType(raw string) (SkillType, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, "-", "_")
	st := SkillType(norm)
	if !st.Valid() {
		return "", fmt.Errorf("unknown skill type %q", raw)
	}
	return st, nil
}
