package domain

import (
	"github.com/yungbote/neurobridge-mastery/internal/domain/learning/personalization"
)

type SkillType = personalization.SkillType

const (
	SkillTypeWordLinking  = personalization.SkillTypeWordLinking
	SkillTypeNamesFaces   = personalization.SkillTypeNamesFaces
	SkillTypeNumberPeg    = personalization.SkillTypeNumberPeg
	SkillTypeMemoryPalace = personalization.SkillTypeMemoryPalace
	SkillTypeQuiz         = personalization.SkillTypeQuiz
	SkillTypeGeneralQuiz  = personalization.SkillTypeGeneralQuiz
)

type MasteryRecord = personalization.MasteryRecord
type MasteryAttempt = personalization.MasteryAttempt
type RecordParams = personalization.RecordParams

const (
	MasteredThreshold = personalization.MasteredThreshold
	PracticeThreshold = personalization.PracticeThreshold
)
