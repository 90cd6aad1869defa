package domain

// ExamType distinguishes the exam a session prepares for.
type ExamType string

const (
	ExamTypeJLPTN5 ExamType = "JLPT_N5"
	ExamTypeJLPTN4 ExamType = "JLPT_N4"
	ExamTypeJLPTN3 ExamType = "JLPT_N3"
	ExamTypeJLPTN2 ExamType = "JLPT_N2"
	ExamTypeJLPTN1 ExamType = "JLPT_N1"
)

// Category narrows a session to one question category. Empty means all.
type Category string

const (
	CategoryVocabulary Category = "VOCABULARY"
	CategoryGrammar    Category = "GRAMMAR"
	CategoryReading    Category = "READING"
	CategoryListening  Category = "LISTENING"
)

// Difficulty selects the question difficulty mix.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyMixed  Difficulty = "MIXED"
)

const (
	MinQuestionCount = 1
	MaxQuestionCount = 100
	// MinTimeLimitSeconds is the floor for any explicit time value.
	MinTimeLimitSeconds = 60
	// DefaultFallbackLimitSeconds caps sessions without an explicit limit (4h).
	DefaultFallbackLimitSeconds = 14400
)

// QuizConfig is the immutable, validated configuration of one session.
type QuizConfig struct {
	examType                    ExamType
	category                    Category
	questionCount               int
	timeLimitSeconds            int // 0 means no explicit limit
	difficulty                  Difficulty
	enforceSequentialAnswering  bool
	requireAllAnswers           bool
	autoCompleteWhenAllAnswered bool
	fallbackLimitSeconds        int
}

// QuizConfigProps carries the raw inputs to NewQuizConfig. Zero values take
// the documented defaults.
type QuizConfigProps struct {
	ExamType                   ExamType
	Category                   Category
	QuestionCount              int
	TimeLimitSeconds           int
	Difficulty                 Difficulty
	EnforceSequentialAnswering bool
	RequireAllAnswers          bool
	DisableAutoComplete        bool
	FallbackLimitSeconds       int
}

// NewQuizConfig validates props and builds a config. Validation order:
// question count, explicit time limit, fallback limit.
func NewQuizConfig(props QuizConfigProps) (QuizConfig, error) {
	if props.QuestionCount < MinQuestionCount || props.QuestionCount > MaxQuestionCount {
		return QuizConfig{}, InvalidQuestionCountError{Count: props.QuestionCount}
	}
	if props.TimeLimitSeconds != 0 && props.TimeLimitSeconds < MinTimeLimitSeconds {
		return QuizConfig{}, InvalidTimeLimitError{Seconds: props.TimeLimitSeconds}
	}
	fallback := props.FallbackLimitSeconds
	if fallback == 0 {
		fallback = DefaultFallbackLimitSeconds
	}
	if fallback < MinTimeLimitSeconds {
		return QuizConfig{}, InvalidTimeLimitError{Seconds: fallback}
	}
	difficulty := props.Difficulty
	if difficulty == "" {
		difficulty = DifficultyMixed
	}
	return QuizConfig{
		examType:                    props.ExamType,
		category:                    props.Category,
		questionCount:               props.QuestionCount,
		timeLimitSeconds:            props.TimeLimitSeconds,
		difficulty:                  difficulty,
		enforceSequentialAnswering:  props.EnforceSequentialAnswering,
		requireAllAnswers:           props.RequireAllAnswers,
		autoCompleteWhenAllAnswered: !props.DisableAutoComplete,
		fallbackLimitSeconds:        fallback,
	}, nil
}

func (c QuizConfig) ExamType() ExamType                { return c.examType }
func (c QuizConfig) Category() Category                { return c.category }
func (c QuizConfig) QuestionCount() int                { return c.questionCount }
func (c QuizConfig) TimeLimitSeconds() int             { return c.timeLimitSeconds }
func (c QuizConfig) HasTimeLimit() bool                { return c.timeLimitSeconds != 0 }
func (c QuizConfig) Difficulty() Difficulty            { return c.difficulty }
func (c QuizConfig) EnforceSequentialAnswering() bool  { return c.enforceSequentialAnswering }
func (c QuizConfig) RequireAllAnswers() bool           { return c.requireAllAnswers }
func (c QuizConfig) AutoCompleteWhenAllAnswered() bool { return c.autoCompleteWhenAllAnswered }
func (c QuizConfig) FallbackLimitSeconds() int         { return c.fallbackLimitSeconds }

// EffectiveLimitSeconds is the limit used for expiry: the explicit limit if
// present, otherwise the fallback.
func (c QuizConfig) EffectiveLimitSeconds() int {
	if c.timeLimitSeconds != 0 {
		return c.timeLimitSeconds
	}
	return c.fallbackLimitSeconds
}

// QuizConfigDTO is the lossless serialized form of a config. It is the shape
// stored inside the SessionStarted event payload, so fields may be added but
// never repurposed.
type QuizConfigDTO struct {
	ExamType                    string `json:"examType"`
	Category                    string `json:"category,omitempty"`
	QuestionCount               int    `json:"questionCount"`
	TimeLimitSeconds            int    `json:"timeLimitSeconds,omitempty"`
	Difficulty                  string `json:"difficulty"`
	EnforceSequentialAnswering  bool   `json:"enforceSequentialAnswering"`
	RequireAllAnswers           bool   `json:"requireAllAnswers"`
	AutoCompleteWhenAllAnswered bool   `json:"autoCompleteWhenAllAnswered"`
	FallbackLimitSeconds        int    `json:"fallbackLimitSeconds"`
}

// ToDTO serializes the config; round-tripping through QuizConfigFromDTO
// preserves every field exactly.
func (c QuizConfig) ToDTO() QuizConfigDTO {
	return QuizConfigDTO{
		ExamType:                    string(c.examType),
		Category:                    string(c.category),
		QuestionCount:               c.questionCount,
		TimeLimitSeconds:            c.timeLimitSeconds,
		Difficulty:                  string(c.difficulty),
		EnforceSequentialAnswering:  c.enforceSequentialAnswering,
		RequireAllAnswers:           c.requireAllAnswers,
		AutoCompleteWhenAllAnswered: c.autoCompleteWhenAllAnswered,
		FallbackLimitSeconds:        c.fallbackLimitSeconds,
	}
}

// QuizConfigFromDTO restores a config from persisted state without
// re-validating. Historical data that predates a rule change must keep
// loading, so this path never applies live validation.
func QuizConfigFromDTO(dto QuizConfigDTO) QuizConfig {
	return QuizConfig{
		examType:                    ExamType(dto.ExamType),
		category:                    Category(dto.Category),
		questionCount:               dto.QuestionCount,
		timeLimitSeconds:            dto.TimeLimitSeconds,
		difficulty:                  Difficulty(dto.Difficulty),
		enforceSequentialAnswering:  dto.EnforceSequentialAnswering,
		requireAllAnswers:           dto.RequireAllAnswers,
		autoCompleteWhenAllAnswered: dto.AutoCompleteWhenAllAnswered,
		fallbackLimitSeconds:        dto.FallbackLimitSeconds,
	}
}
