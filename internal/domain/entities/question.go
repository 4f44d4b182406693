package entities

// QuestionMode selects the direction of a multiple-choice question.
type QuestionMode string

const (
	ModeWordToMeaning QuestionMode = "word_to_meaning"
	ModeMeaningToWord QuestionMode = "meaning_to_word"
)

// IsValid reports whether m is a known question mode.
func (m QuestionMode) IsValid() bool {
	return m == ModeWordToMeaning || m == ModeMeaningToWord
}

// MCQQuestion is an ephemeral four-option question. It is built fresh per
// request and never persisted.
type MCQQuestion struct {
	ItemID       int64
	ItemType     ItemType
	QuestionText string
	Options      [4]string
	CorrectIndex int // 0..3
	Explanation  string
}

// IsCorrect reports whether the selected option index is the correct answer.
func (q *MCQQuestion) IsCorrect(selected int) bool {
	return selected == q.CorrectIndex
}
