package domain

// OutcomeStatus enumerates the terminal states of an answer submission.
// These are expected results, not errors.
type OutcomeStatus string

const (
	OutcomeNoQuestion      OutcomeStatus = "no_question"
	OutcomeAlreadySolved   OutcomeStatus = "already_solved"
	OutcomeAlreadyAnswered OutcomeStatus = "already_answered"
	OutcomeCorrect         OutcomeStatus = "correct"
	OutcomeIncorrect       OutcomeStatus = "incorrect"
)

// Outcome is what the adjudicator hands back for presentation. Only the fields
// relevant to the status are populated: AlreadySolved carries the winner,
// Incorrect reveals the correct option for learning feedback.
type Outcome struct {
	Status        OutcomeStatus `json:"status"`
	Question      *Question     `json:"question,omitempty"`
	Choice        string        `json:"choice"`
	OptionText    string        `json:"optionText,omitempty"`
	CorrectLetter string        `json:"correctLetter,omitempty"`
	CorrectText   string        `json:"correctText,omitempty"`
	Explanation   string        `json:"explanation,omitempty"`
	SolverID      int64         `json:"solverId,omitempty"`
	Difficulty    string        `json:"difficulty,omitempty"`
	ModelName     string        `json:"modelName,omitempty"`
}
