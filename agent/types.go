package agent

// Request is one user turn.
type Request struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type Response struct {
	Reply string `json:"reply"`
}

// Outcome labels how a turn ended.
type Outcome string

const (
	OutcomePrompt    Outcome = "prompt"
	OutcomeRetry     Outcome = "retry"
	OutcomeFollowUp  Outcome = "follow_up"
	OutcomeAnswer    Outcome = "answer"
	OutcomeDateError Outcome = "date_error"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)
