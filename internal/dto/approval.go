package dto

// DecisionRequest carries an approver's verdict for one stage.
type DecisionRequest struct {
	Remarks string `json:"remarks" validate:"max=1000"`
}
