package submission

// transitions lists the allowed target states for each state.
var transitions = map[Status][]Status{
	StatusNew:        {StatusProcessing},
	StatusProcessing: {StatusDelivered, StatusFailed},
	StatusDelivered:  {StatusArchived},
	StatusFailed:     {StatusProcessing, StatusArchived},
	StatusArchived:   nil,
}

// CanTransition reports whether a submission may move from one state to
// another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *FormSubmission) moveTo(to Status, reason *string) error {
	if !CanTransition(s.status, to) {
		return &TransitionError{From: s.status, To: to}
	}
	s.status = to
	s.failureReason = reason
	return nil
}

// MarkProcessing moves New or Failed to Processing and clears any failure
// reason.
func (s *FormSubmission) MarkProcessing() error {
	return s.moveTo(StatusProcessing, nil)
}

// MarkDelivered moves Processing to Delivered.
func (s *FormSubmission) MarkDelivered() error {
	return s.moveTo(StatusDelivered, nil)
}

// MarkFailed moves Processing to Failed and records reason.
func (s *FormSubmission) MarkFailed(reason string) error {
	return s.moveTo(StatusFailed, &reason)
}

// Archive moves Delivered or Failed to the terminal Archived state.
func (s *FormSubmission) Archive() error {
	return s.moveTo(StatusArchived, nil)
}
