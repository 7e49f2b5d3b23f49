package rab

import "slices"

// transitions lists every legal status change of a budget item.
var transitions = map[string][]string{
	StatusDraft:           {StatusUnderReview, StatusPendingApproval, StatusApproved, StatusRejected},
	StatusUnderReview:     {StatusReviewed, StatusPendingApproval, StatusApproved, StatusRejected},
	StatusPendingApproval: {StatusUnderReview, StatusApproved, StatusRejected},
	StatusReviewed:        {StatusPendingApproval, StatusApproved, StatusRejected},
	StatusApproved:        {StatusRejected},
	StatusRejected:        {StatusDraft},
}

// CanTransition reports whether an item may move from one status to another.
func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// initialStatuses are the statuses an item may be created with.
var initialStatuses = []string{StatusDraft, StatusUnderReview, StatusPendingApproval}
