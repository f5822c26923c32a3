package domain

// ConsentStatus enumerates consent grant states. Grants are owned by the
// consent collaborator; this service only ever reads them.
type ConsentStatus string

const (
	ConsentStatusPending  ConsentStatus = "PENDING"
	ConsentStatusApproved ConsentStatus = "APPROVED"
	ConsentStatusRejected ConsentStatus = "REJECTED"
)
