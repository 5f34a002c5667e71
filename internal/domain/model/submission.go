package model

// Submission is a run handed to the ingest pipeline together with the
// client-chosen id used to recognise retries.
type Submission struct {
	SubmissionID string    `json:"submission_id"`
	Run          RunRecord `json:"run"`
}
