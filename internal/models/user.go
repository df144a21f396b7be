package models

import "time"

// User is the minimal shape the sync engine needs. Registration and session
// issuance live outside this service.
type User struct {
	ID        string    `json:"id" firestore:"id"`
	Email     string    `json:"email" firestore:"email"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}
