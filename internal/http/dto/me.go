package dto

import "time"

// ConsentResponse es la vista pública de un consent. Los revocados salen con
// status "revoked" y sin scopes.
type ConsentResponse struct {
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"sub"`
	Scopes    []string  `json:"scopes"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListConsentsResponse struct {
	Consents []ConsentResponse `json:"consents"`
}

type ConsentLogResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Messages  []string  `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

type ListConsentLogsResponse struct {
	Logs []ConsentLogResponse `json:"logs"`
}
