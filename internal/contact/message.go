package contact

import "time"

type Message struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	ClientKey string    `json:"-"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Submission is the public contact form body.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}
