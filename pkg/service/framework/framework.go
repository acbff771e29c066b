// Package framework holds the registration contract each service complies with
// to be orchestrated by the http server.
package framework

type (
	Type        string
	StatusState string
)

const (
	KeyStore  Type = "keystore"
	Challenge Type = "challenge"
	Exchange  Type = "exchange"
	Token     Type = "token"
	Expense   Type = "expense"
	Audit     Type = "audit"

	StatusReady    StatusState = "ready"
	StatusNotReady StatusState = "not_ready"
)

// Status is for services reporting on their status
type Status struct {
	Status  StatusState `json:"status,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (s Status) IsReady() bool {
	return s.Status == StatusReady
}

// Service is an interface each service must comply with to be registered and
// orchestrated by the http server.
type Service interface {
	Type() Type
	Status() Status
}
