package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/spendgate/spendgate/pkg/server/framework"
	"github.com/spendgate/spendgate/pkg/service/audit"
	svcframework "github.com/spendgate/spendgate/pkg/service/framework"
)

type AuditRouter struct {
	service *audit.Service
}

func NewAuditRouter(s svcframework.Service) (*AuditRouter, error) {
	if s == nil {
		return nil, errors.New("service cannot be nil")
	}
	service, ok := s.(*audit.Service)
	if !ok {
		return nil, fmt.Errorf("could not create audit router with service type: %s", s.Type())
	}
	return &AuditRouter{service: service}, nil
}

type ListAuditEntriesResponse struct {
	Entries []audit.Entry `json:"entries"`
}

// ListAuditEntries returns the decision trail in timestamp order.
func (ar AuditRouter) ListAuditEntries(c *gin.Context) error {
	entries, err := ar.service.List(c)
	if err != nil {
		return framework.LoggingRespondErrWithMsg(c, err, "could not list audit entries", http.StatusInternalServerError)
	}
	framework.Respond(c, ListAuditEntriesResponse{Entries: entries}, http.StatusOK)
	return nil
}
