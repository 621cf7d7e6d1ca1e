package handlers

import (
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
)

// Router dispatches a classified email to the first handler claiming its
// classification. Registration order is the priority order.
type Router struct {
	handlers []interfaces.Handler
}

func NewRouter(handlers ...interfaces.Handler) Router {
	return Router{handlers: handlers}
}

// Route returns the handler for a classification, or nil when no handler
// claims it.
func (r Router) Route(classification enum.EmailClassification) interfaces.Handler {
	for _, h := range r.handlers {
		if h.CanHandle(classification) {
			return h
		}
	}
	return nil
}
