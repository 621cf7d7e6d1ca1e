package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftworks/mailtriage/internal/enum"
)

func newTestRouter() Router {
	lead := NewLeadHandler(new(mockCRM), new(mockClassifier), testLogger())
	expense := NewExpenseHandler(new(mockCRM), new(mockInvoiceExtractor), new(mockAttachmentRepo), new(mockStorage), testLogger())
	return NewRouter(lead, expense)
}

func TestRouter_EveryTagHasExactlyOneOwner(t *testing.T) {
	router := newTestRouter()

	leadTags := []enum.EmailClassification{
		enum.ClassificationNewLead,
		enum.ClassificationClientMessage,
		enum.ClassificationStaffMessage,
		enum.ClassificationMeetingConfirmed,
		enum.ClassificationQuoteSent,
	}
	for _, tag := range leadTags {
		handler := router.Route(tag)
		require.NotNil(t, handler, "no handler for %s", tag)
		assert.IsType(t, &LeadHandler{}, handler, "wrong handler for %s", tag)
	}

	handler := router.Route(enum.ClassificationSupplierInvoice)
	require.NotNil(t, handler)
	assert.IsType(t, &ExpenseHandler{}, handler)
}

func TestRouter_IrrelevantHasNoHandler(t *testing.T) {
	router := newTestRouter()

	assert.Nil(t, router.Route(enum.ClassificationIrrelevant))
}

func TestRouter_UnknownTagHasNoHandler(t *testing.T) {
	router := newTestRouter()

	assert.Nil(t, router.Route(enum.EmailClassification("something_else")))
}

func TestRouter_EmptyRouterRoutesNothing(t *testing.T) {
	router := NewRouter()

	assert.Nil(t, router.Route(enum.ClassificationNewLead))
}
