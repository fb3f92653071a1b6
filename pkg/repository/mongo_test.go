package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/storefront/pkg/notify"
)

func TestAuditLogRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := notify.Event{
		Type:     notify.EventOrderPaid,
		EntityID: "o1",
		OwnerID:  "u1",
		Data:     map[string]interface{}{"provider": "paypal"},
		At:       at,
	}

	l := auditLogOf(e)
	assert.Equal(t, auditService, l.Service)
	assert.Equal(t, notify.EventOrderPaid, l.Action)
	assert.Equal(t, e, l.event())

	l = auditLogOf(notify.Event{Type: notify.EventCartMerged})
	assert.False(t, l.CreatedAt.IsZero())
}
