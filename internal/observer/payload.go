package observer

import (
	"fmt"
	"strconv"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/entity"
)

// renderPayload renders event data for a log line or journal row.
// Entities, attribute maps and strings become canonical JSON; anything the
// canonical encoder refuses is quoted as its %v form.
func renderPayload(data any) string {
	if data == nil {
		return "null"
	}
	out, err := attr.MarshalCanonical(data)
	if err != nil {
		return strconv.Quote(fmt.Sprint(data))
	}
	return string(out)
}

// entityID extracts the entity identifier from an event payload, if any.
func entityID(data any) string {
	if e, ok := data.(entity.Entity); ok {
		return e.ID
	}
	return ""
}
