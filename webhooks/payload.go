package webhooks

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/goliatone/go-leadgen/core"
)

const (
	ObjectPage   = "page"
	FieldLeadgen = "leadgen"
)

// Batch is one webhook delivery.
type Batch struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      flexString `json:"id"`
	Time    flexInt    `json:"time"`
	Changes []Change   `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	LeadgenID   flexString `json:"leadgen_id"`
	PageID      flexString `json:"page_id"`
	FormID      flexString `json:"form_id"`
	AdID        flexString `json:"ad_id"`
	CreatedTime flexInt    `json:"created_time"`
}

// ParseBatch decodes a delivery body.
func ParseBatch(body []byte) (Batch, error) {
	var batch Batch
	if len(bytes.TrimSpace(body)) == 0 {
		return batch, core.NewValidationError("body", "webhook body is required")
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return Batch{}, core.NewValidationError("body", "malformed webhook payload: "+err.Error())
	}
	return batch, nil
}

// LeadgenEvents returns the leadgen changes of every entry in delivery order.
// The entry id is used when a change omits its page id.
func LeadgenEvents(batch Batch) []core.LeadgenEvent {
	var events []core.LeadgenEvent
	for _, entry := range batch.Entry {
		for _, change := range entry.Changes {
			if !strings.EqualFold(strings.TrimSpace(change.Field), FieldLeadgen) {
				continue
			}
			pageID := string(change.Value.PageID)
			if pageID == "" {
				pageID = string(entry.ID)
			}
			events = append(events, core.LeadgenEvent{
				LeadgenID:      string(change.Value.LeadgenID),
				PageExternalID: pageID,
				FormID:         string(change.Value.FormID),
				CreatedTime:    int64(change.Value.CreatedTime),
			})
		}
	}
	return events
}

// flexString accepts JSON strings and numbers. Platform ids arrive as either.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(value))
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*s = flexString(number.String())
	return nil
}

// flexInt accepts epoch seconds as a JSON number or numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*n = 0
			return nil
		}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*n = flexInt(value)
	return nil
}
