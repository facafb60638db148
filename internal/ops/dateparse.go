package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/concierge/internal/interval"
	"github.com/user/concierge/internal/vndate"
)

// ParseDate resolves Vietnamese and English relative date phrases into
// concrete dates or datetime ranges.
type ParseDate struct {
	loc *time.Location
	now func() time.Time
}

func NewParseDate(loc *time.Location) *ParseDate {
	return &ParseDate{loc: loc, now: time.Now}
}

func (o *ParseDate) Name() string { return "vn_parse_date" }
func (o *ParseDate) Description() string {
	return "Resolve a Vietnamese or English relative date phrase, e.g. ngày mai, tuần sau, thứ 3 tuần này, into a concrete date or range"
}
func (o *ParseDate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"phrase": {"type": "string", "description": "The date phrase to resolve"},
			"anchor_date": {"type": "string", "description": "Optional YYYY-MM-DD reference date, defaults to today"}
		},
		"required": ["phrase"]
	}`)
}

func (o *ParseDate) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Phrase     string `json:"phrase"`
		AnchorDate string `json:"anchor_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Phrase == "" {
		return "", fmt.Errorf("phrase is required")
	}

	anchor := o.now().In(o.loc)
	if params.AnchorDate != "" {
		day, err := interval.ParseDate(params.AnchorDate, o.loc)
		if err != nil {
			return "", err
		}
		anchor = day
	}

	resolved := vndate.Parse(params.Phrase, anchor, o.loc)
	return marshalResult(map[string]any{
		"phrase":   params.Phrase,
		"resolved": resolved,
	})
}
