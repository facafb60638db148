// Package attribution labels completed turns with the capability group
// that produced the answer. Best-effort, for observability only.
package attribution

import "strings"

// DefaultTag is used when neither operation names nor answer keywords
// identify a capability.
const DefaultTag = "concierge"

// Capability tags.
const (
	TagCalendar = "calendar"
	TagFinance  = "finance"
	TagNotes    = "notes"
	TagSearch   = "search"
)

// opTags maps operation-name fragments to capability tags. Checked in
// order; first match wins.
var opTags = []struct {
	fragments []string
	tag       string
}{
	{[]string{"expense", "spending"}, TagFinance},
	{[]string{"event", "calendar", "conflict", "availability", "optimal_time", "alternative_times"}, TagCalendar},
	{[]string{"search", "read_url"}, TagSearch},
	{[]string{"note"}, TagNotes},
}

// answerKeywords maps answer-text keywords to capability tags, used
// only when no operation was invoked. Vietnamese phrases cover the
// service's primary audience.
var answerKeywords = []struct {
	keywords []string
	tag      string
}{
	{[]string{"chi tiêu", "expense", "vnd", "tổng chi tiêu", "lịch sử chi tiêu"}, TagFinance},
	{[]string{"lịch", "sự kiện", "event", "calendar", "thời gian"}, TagCalendar},
	{[]string{"tìm kiếm web", "kết quả tìm kiếm", "nguồn tin"}, TagSearch},
	{[]string{"ghi chú", "note", "đã lưu ghi chú"}, TagNotes},
}

// Classify returns the capability tag for a completed turn. Operation
// names invoked during the turn take precedence; when none were used
// the final answer text is scanned for capability keywords.
func Classify(opsUsed []string, answer string) string {
	for _, op := range opsUsed {
		lower := strings.ToLower(op)
		for _, entry := range opTags {
			for _, frag := range entry.fragments {
				if strings.Contains(lower, frag) {
					return entry.tag
				}
			}
		}
	}

	if len(opsUsed) == 0 {
		lower := strings.ToLower(answer)
		for _, entry := range answerKeywords {
			for _, kw := range entry.keywords {
				if strings.Contains(lower, kw) {
					return entry.tag
				}
			}
		}
	}

	return DefaultTag
}
