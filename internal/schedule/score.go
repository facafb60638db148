package schedule

import (
	"strings"
	"time"
)

// Activity classes group the free-form activity strings users send into
// the buckets the scoring tables know about.
type Activity string

const (
	ActivityMeeting  Activity = "meeting"
	ActivityFocus    Activity = "focus"
	ActivityCreative Activity = "creative"
	ActivityAdmin    Activity = "admin"
	ActivityGeneral  Activity = "general"
)

var activityKeywords = map[string]Activity{
	"meeting":        ActivityMeeting,
	"họp":            ActivityMeeting,
	"cuộc họp":       ActivityMeeting,
	"team meeting":   ActivityMeeting,
	"client meeting": ActivityMeeting,
	"focus":          ActivityFocus,
	"focus work":     ActivityFocus,
	"deep work":      ActivityFocus,
	"coding":         ActivityFocus,
	"writing":        ActivityFocus,
	"analysis":       ActivityFocus,
	"creative":       ActivityCreative,
	"creative work":  ActivityCreative,
	"brainstorming":  ActivityCreative,
	"planning":       ActivityCreative,
	"design":         ActivityCreative,
	"admin":          ActivityAdmin,
	"email":          ActivityAdmin,
	"routine":        ActivityAdmin,
	"administrative": ActivityAdmin,
}

// ClassifyActivity maps an activity string to its class. Unknown
// activities fall back to ActivityGeneral.
func ClassifyActivity(s string) Activity {
	if a, ok := activityKeywords[strings.ToLower(strings.TrimSpace(s))]; ok {
		return a
	}
	return ActivityGeneral
}

type window struct {
	startHour, startMin int
	endHour, endMin     int
}

// preferredWindows are the daily windows worth scanning per activity
// class. General activities use the meeting windows.
func preferredWindows(a Activity) []window {
	switch a {
	case ActivityFocus:
		return []window{{9, 0, 11, 0}, {14, 0, 16, 0}}
	case ActivityCreative:
		return []window{{10, 0, 12, 0}, {15, 0, 17, 0}}
	case ActivityAdmin:
		return []window{{9, 0, 10, 0}, {16, 0, 17, 0}}
	default:
		return []window{{10, 0, 11, 30}, {13, 30, 15, 0}}
	}
}

// skipsWeekends reports whether the class only makes sense on workdays.
func skipsWeekends(a Activity) bool {
	switch a {
	case ActivityMeeting, ActivityFocus, ActivityAdmin:
		return true
	}
	return false
}

// scoreSlot rates a candidate start time from 1 to 10.
func scoreSlot(start time.Time, a Activity) int {
	hour := start.Hour()
	score := 5

	switch {
	case hour >= 9 && hour <= 11:
		score += 3
	case hour >= 14 && hour <= 16:
		score += 2
	case hour < 9 || hour > 17:
		score -= 2
	}

	switch a {
	case ActivityMeeting:
		if (hour >= 10 && hour <= 11) || (hour >= 13 && hour <= 15) {
			score += 2
		}
	case ActivityFocus:
		if hour >= 9 && hour <= 11 {
			score += 3
		}
	case ActivityCreative:
		if hour >= 10 && hour <= 12 {
			score += 2
		}
	}

	wd := start.Weekday()
	if wd >= time.Monday && wd <= time.Friday {
		score++
	}

	if score > 10 {
		return 10
	}
	if score < 1 {
		return 1
	}
	return score
}

// slotReasoning explains a score in a sentence.
func slotReasoning(start time.Time, a Activity) string {
	hour := start.Hour()

	switch a {
	case ActivityMeeting:
		switch {
		case hour >= 10 && hour <= 11:
			return "Peak meeting time, everyone is alert and focused"
		case hour >= 13 && hour <= 15:
			return "Good afternoon meeting time, after lunch energy boost"
		default:
			return "Decent time for meetings, though not optimal"
		}
	case ActivityFocus:
		switch {
		case hour >= 9 && hour <= 11:
			return "Peak cognitive performance, ideal for deep work"
		case hour >= 14 && hour <= 16:
			return "Good focus time, afternoon productivity peak"
		default:
			return "Decent time for focused work"
		}
	case ActivityCreative:
		switch {
		case hour >= 10 && hour <= 12:
			return "Creative peak time, when imagination is most active"
		case hour >= 15 && hour <= 17:
			return "Good creative time, afternoon inspiration"
		default:
			return "Decent time for creative work"
		}
	default:
		switch {
		case hour >= 9 && hour <= 11:
			return "Peak productivity hours, optimal for most tasks"
		case hour >= 14 && hour <= 16:
			return "Good productivity time, afternoon energy"
		default:
			return "Decent time for work tasks"
		}
	}
}
