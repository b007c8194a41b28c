// Package document converts untyped log documents, as exported from the
// legacy document store or posted by clients, into typed log records.
//
// Conversion never fails on field values: missing, unparseable, negative
// or non-finite numbers become zero and unreadable timestamps become
// absent.
package document

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/itayakad/juno-master/internal/domain"
)

// Exercise maps a raw exercise document.
func Exercise(id string, doc map[string]any) domain.ExerciseLog {
	photoURL := String(doc, "photoURL")
	return domain.ExerciseLog{
		ID:             id,
		UserID:         String(doc, "userId"),
		ExerciseType:   String(doc, "exerciseType"),
		LoggedAt:       Timestamp(doc["timestamp"]),
		DurationMin:    Minutes(doc["duration"]),
		CaloriesBurned: Number(doc["caloriesBurned"]),
		Notes:          String(doc, "notes"),
		HasPhoto:       Bool(doc, "hasPhoto") || photoURL != "",
		PhotoURL:       photoURL,
		RecordWorkout:  String(doc, "recordWorkout"),
		RecordQuantity: String(doc, "recordQuantity"),
	}
}

// Meal maps a raw meal document.
func Meal(id string, doc map[string]any) domain.MealLog {
	photoURL := String(doc, "photoURL")
	return domain.MealLog{
		ID:          id,
		UserID:      String(doc, "userId"),
		Description: String(doc, "description"),
		LoggedAt:    Timestamp(doc["timestamp"]),
		Calories:    Number(doc["calories"]),
		Carbs:       Number(doc["carbs"]),
		Fat:         Number(doc["fat"]),
		Protein:     Number(doc["protein"]),
		HasPhoto:    Bool(doc, "hasPhoto") || photoURL != "",
		PhotoURL:    photoURL,
	}
}

// Number coerces v to a non-negative finite float.
func Number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		f = leadingFloat(n)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// maxMinutes bounds a single exercise duration; larger values are treated
// as unreadable.
const maxMinutes = 7 * 24 * 60

// Minutes coerces v to a whole, non-negative duration in minutes. Values
// beyond a week read as zero.
func Minutes(v any) int {
	m := math.Round(Number(v))
	if m > maxMinutes {
		return 0
	}
	return int(m)
}

// ParseAmount reads a manually typed quantity and rounds it to the nearest
// whole number. Unreadable input is zero.
func ParseAmount(raw string) float64 {
	return math.Round(Number(raw))
}

// Timestamp accepts RFC3339 strings, time.Time values, {"seconds": n}
// objects and epoch seconds. Anything else is reported as absent.
func Timestamp(v any) *time.Time {
	var ts time.Time
	switch t := v.(type) {
	case time.Time:
		ts = t
	case *time.Time:
		if t == nil {
			return nil
		}
		ts = *t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		ts = parsed
	case map[string]any:
		raw, ok := t["seconds"]
		if !ok {
			raw, ok = t["_seconds"]
		}
		if !ok {
			return nil
		}
		return epoch(raw)
	case float64, int, int64, json.Number:
		return epoch(t)
	default:
		return nil
	}
	if ts.IsZero() {
		return nil
	}
	return &ts
}

// String returns the trimmed string at key, or "".
func String(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return strings.TrimSpace(s)
}

// Bool returns the bool at key, or false.
func Bool(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func epoch(v any) *time.Time {
	secs := Number(v)
	if secs <= 0 {
		return nil
	}
	whole, frac := math.Modf(secs)
	ts := time.Unix(int64(whole), int64(frac*1e9)).UTC()
	return &ts
}

// leadingFloat parses the longest numeric prefix of s, so "12g" reads as 12.
func leadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s[:numericPrefix(s)], 64)
	if err != nil {
		return 0
	}
	return f
}

// numericPrefix returns the length of the longest prefix of s shaped like
// [+-]digits[.digits][e[+-]digits].
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for ; j < len(s) && isDigit(s[j]); j++ {
			frac++
		}
		if digits+frac > 0 {
			i, digits = j, digits+frac
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		start := j
		for ; j < len(s) && isDigit(s[j]); j++ {
		}
		if j > start {
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Export is a snapshot of one user's logs.
type Export struct {
	UserID    string
	Exercises []domain.ExerciseLog
	Meals     []domain.MealLog
}

type rawExport struct {
	UserID    string           `json:"userId"`
	Exercises []map[string]any `json:"exercises"`
	Meals     []map[string]any `json:"meals"`
}

// ReadExport decodes a JSON export of the form
// {"userId": "...", "exercises": [{"id": "...", ...}], "meals": [...]}.
// Document order is preserved.
func ReadExport(r io.Reader) (Export, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw rawExport
	if err := dec.Decode(&raw); err != nil {
		return Export{}, fmt.Errorf("decode export: %w", err)
	}

	out := Export{
		UserID:    strings.TrimSpace(raw.UserID),
		Exercises: make([]domain.ExerciseLog, 0, len(raw.Exercises)),
		Meals:     make([]domain.MealLog, 0, len(raw.Meals)),
	}
	for _, doc := range raw.Exercises {
		entry := Exercise(idOf(doc), doc)
		if entry.UserID == "" {
			entry.UserID = out.UserID
		}
		out.Exercises = append(out.Exercises, entry)
	}
	for _, doc := range raw.Meals {
		entry := Meal(idOf(doc), doc)
		if entry.UserID == "" {
			entry.UserID = out.UserID
		}
		out.Meals = append(out.Meals, entry)
	}
	return out, nil
}

func idOf(doc map[string]any) string {
	switch id := doc["id"].(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	}
	return ""
}
