package database

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Task is a unit of paid work posted by a buyer. The JSON field names match
// the wire format of the tasks API.
type Task struct {
	ID              string  `json:"_id"`
	Title           string  `json:"taskTitle"`
	Details         string  `json:"taskDetails"`
	RequiredWorkers int     `json:"requiredWorkers"`
	PayableAmount   float64 `json:"payableAmount"`
	CompletionDate  string  `json:"completationDate"`
	Image           string  `json:"image,omitempty"`
	SubmissionInfo  string  `json:"submissionInfo"`
	BuyerEmail      string  `json:"buyerEmail,omitempty"`
}

// UnmarshalJSON accepts numeric fields encoded either as numbers or as
// strings. Values that cannot be parsed fall back to zero.
func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	var raw struct {
		plain
		RequiredWorkers json.RawMessage `json:"requiredWorkers"`
		PayableAmount   json.RawMessage `json:"payableAmount"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*t = Task(raw.plain)
	t.RequiredWorkers = LooseInt(string(raw.RequiredWorkers))
	t.PayableAmount = LooseNumber(string(raw.PayableAmount))
	return nil
}

// LooseNumber parses a number that may be quoted, blank or null. Anything
// that is not a finite number is 0.
func LooseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "null" {
		return 0
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// LooseInt is LooseNumber truncated to an int. Values outside the int32
// range are 0.
func LooseInt(s string) int {
	f := LooseNumber(s)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

// User is a registered marketplace account.
type User struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stored role names.
const (
	RoleWorker = "worker"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

// ValidRole reports whether role is one of the stored role names.
func ValidRole(role string) bool {
	switch role {
	case RoleWorker, RoleBuyer, RoleAdmin:
		return true
	}
	return false
}
