package orders

import (
	"encoding/json"
	"fmt"
)

// Status is the closed set of order lifecycle states. The numeric value is
// the row id in the order_status table and must never be renumbered without
// a migration: the transition table and opinion eligibility key on it.
type Status int64

const (
	StatusUnconfirmed Status = 1
	StatusCancelled   Status = 2
	StatusConfirmed   Status = 3
	StatusFulfilled   Status = 4
)

var statusNames = map[Status]string{
	StatusUnconfirmed: "UNCONFIRMED",
	StatusCancelled:   "CANCELLED",
	StatusConfirmed:   "CONFIRMED",
	StatusFulfilled:   "FULFILLED",
}

var validNext = map[Status]map[Status]bool{
	StatusUnconfirmed: {StatusCancelled: true, StatusConfirmed: true},
	StatusConfirmed:   {StatusCancelled: true, StatusFulfilled: true},
	StatusCancelled:   {},
	StatusFulfilled:   {},
}

// AllStatuses lists the statuses in id order.
func AllStatuses() []Status {
	return []Status{StatusUnconfirmed, StatusCancelled, StatusConfirmed, StatusFulfilled}
}

// ParseStatus maps a status id onto the closed set.
func ParseStatus(id int64) (Status, bool) {
	s := Status(id)
	return s, s.Valid()
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) ID() int64 { return int64(s) }

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int64(s))
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// AcceptsOpinion reports whether an order in status s may receive an opinion.
func (s Status) AcceptsOpinion() bool {
	return s == StatusConfirmed || s == StatusFulfilled
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type statusJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{ID: int64(s), Name: s.String()})
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v statusJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, ok := ParseStatus(v.ID)
	if !ok {
		return fmt.Errorf("unknown order status id %d", v.ID)
	}
	*s = parsed
	return nil
}
