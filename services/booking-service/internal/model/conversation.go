package model

import "time"

type Step string

const (
	StepGreeting       Step = "greeting"
	StepBookingService Step = "booking_service"
	StepBookingDate    Step = "booking_date"
	StepBookingTime    Step = "booking_time"
	StepBookingConfirm Step = "booking_confirm"
	StepCompleted      Step = "completed"
)

// InBooking reports whether a booking is being slot-filled.
func (s Step) InBooking() bool {
	switch s {
	case StepBookingService, StepBookingDate, StepBookingTime, StepBookingConfirm:
		return true
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingBooking is filled first-write-wins across turns.
type PendingBooking struct {
	Service *ServiceSnapshot `json:"service,omitempty"`
	Date    *Date            `json:"date,omitempty"`
	Time    *TimeOfDay       `json:"time,omitempty"`
	Notes   string           `json:"notes,omitempty"`
}

func (p PendingBooking) Empty() bool {
	return p.Service == nil && p.Date == nil && p.Time == nil && p.Notes == ""
}

type PendingCancellation struct {
	AppointmentID string `json:"appointmentId"`
}

type PendingReschedule struct {
	AppointmentID string     `json:"appointmentId"`
	NewDate       *Date      `json:"newDate,omitempty"`
	NewTime       *TimeOfDay `json:"newTime,omitempty"`
}

type Action string

const (
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
)

// PendingSelection holds the numbered list shown when a customer has several
// upcoming appointments; index i (1-based) refers to AppointmentIDs[i-1].
type PendingSelection struct {
	Action         Action   `json:"action"`
	AppointmentIDs []string `json:"appointmentIds"`
}

type ConversationState struct {
	CustomerPhone       string               `json:"customerPhone"`
	Step                Step                 `json:"step"`
	PendingBooking      PendingBooking       `json:"pendingBooking"`
	PendingCancellation *PendingCancellation `json:"pendingCancellation,omitempty"`
	PendingReschedule   *PendingReschedule   `json:"pendingReschedule,omitempty"`
	PendingSelection    *PendingSelection    `json:"pendingSelection,omitempty"`
	RecentMessages      []Message            `json:"recentMessages"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

func NewConversationState(phone string) *ConversationState {
	return &ConversationState{
		CustomerPhone: phone,
		Step:          StepGreeting,
	}
}

// Append records a message and keeps only the last limit entries.
func (s *ConversationState) Append(role Role, content string, at time.Time, limit int) {
	s.RecentMessages = append(s.RecentMessages, Message{Role: role, Content: content, Timestamp: at})
	if limit > 0 && len(s.RecentMessages) > limit {
		s.RecentMessages = append([]Message(nil), s.RecentMessages[len(s.RecentMessages)-limit:]...)
	}
}

// HasSideChannel reports whether a cancel/reschedule flow is awaiting input.
func (s *ConversationState) HasSideChannel() bool {
	return s.PendingCancellation != nil || s.PendingReschedule != nil || s.PendingSelection != nil
}

func (s *ConversationState) ClearSideChannels() {
	s.PendingCancellation = nil
	s.PendingReschedule = nil
	s.PendingSelection = nil
}

// Clone deep-copies the state so cached values are never shared between turns.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	c := *s
	c.PendingBooking = clonePending(s.PendingBooking)
	if s.PendingCancellation != nil {
		pc := *s.PendingCancellation
		c.PendingCancellation = &pc
	}
	if s.PendingReschedule != nil {
		pr := *s.PendingReschedule
		pr.NewDate = clonePtr(s.PendingReschedule.NewDate)
		pr.NewTime = clonePtr(s.PendingReschedule.NewTime)
		c.PendingReschedule = &pr
	}
	if s.PendingSelection != nil {
		ps := *s.PendingSelection
		ps.AppointmentIDs = append([]string(nil), s.PendingSelection.AppointmentIDs...)
		c.PendingSelection = &ps
	}
	c.RecentMessages = append([]Message(nil), s.RecentMessages...)
	return &c
}

func clonePending(p PendingBooking) PendingBooking {
	return PendingBooking{
		Service: clonePtr(p.Service),
		Date:    clonePtr(p.Date),
		Time:    clonePtr(p.Time),
		Notes:   p.Notes,
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
