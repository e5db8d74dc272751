package model

import (
	"strings"
	"time"
)

// DayHours are the opening hours for one weekday. Close is exclusive.
type DayHours struct {
	Open   TimeOfDay `json:"open" yaml:"open"`
	Close  TimeOfDay `json:"close" yaml:"close"`
	Closed bool      `json:"closed" yaml:"closed"`
}

type Service struct {
	Name            string  `json:"name" yaml:"name"`
	DurationMinutes int     `json:"duration" yaml:"duration"`
	Price           float64 `json:"price" yaml:"price"`
}

// ServiceSnapshot is the copy of a catalog Service stored on an appointment.
type ServiceSnapshot struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration"`
	Price           float64 `json:"price"`
}

func (s Service) Snapshot() ServiceSnapshot {
	return ServiceSnapshot{Name: s.Name, DurationMinutes: s.DurationMinutes, Price: s.Price}
}

type Business struct {
	ID                 string
	Name               string
	Timezone           string
	Address            string
	WorkingHours       [7]*DayHours // indexed by time.Weekday; nil means no hours configured
	Services           []Service
	BufferTimeMinutes  int
	AdvanceBookingDays int
	CancellationHours  int
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (b Business) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HoursOn returns the working hours for d, or false when the business is
// closed or has no usable hours that day.
func (b Business) HoursOn(d Date) (DayHours, bool) {
	h := b.WorkingHours[d.Weekday()]
	if h == nil || h.Closed || h.Close <= h.Open {
		return DayHours{}, false
	}
	return *h, true
}

// ServiceByName matches case-insensitively, ignoring surrounding space.
func (b Business) ServiceByName(name string) (Service, bool) {
	name = strings.TrimSpace(name)
	for _, s := range b.Services {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Service{}, false
}

func (b Business) ServiceNames() []string {
	names := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		names = append(names, s.Name)
	}
	return names
}

// FAQ is a knowledge snippet a business publishes for general questions.
type FAQ struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}
