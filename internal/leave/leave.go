// Package leave counts working days and tracks annual leave allowances.
package leave

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elite6108/sitesafe/internal/domain"
)

const dateLayout = "2006-01-02"

var (
	ErrNoWorkingDays         = errors.New("requested dates contain no working days")
	ErrInsufficientAllowance = errors.New("request exceeds remaining allowance")
)

// Calendar knows the leave year and which weekdays are bank holidays.
type Calendar struct {
	yearStart    time.Month
	bankHolidays map[string]bool
}

func NewCalendar(yearStartMonth int, bankHolidays []string) (*Calendar, error) {
	if yearStartMonth < 1 || yearStartMonth > 12 {
		return nil, fmt.Errorf("year start month %d out of range", yearStartMonth)
	}
	c := &Calendar{yearStart: time.Month(yearStartMonth), bankHolidays: map[string]bool{}}
	for _, day := range bankHolidays {
		t, err := time.Parse(dateLayout, strings.TrimSpace(day))
		if err != nil {
			return nil, fmt.Errorf("bank holiday %q must use YYYY-MM-DD", day)
		}
		c.bankHolidays[t.Format(dateLayout)] = true
	}
	return c, nil
}

type Request struct {
	StaffID   string `json:"staff_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	HalfDay   bool   `json:"half_day"`
	Reason    string `json:"reason"`
}

// Validate checks the request shape. An empty end date means a single day.
func Validate(req Request) (time.Time, time.Time, error) {
	if strings.TrimSpace(req.StaffID) == "" {
		return time.Time{}, time.Time{}, errors.New("staff member is required")
	}
	start, err := time.Parse(dateLayout, strings.TrimSpace(req.StartDate))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start date must use YYYY-MM-DD")
	}
	end := start
	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		end, err = time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end date must use YYYY-MM-DD")
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end date cannot be before start date")
	}
	if req.HalfDay && !end.Equal(start) {
		return time.Time{}, time.Time{}, errors.New("half day requests must be a single day")
	}
	return start, end, nil
}

func (c *Calendar) IsWorkingDay(day time.Time) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.bankHolidays[day.Format(dateLayout)]
}

// WorkingDays counts weekdays between start and end inclusive, skipping
// bank holidays. A half day counts 0.5.
func (c *Calendar) WorkingDays(start, end time.Time, halfDay bool) float64 {
	days := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			days++
		}
	}
	if halfDay && days > 0 {
		return 0.5
	}
	return days
}

// YearBounds returns the first and last day of the leave year containing day.
func (c *Calendar) YearBounds(day time.Time) (time.Time, time.Time) {
	year := day.Year()
	if day.Month() < c.yearStart {
		year--
	}
	start := time.Date(year, c.yearStart, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, -1)
}

type Summary struct {
	StaffID   string  `json:"staff_id"`
	Name      string  `json:"name"`
	YearStart string  `json:"year_start"`
	YearEnd   string  `json:"year_end"`
	Allowance float64 `json:"allowance"`
	Approved  float64 `json:"approved"`
	Pending   float64 `json:"pending"`
	Remaining float64 `json:"remaining"`
}

// Summarise totals the member's requests that start in the leave year
// containing day. Rejected requests are ignored.
func (c *Calendar) Summarise(member domain.StaffMember, requests []domain.LeaveRequest, day time.Time) Summary {
	yearStart, yearEnd := c.YearBounds(day)
	s := Summary{
		StaffID:   member.ID,
		Name:      member.FullName(),
		YearStart: yearStart.Format(dateLayout),
		YearEnd:   yearEnd.Format(dateLayout),
		Allowance: member.AnnualAllowance,
	}
	for _, r := range requests {
		if r.StaffID != member.ID {
			continue
		}
		start, err := time.Parse(dateLayout, r.StartDate)
		if err != nil || start.Before(yearStart) || start.After(yearEnd) {
			continue
		}
		switch r.Status {
		case domain.LeaveApproved:
			s.Approved += r.Days
		case domain.LeavePending:
			s.Pending += r.Days
		}
	}
	s.Remaining = s.Allowance - s.Approved - s.Pending
	return s
}

// Prepare validates req and turns it into a pending request, rejecting it if
// it has no working days or would take the member past their allowance.
func (c *Calendar) Prepare(req Request, member domain.StaffMember, existing []domain.LeaveRequest) (domain.LeaveRequest, error) {
	start, end, err := Validate(req)
	if err != nil {
		return domain.LeaveRequest{}, err
	}
	days := c.WorkingDays(start, end, req.HalfDay)
	if days == 0 {
		return domain.LeaveRequest{}, ErrNoWorkingDays
	}
	summary := c.Summarise(member, existing, start)
	if days > summary.Remaining {
		return domain.LeaveRequest{}, fmt.Errorf("%w: %.1f requested, %.1f remaining", ErrInsufficientAllowance, days, summary.Remaining)
	}
	return domain.LeaveRequest{
		StaffID:   member.ID,
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
		HalfDay:   req.HalfDay,
		Days:      days,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    domain.LeavePending,
	}, nil
}
