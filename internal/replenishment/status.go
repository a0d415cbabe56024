package replenishment

import (
	"fmt"
	"time"
)

// DateLayout renders dates in status messages.
const DateLayout = time.RFC3339

// StatusDetail is the status-specific payload of an Assessment. It is one of
// OnSchedule, DueSoon, Delayed or Delivered.
type StatusDetail interface {
	statusDetail()
}

// OnSchedule means the expected date has not passed yet.
type OnSchedule struct {
	ExpectedBy time.Time
}

// DueSoon means the expected date passed less than a full day ago.
type DueSoon struct {
	ExpectedBy time.Time
}

// Delayed means the expected date passed at least one full day ago.
type Delayed struct {
	ExpectedBy  time.Time
	DaysOverdue int
}

// Delivered means the PO was recorded as delivered.
type Delivered struct {
	DeliveredAt *time.Time
}

func (OnSchedule) statusDetail() {}
func (DueSoon) statusDetail()    {}
func (Delayed) statusDetail()    {}
func (Delivered) statusDetail()  {}

// Assessment is the effective status of a PO at a point in time.
type Assessment struct {
	Status  POStatus
	Message string
	Detail  StatusDetail
}

// DaysOverdue returns the overdue day count when the PO is delayed.
func (a Assessment) DaysOverdue() (int, bool) {
	d, ok := a.Detail.(Delayed)
	if !ok {
		return 0, false
	}
	return d.DaysOverdue, true
}

// EffectiveStatus recomputes the status of po as observed at now. It never
// mutates po.
func EffectiveStatus(po PurchaseOrder, now time.Time) (Assessment, error) {
	expected := po.ExpectedDeliveryDate
	if expected.IsZero() {
		return Assessment{}, fmt.Errorf("%w: PO %s has no valid expected delivery date", ErrDataQuality, po.ID)
	}
	if po.Status == POStatusDelivered {
		at := "unknown date"
		if po.ActualDeliveryDate != nil {
			at = po.ActualDeliveryDate.Format(DateLayout)
		}
		return Assessment{
			Status:  POStatusDelivered,
			Message: fmt.Sprintf("PO was delivered on %s.", at),
			Detail:  Delivered{DeliveredAt: po.ActualDeliveryDate},
		}, nil
	}
	if expected.Before(now) {
		days := wholeDays(now.Sub(expected))
		if days > 0 {
			return Assessment{
				Status:  POStatusDelayed,
				Message: fmt.Sprintf("PO is delayed by %d days. Expected by %s.", days, expected.Format(DateLayout)),
				Detail:  Delayed{ExpectedBy: expected, DaysOverdue: days},
			}, nil
		}
		return Assessment{
			Status:  po.Status,
			Message: "PO expected today or very soon.",
			Detail:  DueSoon{ExpectedBy: expected},
		}, nil
	}
	return Assessment{
		Status:  po.Status,
		Message: fmt.Sprintf("PO is currently %s. Expected by %s.", po.Status, expected.Format(DateLayout)),
		Detail:  OnSchedule{ExpectedBy: expected},
	}, nil
}

func wholeDays(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
