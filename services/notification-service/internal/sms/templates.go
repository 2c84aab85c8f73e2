package sms

import (
	"fmt"
	"time"
)

const signature = "- WestPoint Clinic"

func fmtDate(t time.Time) string { return t.Format("Jan 2, 2006") }
func fmtTime(t time.Time) string { return t.Format("3:04 PM") }

func BookingPending(patientName, doctorName string, start time.Time) string {
	return fmt.Sprintf(
		"Hi %s! Your appointment with Dr. %s is PENDING approval.\nDate: %s\nTime: %s\nWe'll notify you once confirmed.\n%s",
		patientName, doctorName, fmtDate(start), fmtTime(start), signature)
}

func Approved(patientName, doctorName string, start time.Time) string {
	return fmt.Sprintf(
		"CONFIRMED! %s, your appointment with Dr. %s is approved.\nDate: %s\nTime: %s\nPlease arrive 15 mins early.\n%s",
		patientName, doctorName, fmtDate(start), fmtTime(start), signature)
}

func Rejected(patientName string) string {
	return fmt.Sprintf(
		"Sorry %s, your appointment request could not be confirmed. Please call us to reschedule or book another time slot.\n%s",
		patientName, signature)
}

func Rescheduled(patientName, doctorName string, newStart time.Time) string {
	return fmt.Sprintf(
		"RESCHEDULED! %s, your appointment with Dr. %s has been moved.\nNEW: %s at %s\nWe'll confirm the new time shortly.\n%s",
		patientName, doctorName, fmtDate(newStart), fmtTime(newStart), signature)
}

func Cancelled(patientName string) string {
	return fmt.Sprintf(
		"CANCELLED! %s, your appointment has been cancelled. Please visit our website or call to rebook.\n%s",
		patientName, signature)
}

func Reminder(patientName, doctorName string, start time.Time, now time.Time) string {
	daysAway := int(dateOnly(start).Sub(dateOnly(now)).Hours() / 24)
	switch {
	case daysAway <= 0:
		return fmt.Sprintf(
			"TODAY! %s, your appointment with Dr. %s is at %s.\nPlease arrive 15 mins early.\n%s",
			patientName, doctorName, fmtTime(start), signature)
	case daysAway == 1:
		return fmt.Sprintf(
			"REMINDER: %s, your appointment with Dr. %s is TOMORROW!\nDate: %s\nTime: %s\nSee you soon!\n%s",
			patientName, doctorName, fmtDate(start), fmtTime(start), signature)
	default:
		return fmt.Sprintf(
			"REMINDER: %s, you have an appointment with Dr. %s in %d DAYS.\nDate: %s\nTime: %s\n%s",
			patientName, doctorName, daysAway, fmtDate(start), fmtTime(start), signature)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
