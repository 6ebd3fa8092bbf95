// Package access defines the typed access grants a lock honours and the
// directory locks query to find them.
//
// An AccessType fixes which schedule fields a grant may carry:
//
//	Admin, Owner   no schedule fields
//	Tenant         valid_from, valid_until
//	PeriodicUser   valid_from, valid_until, weekdays
//	OneTimeUser    one_day
//
// Authorizations live at authorizations/{MAC}/{phoneId}. The directory only
// returns them; whether "now" falls inside the schedule is decided by the
// lock, which holds the trusted clock.
package access
