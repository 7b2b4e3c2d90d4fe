// Package types holds identifiers shared across botfoundry packages.
package types

import "strconv"

// UserID is the stable Telegram identifier of a platform user. It keys
// every per-user map in the system (tenants, referrals, instructions)
// and is never reused across distinct real users.
type UserID int64

func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}
