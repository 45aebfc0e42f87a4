package shared

import "fmt"

// DocumentLockKey builds the redis key guarding PDF generation for one order.
func DocumentLockKey(orderID int64) string {
	return fmt.Sprintf("beo:order:%d:document:lock", orderID)
}

// RoleMembersCacheKey builds the redis key caching a role's member set.
func RoleMembersCacheKey(role string) string {
	return fmt.Sprintf("beo:role:%s:members", role)
}
