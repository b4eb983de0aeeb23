package logging

import "strings"

// MaskPhone hides all but the last three characters of a phone number so
// second factors never appear in logs in full.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
