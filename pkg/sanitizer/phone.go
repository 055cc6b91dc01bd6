package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is applied to numbers written without a country code.
const DefaultRegion = "ID"

func NormalizePhone(phone string) string {
	return NormalizePhoneIn(phone, DefaultRegion)
}

func NormalizePhoneIn(phone, region string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	parsedNumber, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return ""
	}
	return phonenumbers.Format(parsedNumber, phonenumbers.E164)
}
