package cls

import "strings"

// format used for {EXPIRY_DATE}, eg "14 Sep 2026"
const ExpiryDateFormat = "02 Jan 2006"

// fill a reminder template with license fields. Recognised placeholders
// are {LICENSE_TYPE}, {LICENSE_NAME}, {EXPIRY_DATE} and {CARD_LAST_4}
// ("N/A" when the license has no card digits on record). Anything else
// in braces is left verbatim, so rendering is idempotent.
func RenderTemplate(template string, lic License) string {
	cardDigits := lic.CardDigits
	if cardDigits == "" {
		cardDigits = "N/A"
	}

	rendered := template
	rendered = strings.ReplaceAll(rendered, "{LICENSE_TYPE}", lic.Type)
	rendered = strings.ReplaceAll(rendered, "{LICENSE_NAME}", lic.Name)
	rendered = strings.ReplaceAll(rendered, "{EXPIRY_DATE}", lic.RenewalDate.Format(ExpiryDateFormat))
	rendered = strings.ReplaceAll(rendered, "{CARD_LAST_4}", cardDigits)

	return rendered
}
