package extraction

import "strings"

// DefaultPrompt is the instruction sent with every card image.
var DefaultPrompt = strings.TrimSpace(`
You read photographs of business cards.

Return ONLY a single plain JSON object. Do not wrap it in markdown code fences and
do not add any text before or after it.

Use these keys:
- name (string)
- company_name (string)
- job_title (string)
- phone (string, or an object with any of: mobile, office, work, fax)
- email (string)
- address (string)
- website (string)

Add any other information printed on the card as extra string keys
(for example "additional_info"). If a field is not on the card, omit it.
`)
