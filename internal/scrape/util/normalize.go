package util

import "strings"

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// CleanCompanyName strips department prefixes and legal suffixes from
// Norwegian company names so downstream lookups can match them.
func CleanCompanyName(raw string) string {
	name := CleanText(raw)

	// Country suffix goes first so the comma split below doesn't eat the name.
	for _, suffix := range []string{", Norway", ", Norge"} {
		if strings.HasSuffix(strings.ToUpper(name), strings.ToUpper(suffix)) {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}

	// Comma-separated names usually end with the actual company
	// ("Avdeling Nord, Acme AS" -> "Acme AS").
	if i := strings.LastIndex(name, ","); i >= 0 {
		name = strings.TrimSpace(name[i+1:])
	}

	for _, suffix := range []string{" HF", " AS", " ASA", " KF", " SF", " IKS"} {
		if strings.HasSuffix(strings.ToUpper(name), strings.ToUpper(suffix)) {
			name = strings.TrimSpace(name[:len(name)-len(suffix)])
		}
	}

	return CleanText(name)
}
