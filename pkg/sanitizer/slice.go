package sanitizer

// NormalizeStringSlice applies normalizer to every item and keeps the first
// occurrence of each non-empty result, in input order.
func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)

		if normalized == "" {
			continue
		}

		if seen[normalized] {
			continue
		}

		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

func NormalizeUsers(users []string) []string {
	return NormalizeStringSlice(users, NormalizeID)
}
