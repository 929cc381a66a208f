package util

func StringPtr(s string) *string {
	return &s
}

func FloatPtr(v float64) *float64 {
	return &v
}

func DerefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
