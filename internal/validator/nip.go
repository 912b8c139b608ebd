package validator

var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// ValidNIP reports whether s is a ten digit NIP with a correct check digit.
// A weighted sum that reduces to 10 can never match and is rejected.
func ValidNIP(s string) bool {
	if len(s) != 10 {
		return false
	}
	digits := make([]int, 10)
	for i := 0; i < 10; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}

	sum := 0
	for i, w := range nipWeights {
		sum += digits[i] * w
	}
	check := sum % 11
	if check == 10 {
		return false
	}
	return check == digits[9]
}
