package sanitizer

const (
	cpfLength  = 11
	cnpjLength = 14
)

// NormalizeTaxID returns the digits of a valid CPF or CNPJ, or "".
func NormalizeTaxID(value string) string {
	digits := Digits(value)
	if validCPFDigits(digits) || validCNPJDigits(digits) {
		return digits
	}
	return ""
}

func ValidTaxID(value string) bool {
	return NormalizeTaxID(value) != ""
}

func ValidCPF(value string) bool {
	return validCPFDigits(Digits(value))
}

func ValidCNPJ(value string) bool {
	return validCNPJDigits(Digits(value))
}

func validCPFDigits(d string) bool {
	if len(d) != cpfLength || allSame(d) {
		return false
	}
	for _, pos := range []int{9, 10} {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += digit(d[i]) * (pos + 1 - i)
		}
		check := 11 - sum%11
		if check >= 10 {
			check = 0
		}
		if check != digit(d[pos]) {
			return false
		}
	}
	return true
}

func validCNPJDigits(d string) bool {
	if len(d) != cnpjLength || allSame(d) {
		return false
	}
	for _, pos := range []int{12, 13} {
		sum := 0
		weight := pos - 7
		for i := 0; i < pos; i++ {
			sum += digit(d[i]) * weight
			weight--
			if weight < 2 {
				weight = 9
			}
		}
		check := 0
		if sum%11 >= 2 {
			check = 11 - sum%11
		}
		if check != digit(d[pos]) {
			return false
		}
	}
	return true
}

func allSame(d string) bool {
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}

func digit(b byte) int {
	return int(b - '0')
}
