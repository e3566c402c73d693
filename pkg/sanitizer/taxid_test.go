package sanitizer

import "testing"

func TestValidCPF(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"529.982.247-25", true},
		{"52998224725", true},
		{"111.444.777-35", true},
		{"529.982.247-24", false},
		{"111.111.111-11", false},
		{"5299822472", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidCPF(tt.input); got != tt.want {
				t.Errorf("ValidCPF(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidCNPJ(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"11.222.333/0001-81", true},
		{"04252011000110", true},
		{"11.222.333/0001-82", false},
		{"00.000.000/0000-00", false},
		{"1122233300018", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidCNPJ(tt.input); got != tt.want {
				t.Errorf("ValidCNPJ(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTaxID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formatted cpf", "529.982.247-25", "52998224725"},
		{"formatted cnpj", "11.222.333/0001-81", "11222333000181"},
		{"invalid", "123.456.789-00", ""},
		{"cpf length but cnpj rules", "11222333000181", "11222333000181"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTaxID(tt.input); got != tt.want {
				t.Errorf("NormalizeTaxID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
