package template

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

func TestChangeCase_SpecExamples(t *testing.T) {
	cases := []struct {
		c        Case
		in, want string
	}{
		{CaseSnake, "hello world", "hello_world"},
		{CaseKebab, "hello world", "hello-world"},
		{CaseCamel, "hello world", "helloWorld"},
		{CasePascal, "hello world", "HelloWorld"},
		{CaseUpperSnake, "hello world", "HELLO_WORLD"},
		{CaseLowerSnake, "hello world", "hello_world"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ChangeCase(tc.in, tc.c), "case=%s", tc.c)
	}
}

func TestChangeCase_CamelBoundaryInput(t *testing.T) {
	assert.Equal(t, "quarterly_sales_report", ChangeCase("QuarterlySalesReport", CaseSnake))
	assert.Equal(t, "QuarterlySalesReport", ChangeCase("quarterly_sales_report", CasePascal))
}

// R2: ChangeCase(ChangeCase(s, c), c) == ChangeCase(s, c) for every case and
// every slug-safe input.
func TestChangeCase_IdempotentUnderReapplication(t *testing.T) {
	gofakeit.Seed(42)
	allCases := []Case{CaseSnake, CaseKebab, CaseCamel, CasePascal, CaseUpperSnake, CaseLowerSnake}

	for i := 0; i < 50; i++ {
		words := make([]string, 3)
		for j := range words {
			words[j] = gofakeit.Word()
		}
		input := strings.Join(words, " ")
		for _, c := range allCases {
			once := ChangeCase(input, c)
			twice := ChangeCase(once, c)
			assert.Equal(t, once, twice, "case=%s input=%q once=%q twice=%q", c, input, once, twice)
		}
	}
}
