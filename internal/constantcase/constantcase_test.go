package constantcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"MyApi":       "MY_API",
		"my_api":      "MY_API",
		"MY-API":      "MY_API",
		"my api":      "MY_API",
		"myApi":       "MY_API",
		"HTTPServer":  "HTTP_SERVER",
		"user-api2":   "USER_API2",
		"users":       "USERS",
		"__users__":   "USERS",
		"a--b__c":     "A_B_C",
		"":            "",
		"---":         "",
		"Products2Go": "PRODUCTS2_GO",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("MyApi", "MY-API"))
	assert.True(t, Equal("my_api", "myApi"))
	assert.False(t, Equal("my_api", "my_apis"))
}
