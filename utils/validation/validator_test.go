package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVideoLink(t *testing.T) {
	accepted := []string{
		"https://www.youtube.com/watch?v=abc",
		"https://youtube.com/watch?v=abc",
		"https://youtu.be/abc",
		"ftp://youtube.com/anything",
	}
	for _, link := range accepted {
		assert.NoError(t, ValidateVideoLink(link), link)
	}

	rejected := map[string]string{
		"https://vimeo.com/123":          "vimeo.com",
		"https://m.youtube.com/watch":    "m.youtube.com",
		"https://youtube.com.evil.io/x":  "youtube.com.evil.io",
		"https://notyoutube.com/watch?v": "notyoutube.com",
		"https://YOUTUBE.com/watch?v=1":  "YOUTUBE.com",
		"http://YOUTU.BE/abc":            "YOUTU.BE",
		"https://youtube.com:8443/watch": "youtube.com:8443",
		"https://youtu.be:443/abc":       "youtu.be:443",
		"https://user:pw@youtube.com/x":  "user:pw@youtube.com",
	}
	for link, host := range rejected {
		err := ValidateVideoLink(link)
		require.Error(t, err, link)

		var hostErr *VideoHostError
		require.True(t, errors.As(err, &hostErr))
		assert.Equal(t, host, hostErr.Host)
		assert.Contains(t, err.Error(), host)
		assert.Contains(t, err.Error(), "youtu.be")
	}

	assert.Error(t, ValidateVideoLink("not a url"))
	assert.Error(t, ValidateVideoLink(""))
	assert.Error(t, ValidateVideoLink("youtube.com/watch?v=abc"))
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("newtest123", "newtest@example.com"))

	problems := ValidatePassword("short", "")
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "too short")

	problems = ValidatePassword("1234567890", "")
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "entirely numeric")

	problems = ValidatePassword("me@example.com", "me@example.com")
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "similar to the email")

	assert.Len(t, ValidatePassword("1234", ""), 2)
}

func TestHasAtMostTwoDecimals(t *testing.T) {
	assert.True(t, HasAtMostTwoDecimals(10))
	assert.True(t, HasAtMostTwoDecimals(10.5))
	assert.True(t, HasAtMostTwoDecimals(19.99))
	assert.True(t, HasAtMostTwoDecimals(0.01))
	assert.False(t, HasAtMostTwoDecimals(1.001))
	assert.False(t, HasAtMostTwoDecimals(19.999))
}

type lessonInput struct {
	Title     string  `json:"title" validate:"required,max=5"`
	VideoLink string  `json:"video_link" validate:"omitempty,video_link"`
	Amount    float64 `json:"amount" validate:"omitempty,gt=0,amount2dp"`
	Method    string  `json:"payment_method" validate:"omitempty,oneof=cash transfer"`
}

func TestFormatValidationErrors(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(lessonInput{
		VideoLink: "https://vimeo.com/1",
		Amount:    1.234,
		Method:    "card",
	})
	require.Error(t, err)

	fields := FormatValidationErrors(err)
	assert.Equal(t, "This field is required.", fields["title"])
	assert.Contains(t, fields["video_link"], `"vimeo.com"`)
	assert.Equal(t, "Ensure that there are no more than 2 decimal places.", fields["amount"])
	assert.Equal(t, "Must be one of: cash, transfer.", fields["payment_method"])

	assert.NoError(t, v.ValidateStruct(lessonInput{Title: "Go", VideoLink: "https://youtu.be/x", Amount: 9.99, Method: "cash"}))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  he\x00llo \n"))
}
