package authapi

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const (
	minPasswordLen       = 6
	minChangePasswordLen = 8
	otpLen               = 6
)

var studentCodePattern = regexp.MustCompile(`^(SE\d{6}|AD\d{4})$`)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports invalid input rejected before any network call.
// Message is suitable for display.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func requireEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email", "Email is required")
	}
	return nil
}

func validateStudentCode(code string) error {
	if code == "" {
		return nil
	}
	if !studentCodePattern.MatchString(code) {
		return invalid("studentCode", "Code must be SE + 6 digits or AD + 4 digits")
	}
	return nil
}

func validatePassword(password, confirm string) error {
	if password != confirm {
		return invalid("confirmPassword", "Passwords do not match!")
	}
	if len(password) < minPasswordLen {
		return invalid("password", "Password must be at least 6 characters")
	}
	return nil
}

func validateChangePassword(current, next, confirm string) error {
	if current == "" {
		return invalid("currentPassword", "Current password is required")
	}
	if len(next) < minChangePasswordLen {
		return invalid("newPassword", "New password must be at least 8 characters.")
	}
	if next != confirm {
		return invalid("confirmPassword", "New passwords do not match.")
	}
	return nil
}

// cleanOTP removes the spaces a segmented OTP input leaves behind.
func cleanOTP(otp string) string {
	return strings.ReplaceAll(otp, " ", "")
}

func validateOTP(otp string) error {
	if len(otp) != otpLen {
		return invalid("otp", "Please enter all 6 digits")
	}
	for _, r := range otp {
		if !unicode.IsDigit(r) {
			return invalid("otp", "OTP must contain digits only")
		}
	}
	return nil
}
