// Package validation содержит проверки входных данных API.
package validation

import (
	"fmt"
	"regexp"
	"time"
)

var (
	emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRegexp = regexp.MustCompile(`^[0-9+\-\s]+$`)
)

const maxPlanNameLen = 50

// Errors группирует сообщения об ошибках по имени поля.
type Errors map[string][]string

func (e Errors) add(field, message string) {
	e[field] = append(e[field], message)
}

// Empty сообщает об отсутствии ошибок валидации.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	return emailRegexp.MatchString(email)
}

// ValidateCreateProfile проверяет данные для создания учётной записи.
func ValidateCreateProfile(email, password, firstName, lastName, phone string) Errors {
	errs := Errors{}

	if email == "" {
		errs.add("email", "Email is required.")
	} else if !emailRegexp.MatchString(email) {
		errs.add("email", "Email must be a valid email address.")
	}

	if password == "" {
		errs.add("password", "Password is required.")
	} else if len(password) < 6 {
		errs.add("password", "Password must be at least 6 characters long.")
	}

	validateName(errs, "firstName", firstName)
	validateName(errs, "lastName", lastName)

	if phone != "" && !phoneRegexp.MatchString(phone) {
		errs.add("phoneNumber", "PhoneNumber contains invalid characters.")
	}

	return errs
}

// ValidateUpdateProfile проверяет данные для обновления учётной записи.
func ValidateUpdateProfile(firstName, lastName, phone string) Errors {
	errs := Errors{}

	validateName(errs, "firstName", firstName)
	validateName(errs, "lastName", lastName)

	if phone != "" && !phoneRegexp.MatchString(phone) {
		errs.add("phoneNumber", "PhoneNumber contains invalid characters.")
	}

	return errs
}

func validateName(errs Errors, field, value string) {
	if value == "" {
		return
	}
	if len(value) < 2 || len(value) > 50 {
		errs.add(field, fmt.Sprintf("%s must be between 2 and 50 characters.", fieldTitle(field)))
	}
}

func fieldTitle(field string) string {
	switch field {
	case "firstName":
		return "FirstName"
	case "lastName":
		return "LastName"
	}
	return field
}

// ValidateCreateSubscription проверяет данные для создания подписки.
// Нулевые даты и пустое имя плана допустимы: сервис подставляет значения
// по умолчанию.
func ValidateCreateSubscription(userEmail, planName string, start, end time.Time) Errors {
	errs := Errors{}

	validateSubscriptionEmail(errs, userEmail)
	if planName != "" && len(planName) > maxPlanNameLen {
		errs.add("planName", "PlanName cannot be longer than 50 characters.")
	}

	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs.add("endDate", "EndDate must be greater than StartDate.")
	}

	return errs
}

// ValidateUpdateSubscription проверяет данные для обновления подписки.
// В отличие от создания обе даты обязательны.
func ValidateUpdateSubscription(id int64, userEmail, planName string, start, end time.Time) Errors {
	errs := Errors{}

	if id <= 0 {
		errs.add("id", "Id must be a positive value for update.")
	}

	validateSubscriptionEmail(errs, userEmail)
	validatePlanName(errs, planName)

	if start.IsZero() {
		errs.add("startDate", "StartDate is required.")
	}
	if end.IsZero() {
		errs.add("endDate", "EndDate is required.")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs.add("endDate", "EndDate must be greater than StartDate.")
	}

	return errs
}

func validateSubscriptionEmail(errs Errors, email string) {
	if email == "" {
		errs.add("userEmail", "UserEmail is required.")
		return
	}
	if !emailRegexp.MatchString(email) {
		errs.add("userEmail", "UserEmail must be a valid email address.")
	}
}

func validatePlanName(errs Errors, planName string) {
	if planName == "" {
		errs.add("planName", "PlanName is required.")
		return
	}
	if len(planName) > maxPlanNameLen {
		errs.add("planName", "PlanName cannot be longer than 50 characters.")
	}
}
