// Package sanitizer normalizes requester input before validation and storage.
//
// All normalization functions are idempotent. Invalid input is reported by
// returning an empty string or false rather than an error; callers turn that
// into a validation failure.
//
// Normalization includes:
//   - Phone numbers: Brazilian national numbers (DDD + 8 or 9 digits) to E.164
//   - Tax IDs: CPF (11 digits) or CNPJ (14 digits) with check-digit verification
//   - Free text: Collapse whitespace, trim, drop control characters
package sanitizer
