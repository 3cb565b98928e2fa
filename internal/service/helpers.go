package service

import (
	"errors"
	"fmt"
	"strings"

	"shipa-backend/pkg/apperror"
)

const maxPageSize = 100

// normalizePage applies 1-based paging defaults and caps the page size.
func normalizePage(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = def
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// internalUnlessApp passes AppErrors through and wraps anything else as SYS_001.
func internalUnlessApp(err error, op string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

// outcomeOf labels an error for metrics.
func outcomeOf(err error) string {
	if code := apperror.CodeOf(err); code != "" {
		return strings.ToLower(code)
	}
	return "error"
}
